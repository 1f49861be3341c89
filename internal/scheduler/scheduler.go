// Package scheduler runs active jobs on their cron schedules and
// dispatches firings by job type.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/north-cloud/notify-hub/internal/domain"
	"github.com/north-cloud/notify-hub/internal/events"
	"github.com/north-cloud/notify-hub/internal/logger"
	"github.com/north-cloud/notify-hub/internal/metrics"
	"github.com/north-cloud/notify-hub/internal/schedule"
)

// JobStore is the persistence surface the scheduler needs. The store
// owns job state; the scheduler never keeps a second copy of a record.
type JobStore interface {
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	ListActive(ctx context.Context) ([]*domain.Job, error)
	SetActive(ctx context.Context, id string, active bool) error
	UpdateNextRun(ctx context.Context, id string, next *time.Time) error
	RecordRun(ctx context.Context, id string, last time.Time, next *time.Time) error
	RecordLastRun(ctx context.Context, id string, last time.Time) error
}

// Notifier creates notifications from firing notification_check jobs
// and delivers scheduled notifications that have come due.
type Notifier interface {
	CreateFromJob(ctx context.Context, payload *domain.NotificationPayload) error
	DeliverDue(ctx context.Context, now time.Time) (int, error)
}

// Publisher pushes cronjob_status frames to connected clients.
type Publisher interface {
	Broadcast(event events.Event)
}

// Handler executes the payload of a daily_summary or custom job.
type Handler func(ctx context.Context, job *domain.Job) error

// Scheduler wraps a cron runner with per-job entries and execution
// locks. One firing per job at a time; a slow handler delays only its
// own job.
type Scheduler struct {
	log      logger.Logger
	store    JobStore
	notifier Notifier
	pub      Publisher
	metrics  *metrics.Metrics

	cron  *cron.Cron
	sweep time.Duration

	mu       sync.Mutex
	entries  map[string]cron.EntryID
	running  map[string]*sync.Mutex
	handlers map[string]Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. sweepInterval is how often pending scheduled
// notifications are checked for delivery.
func New(
	log logger.Logger,
	store JobStore,
	notifier Notifier,
	pub Publisher,
	m *metrics.Metrics,
	sweepInterval time.Duration,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(
		cron.WithParser(schedule.Parser()),
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)
	return &Scheduler{
		log:      log,
		store:    store,
		notifier: notifier,
		pub:      pub,
		metrics:  m,
		cron:     c,
		sweep:    sweepInterval,
		entries:  make(map[string]cron.EntryID),
		running:  make(map[string]*sync.Mutex),
		handlers: make(map[string]Handler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register installs the handler invoked for a job type. Built-in
// notification_check dispatch cannot be overridden.
func (s *Scheduler) Register(jobType string, h Handler) {
	s.mu.Lock()
	s.handlers[jobType] = h
	s.mu.Unlock()
}

// Start arms every active job and begins the delivery sweep. NextRun is
// always recomputed from the expression and the current time; a stale
// persisted value from before a restart is never trusted.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs, err := s.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active jobs: %w", err)
	}

	for _, job := range jobs {
		if scheduleErr := s.Schedule(ctx, job); scheduleErr != nil {
			s.log.Error("Failed to schedule job on startup",
				logger.String("job_id", job.ID),
				logger.Error(scheduleErr),
			)
		}
	}

	s.cron.Start()

	s.wg.Add(1)
	go s.sweepLoop()

	s.log.Info("Scheduler started", logger.Int("scheduled_jobs", len(jobs)))
	return nil
}

// Stop disarms everything and waits for in-flight firings to finish.
func (s *Scheduler) Stop() {
	s.cancel()

	cronCtx := s.cron.Stop()
	<-cronCtx.Done()

	s.wg.Wait()
	s.log.Info("Scheduler stopped")
}

// Schedule arms a timer for the job, replacing any existing entry, and
// persists the recomputed next occurrence. A one-time job that has
// already executed is never re-armed: its pinned expression would
// match again a year later. Updating the expression clears last_run
// and makes it schedulable again.
func (s *Scheduler) Schedule(ctx context.Context, job *domain.Job) error {
	if job.IsOneTime && job.LastRun != nil {
		s.log.Info("One-time job already executed, leaving disarmed",
			logger.String("job_id", job.ID),
		)
		if job.IsActive {
			if deactivateErr := s.store.SetActive(ctx, job.ID, false); deactivateErr != nil {
				s.log.Error("Failed to deactivate executed one-time job",
					logger.String("job_id", job.ID),
					logger.Error(deactivateErr),
				)
			}
		}
		return nil
	}

	next, err := schedule.Next(job.CronExpression, time.Now())
	if err != nil {
		return err
	}

	jobID := job.ID
	entryID, err := s.cron.AddFunc(job.CronExpression, func() {
		s.onFire(jobID)
	})
	if err != nil {
		return fmt.Errorf("add cron entry: %w", err)
	}

	s.mu.Lock()
	if old, exists := s.entries[jobID]; exists {
		s.cron.Remove(old)
	}
	s.entries[jobID] = entryID
	s.metrics.JobsScheduled.Set(float64(len(s.entries)))
	s.mu.Unlock()

	if updateErr := s.store.UpdateNextRun(ctx, jobID, &next); updateErr != nil {
		return updateErr
	}

	s.log.Info("Job scheduled",
		logger.String("job_id", jobID),
		logger.String("schedule", job.CronExpression),
		logger.Time("next_run", next),
	)
	return nil
}

// Unschedule disarms the job's timer. Idempotent: unscheduling a job
// with no entry is not an error.
func (s *Scheduler) Unschedule(id string) {
	s.mu.Lock()
	entryID, exists := s.entries[id]
	if exists {
		s.cron.Remove(entryID)
		delete(s.entries, id)
		s.metrics.JobsScheduled.Set(float64(len(s.entries)))
	}
	s.mu.Unlock()

	if exists {
		s.log.Info("Job unscheduled", logger.String("job_id", id))
	}
}

// Scheduled reports whether the job currently has an armed entry.
func (s *Scheduler) Scheduled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.entries[id]
	return exists
}

// ExecuteNow runs the job's payload synchronously outside its schedule,
// regardless of active state. Records lastRun; nextRun is untouched.
func (s *Scheduler) ExecuteNow(ctx context.Context, id string) error {
	lock := s.jobLock(id)
	lock.Lock()
	defer lock.Unlock()

	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	execErr := s.execute(ctx, job)

	now := time.Now().UTC()
	if recordErr := s.store.RecordLastRun(ctx, id, now); recordErr != nil {
		s.log.Error("Failed to record manual run",
			logger.String("job_id", id),
			logger.Error(recordErr),
		)
	}

	s.publishStatus(job, execErr, job.NextRun)
	return execErr
}

// jobLock returns the per-job execution mutex, creating it on first use.
func (s *Scheduler) jobLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, exists := s.running[id]
	if !exists {
		lock = &sync.Mutex{}
		s.running[id] = lock
	}
	return lock
}

// onFire runs when a job's timer matures. The cron goroutine only
// spawns the firing; a long handler never delays other jobs' entries.
func (s *Scheduler) onFire(id string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		lock := s.jobLock(id)
		lock.Lock()
		defer lock.Unlock()

		s.fire(s.ctx, id)
	}()
}

// fire executes one scheduled occurrence. The job is re-fetched first:
// a stop or delete may have landed while the firing was in flight, and
// a deleted job must not be rescheduled.
func (s *Scheduler) fire(ctx context.Context, id string) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		s.log.Warn("Job vanished before firing, disarming",
			logger.String("job_id", id),
			logger.Error(err),
		)
		s.Unschedule(id)
		return
	}

	if !job.IsActive {
		s.log.Debug("Skipping fire for inactive job", logger.String("job_id", id))
		return
	}

	execErr := s.execute(ctx, job)
	if execErr != nil {
		// Retryable: a recurring job stays armed for its next occurrence.
		s.log.Error("Job execution failed",
			logger.String("job_id", id),
			logger.String("job_type", job.JobType),
			logger.Error(execErr),
		)
	}

	now := time.Now().UTC()
	var next *time.Time

	if job.IsOneTime {
		s.Unschedule(id)
		if deactivateErr := s.store.SetActive(ctx, id, false); deactivateErr != nil {
			s.log.Error("Failed to deactivate one-shot job",
				logger.String("job_id", id),
				logger.Error(deactivateErr),
			)
		}
	} else {
		n, nextErr := schedule.Next(job.CronExpression, now)
		if nextErr != nil {
			s.log.Error("Failed to recompute next run",
				logger.String("job_id", id),
				logger.Error(nextErr),
			)
		} else {
			next = &n
		}
	}

	if recordErr := s.store.RecordRun(ctx, id, now, next); recordErr != nil {
		s.log.Error("Failed to record run",
			logger.String("job_id", id),
			logger.Error(recordErr),
		)
	}

	s.publishStatus(job, execErr, next)
}

// execute dispatches a job's payload by type.
func (s *Scheduler) execute(ctx context.Context, job *domain.Job) error {
	s.log.Info("Executing job",
		logger.String("job_id", job.ID),
		logger.String("job_type", job.JobType),
		logger.String("name", job.Name),
	)

	if job.JobType == domain.JobTypeNotificationCheck {
		payload, err := domain.ParseNotificationPayload(job.JobData)
		if err != nil {
			return err
		}
		return s.notifier.CreateFromJob(ctx, payload)
	}

	s.mu.Lock()
	handler, exists := s.handlers[job.JobType]
	s.mu.Unlock()

	if !exists {
		s.log.Warn("No handler registered for job type, skipping",
			logger.String("job_id", job.ID),
			logger.String("job_type", job.JobType),
		)
		return nil
	}

	return handler(ctx, job)
}

// publishStatus emits a cronjob_status frame, success or failure alike.
func (s *Scheduler) publishStatus(job *domain.Job, execErr error, next *time.Time) {
	status := events.StatusCompleted
	var errMsg *string
	if execErr != nil {
		status = events.StatusFailed
		msg := execErr.Error()
		errMsg = &msg
	}

	s.metrics.JobExecutionsTotal.WithLabelValues(job.JobType, status).Inc()
	s.pub.Broadcast(events.NewCronJobStatusEvent(job.ID, job.Name, status, errMsg, next))
}

// sweepLoop periodically delivers scheduled notifications that have
// come due.
func (s *Scheduler) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			delivered, err := s.notifier.DeliverDue(s.ctx, time.Now().UTC())
			if err != nil {
				s.log.Error("Failed to deliver due notifications", logger.Error(err))
				continue
			}
			if delivered > 0 {
				s.log.Info("Delivered scheduled notifications", logger.Int("count", delivered))
			}
		}
	}
}
