package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/north-cloud/notify-hub/internal/domain"
	"github.com/north-cloud/notify-hub/internal/events"
	"github.com/north-cloud/notify-hub/internal/logger"
	"github.com/north-cloud/notify-hub/internal/schedule"
)

// JobStore is the job persistence surface the handler needs.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context) ([]*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
	Delete(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
}

// JobScheduler arms and disarms job timers.
type JobScheduler interface {
	Schedule(ctx context.Context, job *domain.Job) error
	Unschedule(id string)
	ExecuteNow(ctx context.Context, id string) error
}

// Publisher pushes cronjob_status frames on lifecycle changes so the
// dashboards refresh their job lists.
type Publisher interface {
	Broadcast(event events.Event)
}

// CronJobRequest is the create/update payload from the cronjobs page.
// One-time jobs may send scheduledAt instead of a cron expression; the
// pinned expression is derived server-side.
type CronJobRequest struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	CronExpression string     `json:"cronExpression"`
	JobType        string     `json:"jobType"`
	JobData        *string    `json:"jobData"`
	IsActive       bool       `json:"isActive"`
	IsOneTime      bool       `json:"isOneTime"`
	ScheduledAt    *time.Time `json:"scheduledAt,omitempty"`
}

// CronJobHandler handles /api/cronjobs requests.
type CronJobHandler struct {
	store     JobStore
	scheduler JobScheduler
	pub       Publisher
	log       logger.Logger
}

// NewCronJobHandler creates a CronJobHandler.
func NewCronJobHandler(store JobStore, sched JobScheduler, pub Publisher, log logger.Logger) *CronJobHandler {
	return &CronJobHandler{
		store:     store,
		scheduler: sched,
		pub:       pub,
		log:       log,
	}
}

// List returns all jobs, newest first.
func (h *CronJobHandler) List(c *gin.Context) {
	jobs, err := h.store.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// Create validates and persists a job, arming its timer when active.
func (h *CronJobHandler) Create(c *gin.Context) {
	var req CronJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := validateJobRequest(&req); err != nil {
		respondError(c, err)
		return
	}

	job := &domain.Job{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Description:    req.Description,
		CronExpression: req.CronExpression,
		JobType:        req.JobType,
		JobData:        req.JobData,
		IsActive:       req.IsActive,
		IsOneTime:      req.IsOneTime,
	}

	ctx := c.Request.Context()
	if job.IsActive {
		next, err := schedule.Next(job.CronExpression, time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		job.NextRun = &next
	}

	if err := h.store.Create(ctx, job); err != nil {
		respondError(c, err)
		return
	}

	if job.IsActive {
		if err := h.scheduler.Schedule(ctx, job); err != nil {
			h.log.Error("Failed to schedule created job",
				logger.String("job_id", job.ID),
				logger.Error(err),
			)
		}
	}

	c.JSON(http.StatusCreated, job)
}

// Update re-validates and persists job changes, rescheduling as needed.
func (h *CronJobHandler) Update(c *gin.Context) {
	var req CronJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := validateJobRequest(&req); err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")

	job, err := h.store.GetByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	prevExpression := job.CronExpression

	job.Name = req.Name
	job.Description = req.Description
	job.CronExpression = req.CronExpression
	job.JobType = req.JobType
	job.JobData = req.JobData
	job.IsActive = req.IsActive
	job.IsOneTime = req.IsOneTime

	// A fresh expression makes a completed one-time job eligible to
	// fire again.
	if job.IsOneTime && job.CronExpression != prevExpression {
		job.LastRun = nil
	}

	if job.IsActive {
		next, nextErr := schedule.Next(job.CronExpression, time.Now())
		if nextErr != nil {
			respondError(c, nextErr)
			return
		}
		job.NextRun = &next
	} else {
		job.NextRun = nil
	}

	if err := h.store.Update(ctx, job); err != nil {
		respondError(c, err)
		return
	}

	if job.IsActive {
		if scheduleErr := h.scheduler.Schedule(ctx, job); scheduleErr != nil {
			h.log.Error("Failed to reschedule updated job",
				logger.String("job_id", job.ID),
				logger.Error(scheduleErr),
			)
		}
	} else {
		h.scheduler.Unschedule(job.ID)
	}

	c.JSON(http.StatusOK, job)
}

// Delete cancels any pending timer and removes the record.
func (h *CronJobHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	h.scheduler.Unschedule(id)

	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "CronJob deleted"})
}

// Start activates a job and arms its timer from the current time.
// Restarting a one-time job that already fired is a no-op; it fires
// again only after an expression update.
func (h *CronJobHandler) Start(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	job, err := h.store.GetByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	if job.IsOneTime && job.LastRun != nil {
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("CronJob %s already completed", job.Name)})
		return
	}

	if err := h.store.SetActive(ctx, id, true); err != nil {
		respondError(c, err)
		return
	}
	job.IsActive = true

	if err := h.scheduler.Schedule(ctx, job); err != nil {
		respondError(c, err)
		return
	}

	h.pub.Broadcast(events.NewCronJobStatusEvent(job.ID, job.Name, events.StatusStarted, nil, job.NextRun))
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("CronJob %s started", job.Name)})
}

// Stop deactivates a job and cancels its timer. Stopping an already
// inactive job is not an error.
func (h *CronJobHandler) Stop(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	job, err := h.store.GetByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.store.SetActive(ctx, id, false); err != nil {
		respondError(c, err)
		return
	}
	h.scheduler.Unschedule(id)

	h.pub.Broadcast(events.NewCronJobStatusEvent(job.ID, job.Name, events.StatusStopped, nil, nil))
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("CronJob %s stopped", job.Name)})
}

// Execute runs the job's payload immediately, outside its schedule.
func (h *CronJobHandler) Execute(c *gin.Context) {
	id := c.Param("id")

	if err := h.scheduler.ExecuteNow(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "CronJob executed"})
}

// validateJobRequest checks the payload before any state changes.
// Payload shape errors surface here, at creation, not at fire time.
func validateJobRequest(req *CronJobRequest) error {
	if req.Name == "" {
		return domain.NewValidationError("name is required")
	}

	if req.IsOneTime && req.CronExpression == "" && req.ScheduledAt != nil {
		req.CronExpression = schedule.Pin(*req.ScheduledAt)
	}

	if req.JobType == "" {
		req.JobType = domain.JobTypeCustom
	}
	if !domain.ValidJobType(req.JobType) {
		return domain.NewValidationError(fmt.Sprintf(
			"jobType %q must be one of: notification_check, daily_summary, custom", req.JobType,
		))
	}

	if err := schedule.Validate(req.CronExpression); err != nil {
		return err
	}

	if req.JobType == domain.JobTypeNotificationCheck {
		if _, err := domain.ParseNotificationPayload(req.JobData); err != nil {
			return err
		}
	}

	return nil
}
