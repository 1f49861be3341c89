package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/north-cloud/notify-hub/internal/domain"
)

// jobColumns is the column list shared by job SELECT statements.
const jobColumns = `id, name, description, cron_expression, job_type, job_data,
	       is_active, is_one_time, last_run, next_run, created_at, updated_at`

// JobRepository handles database operations for jobs.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job into the database.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (id, name, description, cron_expression, job_type, job_data,
		                  is_active, is_one_time, next_run)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		job.ID,
		job.Name,
		job.Description,
		job.CronExpression,
		job.JobType,
		job.JobData,
		job.IsActive,
		job.IsOneTime,
		job.NextRun,
	).Scan(&job.CreatedAt, &job.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	err := r.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError("job", id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// List retrieves all jobs, newest first.
func (r *JobRepository) List(ctx context.Context) ([]*domain.Job, error) {
	var jobs []*domain.Job
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &jobs, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	if jobs == nil {
		jobs = []*domain.Job{}
	}

	return jobs, nil
}

// ListActive retrieves every active job. The scheduler uses this on
// startup to rebuild its entries.
func (r *JobRepository) ListActive(ctx context.Context) ([]*domain.Job, error) {
	var jobs []*domain.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE is_active ORDER BY created_at`

	err := r.db.SelectContext(ctx, &jobs, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}

	if jobs == nil {
		jobs = []*domain.Job{}
	}

	return jobs, nil
}

// Update updates the mutable fields of an existing job. last_run is
// written too: an expression update on a one-time job clears it so the
// job can be armed again.
func (r *JobRepository) Update(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE jobs
		SET name = $1, description = $2, cron_expression = $3, job_type = $4,
		    job_data = $5, is_active = $6, is_one_time = $7, last_run = $8,
		    next_run = $9, updated_at = NOW()
		WHERE id = $10
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		job.Name,
		job.Description,
		job.CronExpression,
		job.JobType,
		job.JobData,
		job.IsActive,
		job.IsOneTime,
		job.LastRun,
		job.NextRun,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return checkAffected(result, "job", job.ID)
}

// Delete removes a job record.
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	return checkAffected(result, "job", id)
}

// SetActive toggles the active flag. Deactivating also clears next_run,
// since an inactive job has no pending occurrence.
func (r *JobRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `
		UPDATE jobs
		SET is_active = $2,
		    next_run = CASE WHEN $2 THEN next_run ELSE NULL END,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to set job active: %w", err)
	}

	return checkAffected(result, "job", id)
}

// UpdateNextRun records a recomputed next occurrence.
func (r *JobRepository) UpdateNextRun(ctx context.Context, id string, next *time.Time) error {
	query := `UPDATE jobs SET next_run = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, next)
	if err != nil {
		return fmt.Errorf("failed to update next run: %w", err)
	}

	return checkAffected(result, "job", id)
}

// RecordRun records a completed execution: last_run always, next_run as
// recomputed by the scheduler (nil for one-shot jobs).
func (r *JobRepository) RecordRun(ctx context.Context, id string, last time.Time, next *time.Time) error {
	query := `UPDATE jobs SET last_run = $2, next_run = $3, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, last, next)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	return checkAffected(result, "job", id)
}

// RecordLastRun records last_run only, leaving next_run untouched.
// Used by execute-now, which runs outside the normal schedule.
func (r *JobRepository) RecordLastRun(ctx context.Context, id string, last time.Time) error {
	query := `UPDATE jobs SET last_run = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, last)
	if err != nil {
		return fmt.Errorf("failed to record last run: %w", err)
	}

	return checkAffected(result, "job", id)
}

// checkAffected converts a zero-rows result into ErrNotFound.
func checkAffected(result sql.Result, kind, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.NotFoundError(kind, id)
	}

	return nil
}
