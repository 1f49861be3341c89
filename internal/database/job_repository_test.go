package database_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/north-cloud/notify-hub/internal/database"
	"github.com/north-cloud/notify-hub/internal/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return sqlx.NewDb(db, "sqlmock"), mock
}

var jobRows = []string{
	"id", "name", "description", "cron_expression", "job_type", "job_data",
	"is_active", "is_one_time", "last_run", "next_run", "created_at", "updated_at",
}

func TestJobRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	now := time.Now().UTC()
	job := &domain.Job{
		ID:             "j1",
		Name:           "nightly",
		CronExpression: "0 2 * * *",
		JobType:        domain.JobTypeCustom,
		IsActive:       true,
		NextRun:        &now,
	}

	mock.ExpectQuery("INSERT INTO jobs").
		WithArgs(job.ID, job.Name, job.Description, job.CronExpression,
			job.JobType, job.JobData, job.IsActive, job.IsOneTime, job.NextRun).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	require.NoError(t, repo.Create(context.Background(), job))
	assert.Equal(t, now, job.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM jobs WHERE id").
		WithArgs("j1").
		WillReturnRows(sqlmock.NewRows(jobRows).
			AddRow("j1", "nightly", "", "0 2 * * *", "custom", nil,
				true, false, nil, nil, now, now))

	job, err := repo.GetByID(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, "nightly", job.Name)
	assert.True(t, job.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM jobs WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobRepository_List_EmptyResult(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM jobs ORDER BY created_at DESC").
		WillReturnRows(sqlmock.NewRows(jobRows))

	jobs, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)
}

func TestJobRepository_SetActive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	mock.ExpectExec("UPDATE jobs").
		WithArgs("j1", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetActive(context.Background(), "j1", false))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_SetActive_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	mock.ExpectExec("UPDATE jobs").
		WithArgs("missing", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetActive(context.Background(), "missing", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobRepository_Update_WritesLastRun(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	// A nil LastRun must reach the database: updating a one-time job's
	// expression clears it so the job can be armed again.
	job := &domain.Job{
		ID:             "j1",
		Name:           "renamed",
		CronExpression: "0 6 * * *",
		JobType:        domain.JobTypeCustom,
		IsActive:       true,
		IsOneTime:      true,
	}

	mock.ExpectExec("UPDATE jobs").
		WithArgs(job.Name, job.Description, job.CronExpression, job.JobType,
			job.JobData, job.IsActive, job.IsOneTime, job.LastRun, job.NextRun, job.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	mock.ExpectExec("DELETE FROM jobs").
		WithArgs("j1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "j1"))
}

func TestJobRepository_Delete_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	mock.ExpectExec("DELETE FROM jobs").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "missing"), domain.ErrNotFound)
}

func TestJobRepository_RecordRun(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	last := time.Now().UTC()
	next := last.Add(time.Hour)

	mock.ExpectExec("UPDATE jobs SET last_run").
		WithArgs("j1", last, &next).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordRun(context.Background(), "j1", last, &next))
}

func TestJobRepository_RecordLastRun(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewJobRepository(db)

	last := time.Now().UTC()

	mock.ExpectExec("UPDATE jobs SET last_run").
		WithArgs("j1", last).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordLastRun(context.Background(), "j1", last))
}
