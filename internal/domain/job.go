// Package domain defines the core types shared across notify-hub.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Job type values.
const (
	JobTypeNotificationCheck = "notification_check"
	JobTypeDailySummary      = "daily_summary"
	JobTypeCustom            = "custom"
)

// Job is a persisted unit of scheduled work. The store owns the record;
// the scheduler only holds a timer entry keyed by ID.
type Job struct {
	ID             string     `db:"id"              json:"id"`
	Name           string     `db:"name"            json:"name"`
	Description    string     `db:"description"     json:"description"`
	CronExpression string     `db:"cron_expression" json:"cronExpression"`
	JobType        string     `db:"job_type"        json:"jobType"`
	JobData        *string    `db:"job_data"        json:"jobData"`
	IsActive       bool       `db:"is_active"       json:"isActive"`
	IsOneTime      bool       `db:"is_one_time"     json:"isOneTime"`
	LastRun        *time.Time `db:"last_run"        json:"lastRun"`
	NextRun        *time.Time `db:"next_run"        json:"nextRun"`
	CreatedAt      time.Time  `db:"created_at"      json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at"      json:"updatedAt"`
}

// NotificationPayload is the JobData shape required by
// notification_check jobs.
type NotificationPayload struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ValidJobType reports whether t is a known job type.
func ValidJobType(t string) bool {
	switch t {
	case JobTypeNotificationCheck, JobTypeDailySummary, JobTypeCustom:
		return true
	default:
		return false
	}
}

// ParseNotificationPayload decodes and validates the JobData of a
// notification_check job. Validation happens at create/update time so
// a malformed payload never reaches the firing path.
func ParseNotificationPayload(data *string) (*NotificationPayload, error) {
	if data == nil || *data == "" {
		return nil, NewValidationError("jobData is required for notification_check jobs")
	}

	var p NotificationPayload
	if err := json.Unmarshal([]byte(*data), &p); err != nil {
		return nil, NewValidationError(fmt.Sprintf("jobData is not valid JSON: %v", err))
	}

	if p.Title == "" || p.Message == "" {
		return nil, NewValidationError("jobData requires title and message for notification_check jobs")
	}
	if p.Type == "" {
		p.Type = NotificationTypeInfo
	}
	if !ValidNotificationType(p.Type) {
		return nil, NewValidationError(fmt.Sprintf("jobData type %q is not a valid notification type", p.Type))
	}

	return &p, nil
}
