// Package events defines the JSON frames pushed over the WebSocket
// channel. Every server frame carries an RFC3339 UTC timestamp.
package events

import (
	"time"

	"github.com/north-cloud/notify-hub/internal/domain"
)

// Server frame types consumed by the dashboards.
const (
	TypeNotification  = "notification"
	TypeCronJobStatus = "cronjob_status"
	TypeConnection    = "connection"
	TypeError         = "error"
)

// Event is a single server-to-client frame.
type Event struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

// CronJobStatusData is the payload for cronjob_status frames.
type CronJobStatusData struct {
	JobID        string  `json:"job_id"`
	Name         string  `json:"name"`
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message,omitempty"`
	NextRun      *string `json:"next_run,omitempty"`
}

// MessageData is the payload for connection and error frames.
type MessageData struct {
	Message string `json:"message"`
}

// Job execution statuses carried by cronjob_status frames.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusStarted   = "started"
	StatusStopped   = "stopped"
)

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NewNotificationEvent creates a notification frame.
func NewNotificationEvent(n *domain.Notification) Event {
	return Event{
		Type:      TypeNotification,
		Data:      n,
		Timestamp: now(),
	}
}

// NewCronJobStatusEvent creates a cronjob_status frame.
func NewCronJobStatusEvent(jobID, name, status string, errorMessage *string, nextRun *time.Time) Event {
	data := CronJobStatusData{
		JobID:        jobID,
		Name:         name,
		Status:       status,
		ErrorMessage: errorMessage,
	}
	if nextRun != nil {
		s := nextRun.UTC().Format(time.RFC3339)
		data.NextRun = &s
	}
	return Event{
		Type:      TypeCronJobStatus,
		Data:      data,
		Timestamp: now(),
	}
}

// NewConnectionEvent creates a connection frame.
func NewConnectionEvent(message string) Event {
	return Event{
		Type:      TypeConnection,
		Data:      MessageData{Message: message},
		Timestamp: now(),
	}
}

// NewErrorEvent creates an error frame.
func NewErrorEvent(message string) Event {
	return Event{
		Type:      TypeError,
		Data:      MessageData{Message: message},
		Timestamp: now(),
	}
}
