package domain

import "time"

// Notification type (severity) values.
const (
	NotificationTypeInfo    = "info"
	NotificationTypeWarning = "warning"
	NotificationTypeSuccess = "success"
	NotificationTypeError   = "error"
)

// Notification category values.
const (
	CategorySystem     = "system"
	CategoryScheduled  = "scheduled"
	CategoryUserToUser = "user-to-user"
)

// Notification is a persisted message with per-recipient read state.
// A nil ToUserID means broadcast to every user. Read state lives in a
// separate join table; the Read field is populated per requesting user.
type Notification struct {
	ID          string     `db:"id"           json:"id"`
	Title       string     `db:"title"        json:"title"`
	Message     string     `db:"message"      json:"message"`
	Type        string     `db:"type"         json:"type"`
	Category    string     `db:"category"     json:"category"`
	FromUserID  *string    `db:"from_user_id" json:"from_user_id,omitempty"`
	ToUserID    *string    `db:"to_user_id"   json:"to_user_id,omitempty"`
	ScheduledAt *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	Read        bool       `db:"read"         json:"read"`
}

// ValidNotificationType reports whether t is a known severity.
func ValidNotificationType(t string) bool {
	switch t {
	case NotificationTypeInfo, NotificationTypeWarning,
		NotificationTypeSuccess, NotificationTypeError:
		return true
	default:
		return false
	}
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c string) bool {
	switch c {
	case CategorySystem, CategoryScheduled, CategoryUserToUser:
		return true
	default:
		return false
	}
}
