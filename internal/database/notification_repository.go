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

// notificationColumns is the column list shared by notification SELECTs.
const notificationColumns = `id, title, message, type, category, from_user_id,
	       to_user_id, scheduled_at, delivered_at, created_at`

// NotificationRepository handles database operations for notifications
// and their per-recipient read state.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new notification.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, title, message, type, category,
		                           from_user_id, to_user_id, scheduled_at, delivered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		n.ID,
		n.Title,
		n.Message,
		n.Type,
		n.Category,
		n.FromUserID,
		n.ToUserID,
		n.ScheduledAt,
		n.DeliveredAt,
	).Scan(&n.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// GetByID retrieves a notification by its ID.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var n domain.Notification
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	err := r.db.GetContext(ctx, &n, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError("notification", id)
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}

	return &n, nil
}

// ListForUser retrieves all delivered notifications addressed to a user,
// directly or via broadcast, with the user's read flag resolved.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	var notifications []*domain.Notification
	query := `
		SELECT n.id, n.title, n.message, n.type, n.category, n.from_user_id,
		       n.to_user_id, n.scheduled_at, n.delivered_at, n.created_at,
		       (nr.notification_id IS NOT NULL) AS read
		FROM notifications n
		LEFT JOIN notification_reads nr
		       ON nr.notification_id = n.id AND nr.user_id = $1
		WHERE (n.to_user_id = $1 OR n.to_user_id IS NULL)
		  AND n.delivered_at IS NOT NULL
		ORDER BY n.created_at DESC
	`

	err := r.db.SelectContext(ctx, &notifications, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	if notifications == nil {
		notifications = []*domain.Notification{}
	}

	return notifications, nil
}

// ListDue retrieves pending scheduled notifications whose delivery
// instant has arrived.
func (r *NotificationRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.Notification, error) {
	var notifications []*domain.Notification
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE delivered_at IS NULL
		  AND scheduled_at IS NOT NULL
		  AND scheduled_at <= $1
		ORDER BY scheduled_at
	`

	err := r.db.SelectContext(ctx, &notifications, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due notifications: %w", err)
	}

	return notifications, nil
}

// MarkDelivered stamps the delivery instant.
func (r *NotificationRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE notifications SET delivered_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark delivered: %w", err)
	}

	return checkAffected(result, "notification", id)
}

// MarkRead sets the read flag for a (user, notification) pair. It is
// idempotent and a silent no-op when the notification does not exist;
// double-acknowledging is not an error.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, notificationID string) error {
	query := `
		INSERT INTO notification_reads (notification_id, user_id, read_at)
		SELECT id, $2, NOW() FROM notifications WHERE id = $1
		ON CONFLICT (notification_id, user_id) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, notificationID, userID); err != nil {
		return fmt.Errorf("failed to mark read: %w", err)
	}

	return nil
}

// MarkAllRead clears the unread flag for every delivered notification
// addressed to the user and returns how many were cleared.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	query := `
		INSERT INTO notification_reads (notification_id, user_id, read_at)
		SELECT n.id, $1, NOW()
		FROM notifications n
		WHERE (n.to_user_id = $1 OR n.to_user_id IS NULL)
		  AND n.delivered_at IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM notification_reads nr
			WHERE nr.notification_id = n.id AND nr.user_id = $1
		  )
	`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all read: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return count, nil
}
