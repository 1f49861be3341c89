// Package notification implements notification creation, scheduled
// delivery, and read-state tracking.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/north-cloud/notify-hub/internal/domain"
	"github.com/north-cloud/notify-hub/internal/events"
	"github.com/north-cloud/notify-hub/internal/logger"
	"github.com/north-cloud/notify-hub/internal/metrics"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListForUser(ctx context.Context, userID string) ([]*domain.Notification, error)
	ListDue(ctx context.Context, now time.Time) ([]*domain.Notification, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// Pusher fans events out to connected clients.
type Pusher interface {
	PushToUser(userID string, event events.Event)
	Broadcast(event events.Event)
}

// Users resolves recipient ids against the user directory.
type Users interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// CreateRequest is the payload for creating a notification, matching
// the dashboard contract.
type CreateRequest struct {
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Type        string     `json:"type"`
	Category    string     `json:"category"`
	ToUserID    *string    `json:"to_user_id"`
	FromUserID  *string    `json:"from_user_id"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

// Service coordinates the notification store and the push channel.
type Service struct {
	log     logger.Logger
	store   Store
	users   Users
	pusher  Pusher
	metrics *metrics.Metrics
}

// NewService creates a notification service.
func NewService(log logger.Logger, store Store, users Users, pusher Pusher, m *metrics.Metrics) *Service {
	return &Service{
		log:     log,
		store:   store,
		users:   users,
		pusher:  pusher,
		metrics: m,
	}
}

// Create validates and persists a notification. Without a future
// scheduledAt it is delivered immediately; otherwise it stays pending
// until the delivery sweep picks it up.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Notification, error) {
	if err := validate(&req); err != nil {
		return nil, err
	}

	if req.ToUserID != nil && *req.ToUserID != "" {
		if _, err := s.users.GetByID(ctx, *req.ToUserID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.NewValidationError(fmt.Sprintf("unknown recipient %q", *req.ToUserID))
			}
			return nil, err
		}
	}

	n := &domain.Notification{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Message:     req.Message,
		Type:        req.Type,
		Category:    req.Category,
		FromUserID:  req.FromUserID,
		ToUserID:    req.ToUserID,
		ScheduledAt: req.ScheduledAt,
	}

	now := time.Now().UTC()
	immediate := req.ScheduledAt == nil || !req.ScheduledAt.After(now)
	if immediate {
		n.DeliveredAt = &now
	}

	if err := s.store.Create(ctx, n); err != nil {
		return nil, err
	}
	s.metrics.NotificationsCreatedTotal.WithLabelValues(n.Category).Inc()

	if immediate {
		s.push(n)
	} else {
		s.log.Info("Notification scheduled",
			logger.String("notification_id", n.ID),
			logger.Time("scheduled_at", *req.ScheduledAt),
		)
	}

	return n, nil
}

// CreateFromJob creates and delivers a broadcast notification from a
// firing notification_check job.
func (s *Service) CreateFromJob(ctx context.Context, payload *domain.NotificationPayload) error {
	_, err := s.Create(ctx, CreateRequest{
		Title:    payload.Title,
		Message:  payload.Message,
		Type:     payload.Type,
		Category: domain.CategoryScheduled,
	})
	if err != nil {
		return fmt.Errorf("create notification from job: %w", err)
	}
	return nil
}

// DeliverDue delivers every pending notification whose scheduled
// instant has arrived and returns how many were delivered.
func (s *Service) DeliverDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.ListDue(ctx, now)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, n := range due {
		if markErr := s.store.MarkDelivered(ctx, n.ID, now); markErr != nil {
			s.log.Error("Failed to mark notification delivered",
				logger.String("notification_id", n.ID),
				logger.Error(markErr),
			)
			continue
		}
		at := now
		n.DeliveredAt = &at
		s.push(n)
		delivered++
	}

	return delivered, nil
}

// MarkRead acknowledges one notification for a user. Idempotent;
// acknowledging an unknown pair is a no-op.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.store.MarkRead(ctx, userID, notificationID)
}

// MarkAllRead acknowledges every notification addressed to the user and
// returns how many were cleared.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}

// ListForUser returns the user's delivered notifications with read state.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	return s.store.ListForUser(ctx, userID)
}

// push fans a notification out: direct to its recipient, or broadcast
// when no recipient is set. Best-effort; the stored record is the
// recovery path for clients that miss the frame.
func (s *Service) push(n *domain.Notification) {
	event := events.NewNotificationEvent(n)
	if n.ToUserID != nil {
		s.pusher.PushToUser(*n.ToUserID, event)
	} else {
		s.pusher.Broadcast(event)
	}
	s.metrics.NotificationsDeliveredTotal.Inc()
}

// validate applies defaults and checks required fields.
func validate(req *CreateRequest) error {
	if req.Title == "" {
		return domain.NewValidationError("title is required")
	}
	if req.Message == "" {
		return domain.NewValidationError("message is required")
	}

	if req.Type == "" {
		req.Type = domain.NotificationTypeInfo
	}
	if !domain.ValidNotificationType(req.Type) {
		return domain.NewValidationError(fmt.Sprintf("type %q must be one of: info, warning, success, error", req.Type))
	}

	if req.Category == "" {
		req.Category = domain.CategorySystem
	}
	if !domain.ValidCategory(req.Category) {
		return domain.NewValidationError(fmt.Sprintf("category %q must be one of: system, scheduled, user-to-user", req.Category))
	}

	if req.Category == domain.CategoryUserToUser {
		if req.FromUserID == nil || *req.FromUserID == "" || req.ToUserID == nil || *req.ToUserID == "" {
			return domain.NewValidationError("user-to-user notifications require from_user_id and to_user_id")
		}
	}

	return nil
}
