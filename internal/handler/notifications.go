package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/north-cloud/notify-hub/internal/domain"
	"github.com/north-cloud/notify-hub/internal/notification"
)

// NotificationService is the notification surface the handler needs.
type NotificationService interface {
	Create(ctx context.Context, req notification.CreateRequest) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	ListForUser(ctx context.Context, userID string) ([]*domain.Notification, error)
}

// NotificationHandler handles /api/notifications requests.
type NotificationHandler struct {
	svc NotificationService
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(svc NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// Create persists a notification, delivering immediately unless a
// future scheduledAt is given.
func (h *NotificationHandler) Create(c *gin.Context) {
	var req notification.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	n, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, n)
}

// ListForUser returns the user's delivered notifications with read
// state, the REST fallback for clients that missed pushes.
func (h *NotificationHandler) ListForUser(c *gin.Context) {
	notifications, err := h.svc.ListForUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, notifications)
}

// MarkAllRead clears every unread notification for the user.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := c.Param("userId")

	count, err := h.svc.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Marked %d notifications as read", count),
		"count":   count,
	})
}
