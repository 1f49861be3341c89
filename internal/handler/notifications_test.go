package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/north-cloud/notify-hub/internal/domain"
	"github.com/north-cloud/notify-hub/internal/handler"
	"github.com/north-cloud/notify-hub/internal/notification"
)

type fakeNotificationService struct {
	created      []notification.CreateRequest
	createErr    error
	listed       []*domain.Notification
	allReadCount int64
	allReadUser  string
}

func (f *fakeNotificationService) Create(_ context.Context, req notification.CreateRequest) (*domain.Notification, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	now := time.Now().UTC()
	return &domain.Notification{
		ID:          "n1",
		Title:       req.Title,
		Message:     req.Message,
		Type:        req.Type,
		Category:    req.Category,
		DeliveredAt: &now,
		CreatedAt:   now,
	}, nil
}

func (f *fakeNotificationService) MarkAllRead(_ context.Context, userID string) (int64, error) {
	f.allReadUser = userID
	return f.allReadCount, nil
}

func (f *fakeNotificationService) ListForUser(context.Context, string) ([]*domain.Notification, error) {
	return f.listed, nil
}

func newNotificationRouter(svc *fakeNotificationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handler.NewNotificationHandler(svc)

	router := gin.New()
	router.POST("/api/notifications", h.Create)
	router.GET("/api/notifications/:userId", h.ListForUser)
	router.POST("/api/notifications/mark-all-read/:userId", h.MarkAllRead)
	return router
}

func TestNotificationCreate(t *testing.T) {
	svc := &fakeNotificationService{}
	router := newNotificationRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/notifications", map[string]any{
		"title":   "Deploy",
		"message": "done",
		"type":    "success",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, svc.created, 1)
	assert.Equal(t, "Deploy", svc.created[0].Title)
	assert.Contains(t, rec.Body.String(), `"id":"n1"`)
}

func TestNotificationCreate_InvalidBody(t *testing.T) {
	router := newNotificationRouter(&fakeNotificationService{})

	rec := doJSON(t, router, http.MethodPost, "/api/notifications", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationCreate_ValidationError(t *testing.T) {
	svc := &fakeNotificationService{createErr: domain.NewValidationError("title is required")}
	router := newNotificationRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/notifications", map[string]any{"message": "m"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "title is required")
}

func TestNotificationListForUser(t *testing.T) {
	svc := &fakeNotificationService{
		listed: []*domain.Notification{
			{ID: "n1", Title: "a", Read: true},
			{ID: "n2", Title: "b", Read: false},
		},
	}
	router := newNotificationRouter(svc)

	rec := doJSON(t, router, http.MethodGet, "/api/notifications/user1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"read":true`)
	assert.Contains(t, rec.Body.String(), `"read":false`)
}

func TestNotificationMarkAllRead(t *testing.T) {
	svc := &fakeNotificationService{allReadCount: 3}
	router := newNotificationRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/notifications/mark-all-read/user1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user1", svc.allReadUser)
	assert.Contains(t, rec.Body.String(), "Marked 3 notifications as read")
	assert.Contains(t, rec.Body.String(), `"count":3`)
}

type fakeUserStore struct {
	users []*domain.User
}

func (f *fakeUserStore) List(context.Context) ([]*domain.User, error) {
	return f.users, nil
}

func TestUserList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := handler.NewUserHandler(&fakeUserStore{users: []*domain.User{
		{ID: "admin", Email: "admin@example.com", PlatformRole: "admin", IsActive: true},
		{ID: "user1", Email: "user1@example.com", PlatformRole: "user", IsActive: true},
	}})

	router := gin.New()
	router.GET("/api/auth/test-notification", h.List)

	rec := doJSON(t, router, http.MethodGet, "/api/auth/test-notification", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "admin@example.com")
	assert.Contains(t, rec.Body.String(), "user1@example.com")
}
