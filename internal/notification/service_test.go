package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/north-cloud/notify-hub/internal/domain"
	"github.com/north-cloud/notify-hub/internal/events"
	"github.com/north-cloud/notify-hub/internal/logger"
	"github.com/north-cloud/notify-hub/internal/metrics"
	"github.com/north-cloud/notify-hub/internal/notification"
)

type fakeStore struct {
	created   []*domain.Notification
	due       []*domain.Notification
	delivered []string
	readPairs [][2]string
	allRead   int64
}

func (f *fakeStore) Create(_ context.Context, n *domain.Notification) error {
	f.created = append(f.created, n)
	return nil
}

func (f *fakeStore) ListForUser(context.Context, string) ([]*domain.Notification, error) {
	return f.created, nil
}

func (f *fakeStore) ListDue(context.Context, time.Time) ([]*domain.Notification, error) {
	return f.due, nil
}

func (f *fakeStore) MarkDelivered(_ context.Context, id string, _ time.Time) error {
	f.delivered = append(f.delivered, id)
	return nil
}

func (f *fakeStore) MarkRead(_ context.Context, userID, notificationID string) error {
	f.readPairs = append(f.readPairs, [2]string{userID, notificationID})
	return nil
}

func (f *fakeStore) MarkAllRead(context.Context, string) (int64, error) {
	return f.allRead, nil
}

type fakeUsers struct {
	known map[string]bool
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	if f.known[id] {
		return &domain.User{ID: id}, nil
	}
	return nil, domain.NotFoundError("user", id)
}

type fakePusher struct {
	direct    map[string][]events.Event
	broadcast []events.Event
}

func newFakePusher() *fakePusher {
	return &fakePusher{direct: make(map[string][]events.Event)}
}

func (f *fakePusher) PushToUser(userID string, event events.Event) {
	f.direct[userID] = append(f.direct[userID], event)
}

func (f *fakePusher) Broadcast(event events.Event) {
	f.broadcast = append(f.broadcast, event)
}

func newTestService(t *testing.T) (*notification.Service, *fakeStore, *fakePusher) {
	t.Helper()

	store := &fakeStore{}
	pusher := newFakePusher()
	users := &fakeUsers{known: map[string]bool{"admin": true, "user1": true}}
	m := metrics.New(prometheus.NewRegistry())
	svc := notification.NewService(logger.NewNop(), store, users, pusher, m)
	return svc, store, pusher
}

func strPtr(s string) *string { return &s }

func TestCreate_ImmediateBroadcast(t *testing.T) {
	svc, store, pusher := newTestService(t)

	n, err := svc.Create(context.Background(), notification.CreateRequest{
		Title:   "Maintenance",
		Message: "Deploy at noon",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, domain.NotificationTypeInfo, n.Type)
	assert.Equal(t, domain.CategorySystem, n.Category)
	require.NotNil(t, n.DeliveredAt)

	require.Len(t, store.created, 1)
	require.Len(t, pusher.broadcast, 1)
	assert.Equal(t, events.TypeNotification, pusher.broadcast[0].Type)
	assert.Empty(t, pusher.direct)
}

func TestCreate_DirectPush(t *testing.T) {
	svc, _, pusher := newTestService(t)

	_, err := svc.Create(context.Background(), notification.CreateRequest{
		Title:      "Hello",
		Message:    "direct message",
		Category:   domain.CategoryUserToUser,
		FromUserID: strPtr("admin"),
		ToUserID:   strPtr("user1"),
	})
	require.NoError(t, err)

	assert.Empty(t, pusher.broadcast)
	require.Len(t, pusher.direct["user1"], 1)
}

func TestCreate_ScheduledStaysPending(t *testing.T) {
	svc, store, pusher := newTestService(t)

	future := time.Now().Add(time.Hour)
	n, err := svc.Create(context.Background(), notification.CreateRequest{
		Title:       "Reminder",
		Message:     "later",
		ScheduledAt: &future,
	})
	require.NoError(t, err)

	assert.Nil(t, n.DeliveredAt)
	require.Len(t, store.created, 1)
	assert.Empty(t, pusher.broadcast)
	assert.Empty(t, pusher.direct)
}

func TestCreate_PastScheduledAtDeliversImmediately(t *testing.T) {
	svc, _, pusher := newTestService(t)

	past := time.Now().Add(-time.Minute)
	n, err := svc.Create(context.Background(), notification.CreateRequest{
		Title:       "Late",
		Message:     "already due",
		ScheduledAt: &past,
	})
	require.NoError(t, err)

	assert.NotNil(t, n.DeliveredAt)
	assert.Len(t, pusher.broadcast, 1)
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)

	testCases := []struct {
		name string
		req  notification.CreateRequest
	}{
		{name: "missing title", req: notification.CreateRequest{Message: "m"}},
		{name: "missing message", req: notification.CreateRequest{Title: "t"}},
		{name: "bad type", req: notification.CreateRequest{Title: "t", Message: "m", Type: "loud"}},
		{name: "bad category", req: notification.CreateRequest{Title: "t", Message: "m", Category: "misc"}},
		{
			name: "user-to-user without recipients",
			req:  notification.CreateRequest{Title: "t", Message: "m", Category: domain.CategoryUserToUser},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCreate_UnknownRecipient(t *testing.T) {
	svc, store, pusher := newTestService(t)

	_, err := svc.Create(context.Background(), notification.CreateRequest{
		Title:      "Hello",
		Message:    "m",
		Category:   domain.CategoryUserToUser,
		FromUserID: strPtr("admin"),
		ToUserID:   strPtr("ghost"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, store.created)
	assert.Empty(t, pusher.direct)
}

func TestDeliverDue(t *testing.T) {
	svc, store, pusher := newTestService(t)

	user := "user1"
	store.due = []*domain.Notification{
		{ID: "n1", Title: "a", Message: "m"},
		{ID: "n2", Title: "b", Message: "m", ToUserID: &user},
	}

	delivered, err := svc.DeliverDue(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 2, delivered)
	assert.Equal(t, []string{"n1", "n2"}, store.delivered)
	assert.Len(t, pusher.broadcast, 1)
	assert.Len(t, pusher.direct["user1"], 1)
}

func TestCreateFromJob(t *testing.T) {
	svc, store, pusher := newTestService(t)

	err := svc.CreateFromJob(context.Background(), &domain.NotificationPayload{
		Title:   "Scheduled check",
		Message: "all good",
		Type:    domain.NotificationTypeSuccess,
	})
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	assert.Equal(t, domain.CategoryScheduled, store.created[0].Category)
	assert.Len(t, pusher.broadcast, 1)
}

func TestMarkRead_DelegatesToStore(t *testing.T) {
	svc, store, _ := newTestService(t)

	require.NoError(t, svc.MarkRead(context.Background(), "user1", "n1"))
	require.Len(t, store.readPairs, 1)
	assert.Equal(t, [2]string{"user1", "n1"}, store.readPairs[0])
}

func TestMarkAllRead_ReturnsCount(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.allRead = 7

	count, err := svc.MarkAllRead(context.Background(), "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}
