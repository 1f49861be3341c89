// Package hub implements the real-time push channel: a registry of live
// WebSocket connections bound to user identities, with best-effort
// at-most-once fan-out. A push that cannot be written is dropped; the
// stored notification record is the recovery path.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/north-cloud/notify-hub/internal/events"
	"github.com/north-cloud/notify-hub/internal/logger"
	"github.com/north-cloud/notify-hub/internal/metrics"
)

// ReadMarker acknowledges a notification for a user. Implemented by the
// notification service; bound after construction to break the push/ack
// dependency cycle.
type ReadMarker interface {
	MarkRead(ctx context.Context, userID, notificationID string) error
}

// Options configures connection handling.
type Options struct {
	// WriteWait is the time allowed to write a frame to a client.
	WriteWait time.Duration
	// PongWait is the time allowed between pongs before the connection
	// is considered dead.
	PongWait time.Duration
	// SendBufferSize is the per-connection outbound frame buffer.
	SendBufferSize int
}

// Default connection options.
const (
	DefaultWriteWait      = 10 * time.Second
	DefaultPongWait       = 60 * time.Second
	DefaultSendBufferSize = 32
)

// SetDefaults applies default values to unset options.
func (o *Options) SetDefaults() {
	if o.WriteWait == 0 {
		o.WriteWait = DefaultWriteWait
	}
	if o.PongWait == 0 {
		o.PongWait = DefaultPongWait
	}
	if o.SendBufferSize == 0 {
		o.SendBufferSize = DefaultSendBufferSize
	}
}

// Hub is the process-wide connection registry. Construct one instance
// per process (or per test); it carries no global state.
type Hub struct {
	log     logger.Logger
	opts    Options
	marker  ReadMarker
	metrics *metrics.Metrics

	mu    sync.RWMutex
	conns map[*Conn]string // connection -> bound user ID ("" until registered)
}

// New creates a Hub.
func New(log logger.Logger, m *metrics.Metrics, opts Options) *Hub {
	opts.SetDefaults()
	return &Hub{
		log:     log,
		opts:    opts,
		metrics: m,
		conns:   make(map[*Conn]string),
	}
}

// BindReadMarker wires the markAsRead command target. Must be called
// before the hub accepts connections.
func (h *Hub) BindReadMarker(m ReadMarker) {
	h.marker = m
}

// add tracks a new, not yet registered connection.
func (h *Hub) add(c *Conn) {
	h.mu.Lock()
	h.conns[c] = ""
	h.mu.Unlock()

	h.metrics.WSConnections.Inc()
	h.log.Debug("Connection opened", logger.Int("total_connections", h.ClientCount()))
}

// Register binds a connection to a user identity, replacing any prior
// binding for that connection. A user may hold several connections.
func (h *Hub) Register(c *Conn, userID string) {
	h.mu.Lock()
	h.conns[c] = userID
	h.mu.Unlock()

	h.log.Info("Connection registered", logger.String("user_id", userID))
}

// Unregister removes the connection binding and closes the connection.
// Stored notification state is unaffected.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	_, exists := h.conns[c]
	if exists {
		delete(h.conns, c)
	}
	h.mu.Unlock()

	if exists {
		c.close()
		h.metrics.WSConnections.Dec()
		h.log.Debug("Connection closed", logger.Int("total_connections", h.ClientCount()))
	}
}

// boundUser returns the user bound to a connection, if any.
func (h *Hub) boundUser(c *Conn) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	userID, ok := h.conns[c]
	return userID, ok && userID != ""
}

// PushToUser sends an event to every connection registered to the user.
func (h *Hub) PushToUser(userID string, event events.Event) {
	h.push(event, func(bound string) bool { return bound == userID })
}

// Broadcast sends an event to every registered connection. Connections
// that never sent a register command receive nothing.
func (h *Hub) Broadcast(event events.Event) {
	h.push(event, func(bound string) bool { return bound != "" })
}

// push fans an event out to matching connections. Slow or dead
// connections are dropped, not retried.
func (h *Hub) push(event events.Event, match func(boundUser string) bool) {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for c, bound := range h.conns {
		if match(bound) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	var slow []*Conn
	sent := 0
	for _, c := range targets {
		if c.trySend(event) {
			sent++
		} else {
			slow = append(slow, c)
		}
	}

	for _, c := range slow {
		h.log.Warn("Connection buffer full, dropping slow connection",
			logger.String("event_type", event.Type),
		)
		h.Unregister(c)
	}

	if sent > 0 || len(slow) > 0 {
		h.log.Debug("Event pushed",
			logger.String("event_type", event.Type),
			logger.Int("sent", sent),
			logger.Int("dropped", len(slow)),
		)
	}
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close drops every connection. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[*Conn]string)
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}

	h.metrics.WSConnections.Sub(float64(len(conns)))
	h.log.Info("All connections closed", logger.Int("count", len(conns)))
}
