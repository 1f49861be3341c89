package hub

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/north-cloud/notify-hub/internal/events"
	"github.com/north-cloud/notify-hub/internal/logger"
)

// maxCommandSize bounds inbound client frames; commands are tiny.
const maxCommandSize = 1024

// Client command types.
const (
	commandRegister   = "register"
	commandMarkAsRead = "markAsRead"
)

// clientCommand is an inbound client frame. The dashboards disagree on
// the register field name: the admin console sends userId, the user
// dashboard sends user_id. Both are accepted. markAsRead carries
// notificationId.
type clientCommand struct {
	Type           string `json:"type"`
	UserID         string `json:"user_id"`
	UserIDCamel    string `json:"userId"`
	NotificationID string `json:"notificationId"`
}

// userID returns the register target, whichever field name carried it.
func (cmd clientCommand) userID() string {
	if cmd.UserID != "" {
		return cmd.UserID
	}
	return cmd.UserIDCamel
}

// Conn wraps a single WebSocket connection. Outbound frames go through
// a buffered channel so a slow reader never blocks the pusher.
type Conn struct {
	hub  *Hub
	ws   *websocket.Conn
	send chan events.Event
	done chan struct{}

	closed atomic.Bool
}

// Serve attaches a raw WebSocket connection to the hub and runs it until
// the client disconnects. Call from the HTTP upgrade handler; it blocks
// for the lifetime of the connection.
func (h *Hub) Serve(ws *websocket.Conn) {
	c := &Conn{
		hub:  h,
		ws:   ws,
		send: make(chan events.Event, h.opts.SendBufferSize),
		done: make(chan struct{}),
	}

	h.add(c)
	c.trySend(events.NewConnectionEvent("Connected to notify-hub"))

	go c.writePump()
	c.readPump()
}

// trySend queues an event without blocking. Returns false when the
// buffer is full or the connection is closed. The send channel is never
// closed, so a push racing a disconnect lands in the buffer instead of
// panicking; the frame is simply never written.
func (c *Conn) trySend(event events.Event) bool {
	if c.closed.Load() {
		return false
	}

	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// close terminates the connection. Safe to call more than once.
// writePump is signalled through done rather than by closing send.
func (c *Conn) close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	close(c.done)
	_ = c.ws.Close()
}

// readPump parses client commands until the connection drops, then
// removes the binding.
func (c *Conn) readPump() {
	defer c.hub.Unregister(c)

	c.ws.SetReadLimit(maxCommandSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("Connection read error", logger.Error(err))
			}
			return
		}

		var cmd clientCommand
		if unmarshalErr := json.Unmarshal(data, &cmd); unmarshalErr != nil {
			c.trySend(events.NewErrorEvent("invalid message format"))
			continue
		}

		c.dispatch(cmd)
	}
}

// dispatch handles a single client command.
func (c *Conn) dispatch(cmd clientCommand) {
	switch cmd.Type {
	case commandRegister:
		userID := cmd.userID()
		if userID == "" {
			c.trySend(events.NewErrorEvent("register requires a user id"))
			return
		}
		c.hub.Register(c, userID)
		c.trySend(events.NewConnectionEvent("Registered as " + userID))

	case commandMarkAsRead:
		userID, registered := c.hub.boundUser(c)
		if !registered {
			c.trySend(events.NewErrorEvent("register before marking notifications read"))
			return
		}
		if cmd.NotificationID == "" {
			c.trySend(events.NewErrorEvent("markAsRead requires notificationId"))
			return
		}
		if err := c.hub.marker.MarkRead(context.Background(), userID, cmd.NotificationID); err != nil {
			c.hub.log.Error("Failed to mark notification read",
				logger.String("user_id", userID),
				logger.String("notification_id", cmd.NotificationID),
				logger.Error(err),
			)
		}

	default:
		c.trySend(events.NewErrorEvent("unknown message type: " + cmd.Type))
	}
}

// writePump writes queued frames and keeps the connection alive with
// pings. Exits when the connection is torn down or a write fails.
func (c *Conn) writePump() {
	pingInterval := c.hub.opts.PongWait * 9 / 10
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.hub.Unregister(c)
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case event := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.ws.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
