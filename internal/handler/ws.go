package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/north-cloud/notify-hub/internal/hub"
	"github.com/north-cloud/notify-hub/internal/logger"
)

// WebSocket upgrade buffer sizes.
const (
	wsReadBufferSize  = 1024
	wsWriteBufferSize = 1024
)

// WSHandler upgrades HTTP requests to WebSocket connections and hands
// them to the hub.
type WSHandler struct {
	hub      *hub.Hub
	log      logger.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a WSHandler. The dashboards connect from their
// own origin, so cross-origin upgrades are accepted; CORS policy is
// enforced on the REST surface.
func NewWSHandler(h *hub.Hub, log logger.Logger) *WSHandler {
	return &WSHandler{
		hub: h,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsReadBufferSize,
			WriteBufferSize: wsWriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handle upgrades the connection and serves it until disconnect.
func (h *WSHandler) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", logger.Error(err))
		return
	}

	h.hub.Serve(conn)
}
