package api

import (
	"github.com/gin-gonic/gin"

	"github.com/north-cloud/notify-hub/internal/handler"
)

// Handlers groups the route handlers the server mounts.
type Handlers struct {
	Notifications *handler.NotificationHandler
	CronJobs      *handler.CronJobHandler
	Users         *handler.UserHandler
	WS            *handler.WSHandler
}

// RegisterRoutes mounts the REST surface and the WebSocket endpoint.
func RegisterRoutes(router *gin.Engine, h *Handlers) {
	router.GET("/ws", h.WS.Handle)

	api := router.Group("/api")

	notifications := api.Group("/notifications")
	notifications.POST("", h.Notifications.Create)
	notifications.GET("/:userId", h.Notifications.ListForUser)
	notifications.POST("/mark-all-read/:userId", h.Notifications.MarkAllRead)

	cronjobs := api.Group("/cronjobs")
	cronjobs.GET("", h.CronJobs.List)
	cronjobs.POST("", h.CronJobs.Create)
	cronjobs.PUT("/:id", h.CronJobs.Update)
	cronjobs.DELETE("/:id", h.CronJobs.Delete)
	cronjobs.POST("/:id/start", h.CronJobs.Start)
	cronjobs.POST("/:id/stop", h.CronJobs.Stop)
	cronjobs.POST("/:id/execute", h.CronJobs.Execute)

	// The user dashboard addresses the job surface under /api/config.
	configJobs := api.Group("/config/cronjobs")
	configJobs.GET("", h.CronJobs.List)
	configJobs.POST("/:id/start", h.CronJobs.Start)
	configJobs.POST("/:id/stop", h.CronJobs.Stop)

	api.GET("/auth/test-notification", h.Users.List)
}
