// Package api assembles the HTTP server: middleware, routes, and
// lifecycle management.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/north-cloud/notify-hub/internal/config"
	"github.com/north-cloud/notify-hub/internal/logger"
	"github.com/north-cloud/notify-hub/internal/metrics"
	"github.com/north-cloud/notify-hub/internal/middleware"
)

// Server timeouts.
const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 60 * time.Second
	idleTimeout     = 120 * time.Second
	shutdownTimeout = 30 * time.Second
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker func(ctx context.Context) error

// Server is the HTTP server with lifecycle management.
type Server struct {
	router *gin.Engine
	server *http.Server
	log    logger.Logger
	cfg    *config.Config
}

// NewServer builds the Gin engine with the standard middleware chain
// and the service routes.
func NewServer(
	cfg *config.Config,
	log logger.Logger,
	m *metrics.Metrics,
	handlers *Handlers,
	dbCheck HealthChecker,
) *Server {
	if cfg.Service.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.CORS(cfg.Service.CORSOrigins))
	router.Use(m.HTTPMiddleware())

	router.GET("/health", healthHandler(cfg, dbCheck))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	RegisterRoutes(router, handlers)

	return &Server{
		router: router,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Service.Port),
			Handler:      router,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		log: log,
		cfg: cfg,
	}
}

// Router returns the underlying Gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the server and blocks until the context is cancelled or a
// SIGINT/SIGTERM arrives, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server",
			logger.String("address", s.server.Addr),
			logger.String("service", s.cfg.Service.Name),
			logger.String("version", s.cfg.Service.Version),
		)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.log.Info("Received shutdown signal", logger.String("signal", sig.String()))
	case <-ctx.Done():
		s.log.Info("Context cancelled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.log.Info("HTTP server stopped gracefully")
	return nil
}

// healthHandler reports service health including database reachability.
func healthHandler(cfg *config.Config, dbCheck HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		code := http.StatusOK
		checks := gin.H{}

		if dbCheck != nil {
			if err := dbCheck(c.Request.Context()); err != nil {
				status = "unhealthy"
				code = http.StatusServiceUnavailable
				checks["database"] = gin.H{"status": "unhealthy", "message": err.Error()}
			} else {
				checks["database"] = gin.H{"status": "healthy"}
			}
		}

		c.JSON(code, gin.H{
			"status":  status,
			"service": cfg.Service.Name,
			"version": cfg.Service.Version,
			"checks":  checks,
		})
	}
}
