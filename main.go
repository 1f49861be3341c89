package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/north-cloud/notify-hub/internal/api"
	"github.com/north-cloud/notify-hub/internal/config"
	"github.com/north-cloud/notify-hub/internal/database"
	"github.com/north-cloud/notify-hub/internal/handler"
	"github.com/north-cloud/notify-hub/internal/hub"
	"github.com/north-cloud/notify-hub/internal/logger"
	"github.com/north-cloud/notify-hub/internal/metrics"
	"github.com/north-cloud/notify-hub/internal/notification"
	"github.com/north-cloud/notify-hub/internal/scheduler"

	_ "github.com/lib/pq"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log, err := createLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Connect(&cfg.Database, log)
	if err != nil {
		log.Error("Failed to connect to database", logger.Error(err))
		return 1
	}
	defer func() { _ = db.Close() }()

	return runServer(cfg, log, db)
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.GetConfigPath("config.yml"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// createLogger creates a logger instance from configuration.
func createLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}

// runServer wires all dependencies and runs the HTTP server until
// shutdown.
func runServer(cfg *config.Config, log logger.Logger, db *sqlx.DB) int {
	m := metrics.New(prometheus.DefaultRegisterer)

	jobStore := database.NewJobRepository(db)
	notificationStore := database.NewNotificationRepository(db)
	userStore := database.NewUserRepository(db)

	pushHub := hub.New(log, m, hub.Options{
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		SendBufferSize: cfg.WebSocket.SendBufferSize,
	})
	defer pushHub.Close()

	notifier := notification.NewService(log, notificationStore, userStore, pushHub, m)
	pushHub.BindReadMarker(notifier)

	sched := scheduler.New(log, jobStore, notifier, pushHub, m, cfg.Scheduler.SweepInterval)

	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		log.Error("Failed to start scheduler", logger.Error(err))
		return 1
	}
	defer sched.Stop()

	handlers := &api.Handlers{
		Notifications: handler.NewNotificationHandler(notifier),
		CronJobs:      handler.NewCronJobHandler(jobStore, sched, pushHub, log),
		Users:         handler.NewUserHandler(userStore),
		WS:            handler.NewWSHandler(pushHub, log),
	}

	server := api.NewServer(cfg, log, m, handlers, func(ctx context.Context) error {
		return db.PingContext(ctx)
	})

	if err := server.Run(ctx); err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}

	log.Info("notify-hub exited cleanly")
	return 0
}
