package config

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	defaultServiceName  = "notify-hub"
	defaultServicePort  = 4000
	defaultVersion      = "0.1.0"
	defaultLoggingLevel = "info"
	defaultLoggingFmt   = "json"
	defaultDBHost       = "localhost"
	defaultDBPort       = 5432
	defaultDBName       = "notify_hub"
	defaultDBUser       = "postgres"
	defaultDBSSLMode    = "disable"

	defaultSweepIntervalS = 60
	defaultWriteWaitS     = 10
	defaultPongWaitS      = 60
	defaultSendBufferSize = 32
)

// Config holds the application configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Port        int      `env:"NOTIFY_HUB_PORT" yaml:"port"`
	Debug       bool     `env:"APP_DEBUG"       yaml:"debug"`
	CORSOrigins []string `env:"CORS_ORIGINS"    yaml:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host     string `env:"POSTGRES_NOTIFY_HUB_HOST"     yaml:"host"`
	Port     int    `env:"POSTGRES_NOTIFY_HUB_PORT"     yaml:"port"`
	User     string `env:"POSTGRES_NOTIFY_HUB_USER"     yaml:"user"`
	Password string `env:"POSTGRES_NOTIFY_HUB_PASSWORD" yaml:"password"`
	Database string `env:"POSTGRES_NOTIFY_HUB_DB"       yaml:"database"`
	SSLMode  string `env:"POSTGRES_NOTIFY_HUB_SSLMODE"  yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// URL returns the PostgreSQL URL form of the connection string,
// as expected by golang-migrate.
func (d *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// SchedulerConfig holds job scheduler configuration.
type SchedulerConfig struct {
	// SweepInterval is how often pending scheduled notifications are
	// checked for delivery.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// WebSocketConfig holds push channel configuration.
type WebSocketConfig struct {
	// WriteWait is the time allowed to write a frame to a client.
	WriteWait time.Duration `yaml:"write_wait"`
	// PongWait is the time allowed between pongs before a client is
	// considered dead.
	PongWait time.Duration `yaml:"pong_wait"`
	// SendBufferSize is the per-connection outbound frame buffer.
	SendBufferSize int `yaml:"send_buffer_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from the specified path and applies defaults.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	setDefaults(cfg)
	// Env always wins, including over defaults
	applyEnvOverrides(cfg)
	return cfg, nil
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setSchedulerDefaults(&cfg.Scheduler)
	setWebSocketDefaults(&cfg.WebSocket)
	setLoggingDefaults(&cfg.Logging)
}

func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
}

func setDatabaseDefaults(db *DatabaseConfig) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
}

func setSchedulerDefaults(s *SchedulerConfig) {
	if s.SweepInterval == 0 {
		s.SweepInterval = defaultSweepIntervalS * time.Second
	}
}

func setWebSocketDefaults(ws *WebSocketConfig) {
	if ws.WriteWait == 0 {
		ws.WriteWait = defaultWriteWaitS * time.Second
	}
	if ws.PongWait == 0 {
		ws.PongWait = defaultPongWaitS * time.Second
	}
	if ws.SendBufferSize == 0 {
		ws.SendBufferSize = defaultSendBufferSize
	}
}

func setLoggingDefaults(log *LoggingConfig) {
	if log.Level == "" {
		log.Level = defaultLoggingLevel
	}
	if log.Format == "" {
		log.Format = defaultLoggingFmt
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return &ValidationError{
			Field:   "service.port",
			Message: "must be between 1 and 65535",
		}
	}
	if c.Database.Database == "" {
		return &ValidationError{
			Field:   "database.database",
			Message: "is required",
		}
	}
	return nil
}
