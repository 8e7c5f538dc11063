// Package config loads shopsync configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// Supported remote drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Supported hydration conflict strategies.
const (
	StrategyPendingWins   = "pending_wins"
	StrategyLastWriteWins = "last_write_wins"
)

// AppConfig holds process-level settings.
type AppConfig struct {
	Env      string
	DataDir  string
	TenantID string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// RemoteConfig holds the remote relational store configuration.
type RemoteConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// DSN overrides the assembled postgres DSN, or names the file for the sqlite driver.
	DSN             string
	Timeout         time.Duration
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        gormlogger.LogLevel
}

// GetDSN returns the connection string for the configured driver.
func (c *RemoteConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Driver == DriverSQLite {
		return "shopsync-remote.db"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// SyncConfig tunes the engine, queue and trigger surface.
type SyncConfig struct {
	Interval         time.Duration
	ProbeInterval    time.Duration
	MaxAttempts      int
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	ConflictStrategy string
}

// HTTPConfig holds the local daemon listener.
type HTTPConfig struct {
	Addr string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string
}

// Config holds all configuration
type Config struct {
	ServiceName string
	App         AppConfig
	Log         LogConfig
	Remote      RemoteConfig
	Sync        SyncConfig
	HTTP        HTTPConfig
	Metrics     MetricsConfig
}

// Load reads an optional .env file and then the environment.
func Load(serviceName string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: serviceName,
		App: AppConfig{
			Env:      getEnv("APP_ENV", "development"),
			DataDir:  getEnv("DATA_DIR", defaultDataDir()),
			TenantID: getEnv("TENANT_ID", ""),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 20),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 28),
			Compress:   getEnvAsBool("LOG_COMPRESS", false),
		},
		Remote: RemoteConfig{
			Driver:          getEnv("REMOTE_DRIVER", DriverPostgres),
			Host:            getEnv("REMOTE_DB_HOST", "localhost"),
			Port:            getEnv("REMOTE_DB_PORT", "5432"),
			User:            getEnv("REMOTE_DB_USER", "postgres"),
			Password:        getEnv("REMOTE_DB_PASSWORD", ""),
			DBName:          getEnv("REMOTE_DB_NAME", serviceName),
			SSLMode:         getEnv("REMOTE_DB_SSL_MODE", "disable"),
			DSN:             getEnv("REMOTE_DSN", ""),
			Timeout:         getEnvAsDuration("SYNC_REMOTE_TIMEOUT", 15*time.Second),
			MaxIdleConns:    getEnvAsInt("REMOTE_DB_MAX_IDLE_CONNS", 2),
			MaxOpenConns:    getEnvAsInt("REMOTE_DB_MAX_OPEN_CONNS", 8),
			ConnMaxLifetime: getEnvAsDuration("REMOTE_DB_CONN_MAX_LIFETIME", time.Hour),
			LogLevel:        getEnvAsLogLevel("REMOTE_DB_LOG_LEVEL", gormlogger.Warn),
		},
		Sync: SyncConfig{
			Interval:         getEnvAsDuration("SYNC_INTERVAL", 5*time.Minute),
			ProbeInterval:    getEnvAsDuration("SYNC_PROBE_INTERVAL", 30*time.Second),
			MaxAttempts:      getEnvAsInt("SYNC_MAX_ATTEMPTS", 10),
			BackoffBase:      getEnvAsDuration("SYNC_BACKOFF_BASE", 30*time.Second),
			BackoffMax:       getEnvAsDuration("SYNC_BACKOFF_MAX", time.Hour),
			ConflictStrategy: getEnv("SYNC_CONFLICT_STRATEGY", StrategyPendingWins),
		},
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_ADDR", "127.0.0.1:8765"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", serviceName),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the rest of the process cannot honour.
func (c *Config) Validate() error {
	switch c.Remote.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported REMOTE_DRIVER %q", c.Remote.Driver)
	}
	switch c.Sync.ConflictStrategy {
	case StrategyPendingWins, StrategyLastWriteWins:
	default:
		return fmt.Errorf("unsupported SYNC_CONFLICT_STRATEGY %q", c.Sync.ConflictStrategy)
	}
	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("SYNC_MAX_ATTEMPTS must be at least 1")
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("SYNC_REMOTE_TIMEOUT must be positive")
	}
	if c.App.DataDir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	return nil
}

// LogFields returns the configuration as zap fields, without secrets.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.App.Env),
		zap.String("data_dir", c.App.DataDir),
		zap.String("remote_driver", c.Remote.Driver),
		zap.String("remote_host", c.Remote.Host),
		zap.String("remote_db", c.Remote.DBName),
		zap.Duration("sync_interval", c.Sync.Interval),
		zap.String("conflict_strategy", c.Sync.ConflictStrategy),
		zap.String("http_addr", c.HTTP.Addr),
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + string(os.PathSeparator) + "shopsync"
	}
	return ".shopsync"
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as gorm log levels
func getEnvAsLogLevel(key string, defaultValue gormlogger.LogLevel) gormlogger.LogLevel {
	switch strings.ToLower(getEnv(key, "")) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "warn":
		return gormlogger.Warn
	case "info":
		return gormlogger.Info
	default:
		return defaultValue
	}
}
