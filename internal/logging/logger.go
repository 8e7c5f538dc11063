// Package logging provides structured logging for shopsync.
package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	apperrors "github.com/assistpro/shopsync/internal/errors"
)

// Config holds logger configuration.
type Config struct {
	Level       string
	Environment string
	Service     string

	// File enables a rotated JSON log file next to the console output.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var (
	mu     sync.RWMutex
	global *zap.Logger
)

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(name string) zapcore.Level {
	switch strings.ToLower(name) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init builds the global logger from cfg and replaces zap's globals.
func Init(cfg Config) error {
	logger, err := New(cfg)
	if err != nil {
		return err
	}
	Set(logger)
	zap.ReplaceGlobals(logger)
	return nil
}

// New builds a logger without installing it.
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(ParseLevel(cfg.Level))

	var encCfg zapcore.EncoderConfig
	var consoleEnc zapcore.Encoder
	if cfg.Environment == "production" {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "timestamp"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		consoleEnc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEnc = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), level),
	}

	if cfg.File != "" {
		fileEncCfg := zap.NewProductionEncoderConfig()
		fileEncCfg.TimeKey = "timestamp"
		fileEncCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 20),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncCfg), zapcore.AddSync(rotator), level))
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if cfg.Environment != "production" {
		opts = append(opts, zap.Development())
	}

	fields := []zap.Field{zap.String("environment", cfg.Environment)}
	if cfg.Service != "" {
		fields = append(fields, zap.String("service", cfg.Service))
	}

	return zap.New(zapcore.NewTee(cores...), opts...).With(fields...), nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Set replaces the global logger. A nil logger resets to the default.
func Set(logger *zap.Logger) {
	mu.Lock()
	global = logger
	mu.Unlock()
}

// Get returns the global logger, creating an info-level console logger on first use.
func Get() *zap.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global, _ = New(Config{Level: "info", Environment: "development"})
	}
	return global
}

// Convenience functions using global logger

func Debug(message string, fields ...zap.Field) {
	Get().Debug(message, fields...)
}

func Info(message string, fields ...zap.Field) {
	Get().Info(message, fields...)
}

func Warn(message string, fields ...zap.Field) {
	Get().Warn(message, fields...)
}

func Error(message string, err error, fields ...zap.Field) {
	Get().Error(message, append(fields, zap.Error(err))...)
}

// ErrorWithCode logs err together with its application error code.
func ErrorWithCode(message string, code apperrors.ErrorCode, err error, fields ...zap.Field) {
	Get().Error(message, append(fields, zap.String("code", string(code)), zap.Error(err))...)
}
