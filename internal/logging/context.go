package logging

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type contextKey string

const loggerKey contextKey = "logger"

// FromContext retrieves the logger from the context
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return Get()
	}
	logger, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok {
		return Get()
	}
	return logger
}

// WithContext adds the logger to the context
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithTenant returns a context whose logger carries the tenant id.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return WithContext(ctx, FromContext(ctx).With(zap.String("tenant_id", tenantID)))
}

// FromEcho retrieves the logger from the Echo context
func FromEcho(c echo.Context) *zap.Logger {
	logger, ok := c.Get("logger").(*zap.Logger)
	if !ok {
		return Get()
	}
	return logger
}
