package logging

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Middleware returns an Echo middleware that logs HTTP requests
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			requestID := c.Request().Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = c.Response().Header().Get(echo.HeaderXRequestID)
			}

			ctxLogger := Get().With(zap.String("request_id", requestID))
			c.Set("logger", ctxLogger)
			c.SetRequest(c.Request().WithContext(WithContext(c.Request().Context(), ctxLogger)))

			err := next(c)

			ctxLogger.Info("HTTP request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			)
			return err
		}
	}
}
