package http

import (
	"time"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderservice/internal/presentation/http/response"
)

// RequestID reuses an inbound X-Request-ID or assigns a UUID.
func RequestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	})
}

// AccessLog stores a request-scoped logger on the context and logs every
// request once it completes.
func AccessLog(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid := c.Response().Header().Get(echo.HeaderXRequestID)

			reqLogger := logger.With(zap.String("request_id", rid))
			c.Set(response.LoggerKey, reqLogger)

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Int64("bytes", c.Response().Size),
				zap.Duration("duration", time.Since(start)),
			}
			if c.Response().Status >= 500 {
				reqLogger.Warn("http request", fields...)
			} else {
				reqLogger.Info("http request", fields...)
			}
			return nil
		}
	}
}
