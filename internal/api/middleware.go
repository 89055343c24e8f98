package api

import (
	"time"

	"github.com/droneguard/backend/internal/logging"
	"github.com/labstack/echo/v4"
)

// RequestID attaches a request id to the request context and echoes it in
// the X-Request-ID response header. An incoming header is kept.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()
			if id := req.Header.Get(echo.HeaderXRequestID); id != "" {
				ctx = logging.ContextWithRequestID(ctx, id)
			}
			ctx, id := logging.EnsureRequestID(ctx)
			c.SetRequest(req.WithContext(ctx))
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

// RequestLogger emits one structured line per request. skip suppresses
// logging for noisy paths such as health checks.
func RequestLogger(log logging.Logger, skip func(c echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skip != nil && skip(c) {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let the error handler write the response so the status is final.
				c.Error(err)
			}

			req := c.Request()
			fields := []logging.Field{
				logging.String("method", req.Method),
				logging.String("path", req.URL.Path),
				logging.String("route", c.Path()),
				logging.Int("status", c.Response().Status),
				logging.Int("bytes", int(c.Response().Size)),
				logging.Float("latency_ms", float64(time.Since(start).Microseconds())/1000),
			}
			switch status := c.Response().Status; {
			case status >= 500:
				log.Error(req.Context(), "request", append(fields, logging.Err(err))...)
			case status >= 400:
				log.Warn(req.Context(), "request", fields...)
			default:
				log.Info(req.Context(), "request", fields...)
			}
			return nil
		}
	}
}
