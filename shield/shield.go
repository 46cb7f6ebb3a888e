// Package shield provides the HTTP middleware stack shared by the API:
// security headers, request body limits, per-IP rate limiting, and request
// tracing with a per-request structured logger.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
//	r.Use(shield.MaxBody(26 << 20))
//	r.Use(shield.TraceID)
//	r.Use(shield.NewRateLimiter(cfg).Middleware)
package shield

import (
	"context"
	"log/slog"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
