package api

import (
	"clouddb/internal/core"
	"clouddb/internal/logger"
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap ResponseWriter to capture status code
		rw := &responseWriter{w, http.StatusOK}

		next.ServeHTTP(rw, r)

		logger.Log.Info("HTTP request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// Custom response writer to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Context keys
type key int

const (
	sessionKey key = iota
)

func withSession(ctx context.Context, s *core.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFrom returns the caller's session, or nil when anonymous.
func SessionFrom(ctx context.Context) *core.Session {
	s, _ := ctx.Value(sessionKey).(*core.Session)
	return s
}
