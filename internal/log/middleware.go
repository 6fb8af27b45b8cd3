package log

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
	// RequestIDContextKey is the context key for the request id
	RequestIDContextKey ContextKey = "request_id"
)

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// RequestID returns the request id stored by Middleware, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return id
	}
	return ""
}

// Middleware tags each request with an id, stores a request-scoped logger in
// the context and logs request start and completion.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := GenerateRequestID()
			reqLogger := logger.With(FieldRequestID, requestID)

			ctx := context.WithValue(r.Context(), LoggerContextKey, reqLogger)
			ctx = context.WithValue(ctx, RequestIDContextKey, requestID)
			r = r.WithContext(ctx)

			reqLogger.InfoContext(ctx, "HTTP request started",
				NewFields().
					WithHTTPRequest(r.Method, r.URL.Path, r.Header.Get("User-Agent")).
					ToSlice()...)

			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if rw.statusCode >= 400 && rw.statusCode < 500 {
				level = slog.LevelWarn
			} else if rw.statusCode >= 500 {
				level = slog.LevelError
			}

			fields := NewFields().
				WithHTTPRequest(r.Method, r.URL.Path, "").
				WithHTTPResponse(rw.statusCode, duration.Milliseconds())
			fields[FieldDurationHuman] = duration.String()
			reqLogger.Logger.Log(ctx, level, "HTTP request completed", reqLogger.tag(fields.ToSlice())...)
		})
	}
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
