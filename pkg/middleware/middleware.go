package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/diagnosis/reservou/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

// RequestID adds a unique request ID to each request
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), logger.RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging logs HTTP requests with structured logging
func Logging(next http.Handler) http.Handler {
	return middleware.RequestLogger(&StructuredLogger{})(next)
}

type StructuredLogger struct{}

func (l *StructuredLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &StructuredLogEntry{request: r}
}

type StructuredLogEntry struct {
	request *http.Request
}

func (l *StructuredLogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	log := logger.InfoContext
	if status >= http.StatusInternalServerError {
		log = logger.ErrorContext
	}
	log(l.request.Context(), "http request",
		"method", l.request.Method,
		"path", l.request.URL.Path,
		"status", status,
		"bytes", bytes,
		"elapsed_ms", elapsed.Milliseconds(),
		"remote_addr", l.request.RemoteAddr,
	)
}

func (l *StructuredLogEntry) Panic(v interface{}, stack []byte) {
	logger.ErrorContext(l.request.Context(), "http request panic",
		"panic", v,
		"stack", string(stack),
		"method", l.request.Method,
		"path", l.request.URL.Path,
	)
}

// CORS allows credentialed requests from the given origins.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// ServiceName adds service name to context for logging
func ServiceName(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), logger.ServiceKey, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Recover turns a panic into a 500 response in the API envelope.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			correlationID := uuid.NewString()
			logger.ErrorContext(r.Context(), "recovered from panic",
				"panic", rec,
				"correlation_id", correlationID,
				"path", r.URL.Path,
			)
			writeInternal(w, correlationID)
		}()
		next.ServeHTTP(w, r)
	})
}

func writeInternal(w http.ResponseWriter, correlationID string) {
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", correlationID,
		"an unexpected error occurred, support has been notified")
}

// writeError renders the API error envelope for failures raised before any
// handler runs.
func writeError(w http.ResponseWriter, status int, code, correlationID, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":          code,
			"correlationId": correlationID,
			"message":       message,
			"status":        "error",
			"statusCode":    status,
		},
		"message": message,
		"success": false,
	})
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Health answers /healthz, running every check with a short deadline.
func Health(checks map[string]HealthCheck) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/healthz" {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			status := http.StatusOK
			results := make(map[string]string, len(checks))
			for name, check := range checks {
				if err := check(ctx); err != nil {
					status = http.StatusServiceUnavailable
					results[name] = err.Error()
					logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
					continue
				}
				results[name] = "ok"
			}

			overall := "ok"
			if status != http.StatusOK {
				overall = "degraded"
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status":    overall,
				"checks":    results,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		})
	}
}
