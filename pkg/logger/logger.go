package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey string

const (
	RequestIDKey     contextKey = "request_id"
	UserIDKey        contextKey = "user_id"
	HotelIDKey       contextKey = "hotel_id"
	ServiceKey       contextKey = "service"
	CorrelationIDKey contextKey = "correlation_id"
)

var defaultLogger *slog.Logger

func init() {
	Setup(os.Stdout, os.Getenv("LOG_LEVEL"))
}

// Setup replaces the package logger. Tests use it to capture output.
func Setup(w io.Writer, level string) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	switch level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	defaultLogger = slog.New(slog.NewJSONHandler(w, opts))
}

func Default() *slog.Logger {
	return defaultLogger
}

func WithContext(ctx context.Context) *slog.Logger {
	logger := defaultLogger

	for _, key := range []contextKey{RequestIDKey, UserIDKey, HotelIDKey, ServiceKey, CorrelationIDKey} {
		if v := ctx.Value(key); v != nil {
			logger = logger.With(string(key), v)
		}
	}

	return logger
}

// WithUser stores the session identifiers so every log line of the request carries them.
func WithUser(ctx context.Context, userID, hotelID string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	if hotelID != "" {
		ctx = context.WithValue(ctx, HotelIDKey, hotelID)
	}
	return ctx
}

func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}

func DebugContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}
