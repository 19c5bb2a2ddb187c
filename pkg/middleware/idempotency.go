package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/diagnosis/reservou/pkg/logger"
)

// IdempotencyStore is the subset of the token store the middleware needs.
type IdempotencyStore interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// maxIdempotentBody bounds how much of a body is hashed into the key.
const maxIdempotentBody = 1 << 20

// Idempotency replays the first successful response of a POST carrying an
// Idempotency-Key header for ttl. The key covers the path and the body, so
// a retry with a different body runs again. Requests without the header
// pass through.
func Idempotency(store IdempotencyStore, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBody))
			r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(body), r.Body), Closer: r.Body}
			if err != nil {
				logger.WarnContext(r.Context(), "idempotency body read failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			storeKey := idempotencyKey(r.URL.Path, key, body)

			var cached cachedResponse
			found, err := store.Get(r.Context(), storeKey, &cached)
			if err != nil {
				logger.WarnContext(r.Context(), "idempotency lookup failed", "error", err)
			}
			if found {
				w.Header().Set("Content-Type", cached.ContentType)
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(cached.Status)
				_, _ = w.Write(cached.Body)
				return
			}

			recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(recorder, r)

			if recorder.statusCode >= 200 && recorder.statusCode < 300 {
				resp := cachedResponse{
					Status:      recorder.statusCode,
					ContentType: recorder.Header().Get("Content-Type"),
					Body:        recorder.body,
				}
				if err := store.Set(r.Context(), storeKey, resp, ttl); err != nil {
					logger.WarnContext(r.Context(), "idempotency store failed", "error", err)
				}
			}
		})
	}
}

func idempotencyKey(path, key string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(key))
	h.Write([]byte{0})
	h.Write(body)
	return fmt.Sprintf("idempotency:%x", h.Sum(nil))
}

type readCloser struct {
	io.Reader
	io.Closer
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       []byte
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(body []byte) (int, error) {
	r.body = append(r.body, body...)
	return r.ResponseWriter.Write(body)
}
