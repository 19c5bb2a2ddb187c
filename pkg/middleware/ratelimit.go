package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diagnosis/reservou/pkg/logger"
	"github.com/google/uuid"
)

// Limiter records a request for key and reports whether it may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string, requests int, window time.Duration) (bool, error)
}

// RateLimit allows requests per client address and route within window.
// A failing limiter lets the request through. trustProxy selects whether
// forwarding headers name the client.
func RateLimit(l Limiter, requests int, window time.Duration, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + ClientIP(r, trustProxy) + "|" + r.URL.Path

			ok, err := l.Allow(r.Context(), key, requests, window)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				writeError(w, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", uuid.NewString(),
					"too many requests, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP is the peer address. Behind a trusted proxy the first
// X-Forwarded-For hop, then X-Real-IP, take precedence.
func ClientIP(r *http.Request, trustProxy bool) string {
	if !trustProxy {
		return peerIP(r)
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return peerIP(r)
}

func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
