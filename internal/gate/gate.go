// Package gate routes page requests by session state: unauthenticated,
// authenticated without a hotel, and authenticated with a hotel.
package gate

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/diagnosis/reservou/pkg/auth"
	"github.com/diagnosis/reservou/pkg/logger"
)

const (
	SignInPath    = "/sign-in"
	SignUpPath    = "/sign-up"
	DashboardPath = "/dashboard"
	SetupPath     = "/setup"
)

var (
	protectedPrefixes = []string{DashboardPath, SetupPath}
	authPrefixes      = []string{SignInPath, SignUpPath}
	accessPathRe      = regexp.MustCompile(`^/access/[^/]+$`)
)

type Decision struct {
	Redirect bool
	Target   string
}

var pass = Decision{}

func redirect(target string) Decision {
	return Decision{Redirect: true, Target: target}
}

// Decide is a pure function of the request path and the session payload
// (nil when unauthenticated).
func Decide(path string, p *auth.Payload) Decision {
	switch {
	case hasAnyPrefix(path, protectedPrefixes):
		if p == nil {
			return redirect(SignInPath + "?redirect=" + escapeRedirect(path))
		}
		if hasPrefix(path, DashboardPath) && !p.HasHotel() {
			return redirect(SetupPath)
		}
		if hasPrefix(path, SetupPath) && p.HasHotel() {
			return redirect(DashboardPath)
		}
		return pass

	case isAuthPath(path):
		if p == nil {
			return pass
		}
		if p.HasHotel() {
			return redirect(DashboardPath)
		}
		return redirect(SetupPath)

	default:
		return pass
	}
}

// escapeRedirect query-escapes path but keeps its slashes readable.
func escapeRedirect(path string) string {
	return strings.ReplaceAll(url.QueryEscape(path), "%2F", "/")
}

func isAuthPath(path string) bool {
	return hasAnyPrefix(path, authPrefixes) || accessPathRe.MatchString(path)
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if hasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// hasPrefix matches whole path segments: "/setup" and "/setup/x" match
// "/setup", "/setupx" does not.
func hasPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '/'
}

// Middleware resolves the session cookie, stores the payload in the request
// context and applies Decide. An undecodable cookie is cleared and the
// request continues as unauthenticated.
func Middleware(codec *auth.Codec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			payload, err := codec.PayloadFromRequest(r)
			if err != nil {
				logger.DebugContext(r.Context(), "Discarding invalid session cookie", "error", err)
				codec.ClearCookie(w)
				payload = nil
			}

			d := Decide(r.URL.Path, payload)
			if d.Redirect {
				http.Redirect(w, r, d.Target, http.StatusTemporaryRedirect)
				return
			}

			ctx := r.Context()
			if payload != nil {
				ctx = auth.WithPayload(ctx, payload)
				ctx = logger.WithUser(ctx, payload.UID, payload.HID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
