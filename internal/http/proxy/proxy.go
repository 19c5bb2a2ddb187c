// Package proxy forwards page requests that passed the gate to the UI
// renderer.
package proxy

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/diagnosis/reservou/internal/http/response"
	"github.com/diagnosis/reservou/pkg/auth"
	"github.com/diagnosis/reservou/pkg/logger"
)

const (
	UserHeader  = "X-Reservou-User"
	HotelHeader = "X-Reservou-Hotel"
)

var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

type PageProxy struct {
	baseURL string
	client  *http.Client
}

// NewPageProxy forwards to baseURL. An empty baseURL answers every page
// with a NOT_FOUND envelope.
func NewPageProxy(baseURL string) *PageProxy {
	return &PageProxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (p *PageProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if p.baseURL == "" {
		response.Error(w, r, apperror.NotFound("page not found"))
		return
	}

	ctx := r.Context()
	url := p.baseURL + r.URL.RequestURI()
	var body io.Reader
	if r.ContentLength != 0 {
		body = r.Body
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, url, body)
	if err != nil {
		response.Error(w, r, apperror.Internal(err, "build page request"))
		return
	}
	req.ContentLength = r.ContentLength
	copyHeaders(req.Header, r.Header)
	req.Header.Del(UserHeader)
	req.Header.Del(HotelHeader)

	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		req.Header.Set("X-Request-ID", requestID)
	}
	req.Header.Set("X-Forwarded-Host", r.Host)
	if payload := auth.FromContext(ctx); payload != nil {
		req.Header.Set(UserHeader, payload.UID)
		if payload.HasHotel() {
			req.Header.Set(HotelHeader, payload.HID)
		}
	}

	logger.DebugContext(ctx, "Proxying page request", "method", r.Method, "url", url)

	resp, err := p.client.Do(req)
	if err != nil {
		response.Error(w, r, apperror.Internal(fmt.Errorf("request failed: %w", err), "render page"))
		return
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.WarnContext(ctx, "Page response interrupted", "error", err)
	}
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if hopHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
