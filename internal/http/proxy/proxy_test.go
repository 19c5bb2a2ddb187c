package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diagnosis/reservou/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageProxy_Forwards(t *testing.T) {
	var got *http.Request
	renderer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(r.Context())
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "<h1>dashboard</h1>")
	}))
	defer renderer.Close()

	req := httptest.NewRequest(http.MethodGet, "/dashboard/photos?tab=2", nil)
	req.Header.Set(UserHeader, "spoofed")
	req = req.WithContext(auth.WithPayload(req.Context(), &auth.Payload{UID: "u-1", HID: "h-1"}))
	rec := httptest.NewRecorder()

	NewPageProxy(renderer.URL+"/").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<h1>dashboard</h1>", rec.Body.String())
	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
	require.NotNil(t, got)
	assert.Equal(t, "/dashboard/photos", got.URL.Path)
	assert.Equal(t, "tab=2", got.URL.RawQuery)
	assert.Equal(t, "u-1", got.Header.Get(UserHeader))
	assert.Equal(t, "h-1", got.Header.Get(HotelHeader))
}

func TestPageProxy_PassesRedirectsThrough(t *testing.T) {
	renderer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer renderer.Close()

	rec := httptest.NewRecorder()
	NewPageProxy(renderer.URL).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/elsewhere", rec.Header().Get("Location"))
}

func TestPageProxy_Unconfigured(t *testing.T) {
	rec := httptest.NewRecorder()
	NewPageProxy("").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sign-in", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

func TestPageProxy_RendererDown(t *testing.T) {
	renderer := httptest.NewServer(http.NotFoundHandler())
	url := renderer.URL
	renderer.Close()

	rec := httptest.NewRecorder()
	NewPageProxy(url).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
