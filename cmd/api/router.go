package main

import (
	"net/http"
	"time"

	"github.com/diagnosis/reservou/internal/gate"
	"github.com/diagnosis/reservou/internal/http/handlers"
	"github.com/diagnosis/reservou/internal/http/proxy"
	"github.com/diagnosis/reservou/pkg/auth"
	"github.com/diagnosis/reservou/pkg/config"
	mw "github.com/diagnosis/reservou/pkg/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const idempotencyTTL = 10 * time.Minute

type routerDeps struct {
	cfg      *config.Config
	handlers *handlers.Handlers
	codec    *auth.Codec
	store    mw.IdempotencyStore
	limiter  mw.Limiter
	checks   map[string]mw.HealthCheck
	registry *prometheus.Registry // nil disables /metrics
}

// newRouter assembles the middleware chain and routes. chi requires every
// middleware to be registered before the first route.
func newRouter(d routerDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("reservou-api"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(mw.CORS([]string{d.cfg.App.URL}))

	var metrics *mw.Metrics
	if d.registry != nil {
		metrics = mw.NewMetrics("reservou", d.registry)
		r.Use(metrics.Middleware)
	}
	r.Use(mw.Health(d.checks))
	r.Use(gate.Middleware(d.codec))

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}
	d.handlers.Mount(r,
		mw.RateLimit(d.limiter, d.cfg.RateLimit.Requests, d.cfg.RateLimit.Window, d.cfg.Server.TrustProxy),
		mw.Idempotency(d.store, idempotencyTTL),
	)
	r.NotFound(proxy.NewPageProxy(d.cfg.App.FrontendURL).ServeHTTP)
	return r
}
