package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/reservou/internal/geocode"
	"github.com/diagnosis/reservou/internal/http/handlers"
	"github.com/diagnosis/reservou/internal/identity"
	"github.com/diagnosis/reservou/internal/mailer"
	"github.com/diagnosis/reservou/internal/platform/firebase"
	"github.com/diagnosis/reservou/internal/repository"
	"github.com/diagnosis/reservou/internal/service"
	"github.com/diagnosis/reservou/internal/storage"
	"github.com/diagnosis/reservou/internal/tokenstore"
	"github.com/diagnosis/reservou/internal/zipcode"
	"github.com/diagnosis/reservou/pkg/auth"
	"github.com/diagnosis/reservou/pkg/config"
	"github.com/diagnosis/reservou/pkg/database"
	"github.com/diagnosis/reservou/pkg/events"
	"github.com/diagnosis/reservou/pkg/logger"
	mw "github.com/diagnosis/reservou/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type pinger interface {
	tokenstore.Store
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	migrateOnly := flag.String("migrate", "", "apply migrations (up or down) and exit")
	flag.Parse()

	cfg := config.Load()
	logger.Setup(os.Stdout, os.Getenv("LOG_LEVEL"))
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if *migrateOnly != "" {
		if err := repository.Migrate(cfg.Database.URL, *migrateOnly); err != nil {
			logger.Error("Migration failed", "direction", *migrateOnly, "error", err)
			os.Exit(1)
		}
		logger.Info("Migrations applied", "direction", *migrateOnly)
		return
	}
	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(cfg.Database.URL, "up"); err != nil {
			logger.Error("Migration failed", "error", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store, err := newTokenStore(ctx, cfg.Redis)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	bus, err := newEventBus(cfg.NATS)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	verifier, bucket := newFirebaseClients(ctx, cfg.Firebase)

	// Initialize repositories
	userRepo := repository.NewUserRepository(pool)
	hotelRepo := repository.NewHotelRepository(pool)
	rateLimits := repository.NewRateLimitRepository(pool)

	// Initialize services
	codec := auth.NewCodec(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, cfg.IsProduction())
	authService := service.NewAuthService(userRepo, store, newMailer(cfg.Email), codec, verifier, bus, service.AuthOptions{
		AppURL:    cfg.App.URL,
		LinkTTL:   cfg.Auth.MagicLinkTTL,
		SingleUse: cfg.Auth.MagicLinkSingleUse,
	})
	hotelService := service.NewHotelService(
		userRepo,
		hotelRepo,
		geocode.NewClient(cfg.Google.GeocodeBaseURL, cfg.Google.MapsAPIKey),
		zipcode.NewClient(cfg.ZipCode.BaseURL),
		bucket,
		codec,
		bus,
		cfg.Gallery.PhotoURLTTL,
	)
	galleryService := service.NewGalleryService(hotelRepo, bucket, bus, cfg.Gallery.MaxPhotos, cfg.Gallery.PhotoURLTTL)

	h := handlers.New(authService, hotelService, galleryService, codec, cfg.App.URL)

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	r := newRouter(routerDeps{
		cfg:      cfg,
		handlers: h,
		codec:    codec,
		store:    store,
		limiter:  rateLimits,
		checks: map[string]mw.HealthCheck{
			"database": pool.Ping,
			"redis":    store.Ping,
		},
		registry: reg,
	})

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	stopCleanup := make(chan struct{})
	go cleanupRateLimits(rateLimits, stopCleanup)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down reservou api...")
		close(stopCleanup)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	}()

	logger.Info("Starting reservou api", "port", cfg.Server.Port, "env", cfg.App.Env)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func cleanupRateLimits(repo repository.RateLimitRepository, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n, err := repo.CleanupExpired(context.Background())
			if err != nil {
				logger.Warn("Rate limit cleanup failed", "error", err)
				continue
			}
			logger.Debug("Rate limit cleanup", "removed", n)
		}
	}
}

func newTokenStore(ctx context.Context, cfg config.RedisConfig) (pinger, error) {
	if cfg.URL == "" {
		logger.Warn("REDIS_URL not set, magic links are kept in memory")
		return tokenstore.NewMemoryStore(time.Minute), nil
	}
	return tokenstore.NewRedisStore(ctx, cfg.URL, cfg.Password, cfg.DB)
}

func newEventBus(cfg config.NATSConfig) (events.EventBus, error) {
	if cfg.URL == "" {
		logger.Warn("NATS_URL not set, domain events are dropped")
		return events.NoopBus{}, nil
	}
	return events.NewNATSEventBus(cfg.URL)
}

func newMailer(cfg config.EmailConfig) mailer.Service {
	switch {
	case cfg.DevMode:
		logger.Info("Email dev mode, magic links are printed")
		return mailer.NewDevMailer()
	case cfg.MailerSendKey != "":
		return mailer.NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.From)
	default:
		return mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.From, cfg.FromName, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
	}
}

// newFirebaseClients returns the identity verifier and image bucket, or
// their disabled stand-ins when Firebase is not configured or fails to start.
func newFirebaseClients(ctx context.Context, cfg config.FirebaseConfig) (identity.Verifier, storage.Bucket) {
	if !firebase.Enabled(cfg) {
		logger.Warn("FIREBASE_PROJECT_ID not set, google sign-in and image uploads are disabled")
		return identity.Disabled{}, storage.Disabled{}
	}

	app, err := firebase.NewApp(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize firebase", "error", err)
		return identity.Disabled{}, storage.Disabled{}
	}

	var verifier identity.Verifier = identity.Disabled{}
	if v, err := identity.NewFirebaseVerifier(ctx, app); err != nil {
		logger.Error("Failed to initialize firebase auth", "error", err)
	} else {
		verifier = v
	}

	var bucket storage.Bucket = storage.Disabled{}
	if b, err := storage.NewFirebaseBucket(ctx, app); err != nil {
		logger.Error("Failed to open storage bucket", "error", err)
	} else {
		bucket = b
	}
	return verifier, bucket
}
