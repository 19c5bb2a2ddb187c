// Package handlers exposes the services over HTTP.
package handlers

import (
	"net/http"

	"github.com/diagnosis/reservou/internal/gate"
	"github.com/diagnosis/reservou/internal/service"
	"github.com/diagnosis/reservou/pkg/auth"
	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	authService    service.AuthService
	hotelService   service.HotelService
	galleryService service.GalleryService
	codec          *auth.Codec
	appURL         string
}

func New(
	authService service.AuthService,
	hotelService service.HotelService,
	galleryService service.GalleryService,
	codec *auth.Codec,
	appURL string,
) *Handlers {
	return &Handlers{
		authService:    authService,
		hotelService:   hotelService,
		galleryService: galleryService,
		codec:          codec,
		appURL:         appURL,
	}
}

// Mount registers every route on r. throttle wraps the routes that send email
// or accept third-party tokens; idempotent wraps the magic link requests.
// A nil middleware is skipped.
func (h *Handlers) Mount(r chi.Router, throttle, idempotent func(http.Handler) http.Handler) {
	throttle = orPassthrough(throttle)
	idempotent = orPassthrough(idempotent)

	r.Get("/access/{token}", h.AccessLink)
	r.Get("/sign-out", h.SignOut)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(throttle, idempotent).Post("/sign-up", h.SignUp)
			r.With(throttle, idempotent).Post("/sign-in", h.SignIn)
			r.Post("/access", h.Access)
			r.With(throttle).Post("/google/sign-in", h.GoogleSignIn)
			r.With(throttle).Post("/google/sign-up", h.GoogleSignUp)
			r.Get("/me", h.Me)
		})

		r.Get("/zipcode/{zip}", h.ZipCode)

		r.Route("/hotel", func(r chi.Router) {
			r.Post("/setup", h.SetupHotel)
			r.Get("/", h.CurrentHotel)
			r.Patch("/general-info", h.UpdateGeneralInfo)
			r.Put("/amenities", h.UpdateAmenities)
			r.Put("/location", h.UpdateLocation)
			r.Patch("/landing-page", h.UpdateLandingPage)
			r.Put("/banner", h.UpdateBanner)
			r.Get("/photos", h.ListPhotos)
			r.Put("/photos", h.UpdatePhotos)
		})

		r.Route("/hotels", func(r chi.Router) {
			r.Get("/nearby", h.Nearby)
			r.Get("/{slug}", h.PublicHotel)
		})
	})
}

func orPassthrough(m func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if m == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return m
}

// landingFor is where a signed-in user goes next.
func landingFor(p auth.Payload) string {
	if p.HasHotel() {
		return gate.DashboardPath
	}
	return gate.SetupPath
}
