package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"imagestudio/internal/http/handlers"
	"imagestudio/internal/middleware"
)

// Options carries the router's cross-cutting configuration.
type Options struct {
	AllowedOrigins  []string
	RateLimitPerMin int
	CountryLookup   middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N("en", opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", app.SessionCreate)
		r.Get("/{id}", app.SessionGet)
		r.Patch("/{id}", app.SessionPatch)
		r.Post("/{id}/mode", app.SessionSwitchMode)
		r.With(generationLimit(opts.RateLimitPerMin)).Post("/{id}/submit", app.SessionSubmit)
	})

	r.Route("/v1/characters", func(r chi.Router) {
		r.Get("/", app.CharactersList)
		r.Post("/", app.CharacterCreate)
		r.Put("/{id}", app.CharacterUpdate)
		r.Delete("/{id}", app.CharacterDelete)
		r.With(generationLimit(opts.RateLimitPerMin)).Post("/portrait", app.CharacterPortrait)
		r.With(generationLimit(opts.RateLimitPerMin)).Post("/{id}/outfit", app.CharacterOutfit)
	})

	r.Route("/v1/gallery", func(r chi.Router) {
		r.Get("/", app.GalleryList)
		r.Get("/download", app.GalleryDownload)
		r.Get("/{id}", app.GalleryGet)
		r.With(generationLimit(opts.RateLimitPerMin)).Post("/{id}/upscale", app.GalleryUpscale)
	})

	r.Route("/v1/credentials", func(r chi.Router) {
		r.Get("/status", app.CredentialsStatus)
		r.Put("/gemini", app.CredentialsSet)
	})

	return r
}

// generationLimit guards the endpoints that spend provider quota.
func generationLimit(perMin int) func(http.Handler) http.Handler {
	if perMin <= 0 {
		perMin = 30
	}
	return middleware.GenerationQuota(perMin, time.Minute)
}
