package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/images"
	"github.com/starford/folio/internal/noteservice"
	"github.com/starford/folio/internal/publish"
)

// RouterConfig holds the dependencies of the API router.
type RouterConfig struct {
	Service *noteservice.Service
	Engine  *publish.Engine
	Images  images.Store

	AuthEnabled bool
	Token       string
	CronSecret  string

	// SweepConcurrency bounds parallel publishes in the cron endpoint.
	SweepConcurrency int
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(cfg RouterConfig) chi.Router {
	h := NewHandler(cfg.Service, cfg.Engine, cfg.SweepConcurrency)
	store := cfg.Images
	if store == nil {
		store = images.Disabled{}
	}
	ih := NewImageHandler(store, cfg.Service.Now)

	r := chi.NewRouter()

	// The cron trigger authenticates with its own secret.
	r.With(CronMiddleware(cfg.CronSecret)).Get("/cron/publish", h.CronPublish)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", h.ListNotes)
			r.Post("/", h.CreateNote)
			r.Get("/by-slug/{slug}", h.GetNoteBySlug)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetNote)
				r.Patch("/", h.UpdateNote)
				r.Delete("/", h.DeleteNote)
				r.Get("/links", h.NoteLinks)
				r.Post("/publish", h.Publish)
				r.Post("/unpublish", h.Unpublish)
				r.Post("/generate", h.GenerateDraft)
				r.Post("/titles", h.SuggestTitles)
			})
		})

		r.Get("/tags", h.Tags)
		r.Post("/images", ih.Upload)

		if cfg.Events != nil {
			r.Get("/events", cfg.Events.ServeHTTP)
		}
	})

	return r
}
