// Package api exposes record, search and batch operations over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/proximity-service/internal/model"
	"github.com/sells-group/proximity-service/internal/poi"
)

// Records is the record lifecycle surface.
type Records interface {
	Create(ctx context.Context, in model.RecordInput) (*model.Record, error)
	Get(ctx context.Context, id string) (*model.Record, error)
	Update(ctx context.Context, id string, in model.RecordInput) (*model.Record, error)
	Delete(ctx context.Context, id string) error
	Seed(ctx context.Context, inputs []model.RecordInput) (int, error)
}

// Searcher answers proximity queries.
type Searcher interface {
	SearchNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) (*model.SearchResponse, error)
}

// Batches runs reconciliation jobs.
type Batches interface {
	FullSync(ctx context.Context) (model.BatchRunResult, error)
	ConsistencyCheck(ctx context.Context) (model.BatchRunResult, error)
	Running() bool
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Records  Records
	Searcher Searcher
	Batches  Batches
	Limits   poi.SearchLimits

	// IndexWriteFailures reports exhausted mirror writes for /health.
	IndexWriteFailures func() int64

	AllowedOrigins []string
}

type handler struct {
	Deps
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	h := &handler{Deps: d}

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/businesses", func(r chi.Router) {
			r.Post("/", h.createRecord)
			r.Post("/seed", h.seed)
			r.Get("/{id}", h.getRecord)
			r.Put("/{id}", h.updateRecord)
			r.Delete("/{id}", h.deleteRecord)
		})
		r.Get("/search/nearby", h.searchNearby)
		r.Route("/admin/sync", func(r chi.Router) {
			r.Post("/full", h.fullSync)
			r.Post("/consistency-check", h.consistencyCheck)
		})
	})

	return r
}
