package v1

import (
	"github.com/evyataryagoni/ipglobe/internal/handler"
	"github.com/go-chi/chi/v5"
)

// SetupRoutes configures the /v1 API
func SetupRoutes(batches *handler.BatchHandler, cache *handler.CacheHandler) chi.Router {
	r := chi.NewRouter()

	r.Route("/batches", func(r chi.Router) {
		r.Post("/", batches.CreateBatch)
		r.Get("/{id}", batches.GetBatch)
		r.Get("/{id}/clusters", batches.GetClusters)
	})

	r.Get("/locate", batches.Locate)
	r.Get("/providers", batches.Providers)

	r.Route("/cache", func(r chi.Router) {
		r.Get("/stats", cache.Stats)
		r.Delete("/", cache.Clear)
		r.Post("/evict", cache.Evict)
	})

	return r
}
