package handler

import (
	"net/http"

	"github.com/evyataryagoni/ipglobe/internal/cache"
	"github.com/evyataryagoni/ipglobe/internal/logger"
	"github.com/evyataryagoni/ipglobe/internal/models"
)

// CacheHandler handles the cache administration endpoints
type CacheHandler struct {
	cache     *cache.LocationCache
	storeType string
	logger    *logger.Logger
}

// NewCacheHandler creates a new cache handler, storeType is only reported back in stats
func NewCacheHandler(c *cache.LocationCache, storeType string, log *logger.Logger) *CacheHandler {
	return &CacheHandler{
		cache:     c,
		storeType: storeType,
		logger:    log.WithComponent("CacheHandler"),
	}
}

// Stats handles GET /v1/cache/stats
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	n, err := h.cache.Count(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to count cache entries")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, models.CacheStats{
		Entries: n,
		Store:   h.storeType,
	})
}

// Clear handles DELETE /v1/cache
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Clear(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("Failed to clear cache")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Evict handles POST /v1/cache/evict and drops every expired entry
func (h *CacheHandler) Evict(w http.ResponseWriter, r *http.Request) {
	removed, err := h.cache.Evict(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to evict expired entries")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"evicted": removed})
}
