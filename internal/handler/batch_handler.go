package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/evyataryagoni/ipglobe/internal/logger"
	"github.com/evyataryagoni/ipglobe/internal/models"
	"github.com/evyataryagoni/ipglobe/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBatchBody = 1 << 20

// BatchHandler exposes the resolution orchestrator over HTTP
//
// Responsibilities:
//   - Decode requests (JSON body, query parameters, path parameters)
//   - Map service errors to status codes
//   - No resolution logic, that lives in the service layer
type BatchHandler struct {
	service *service.LocateService
	logger  *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(svc *service.LocateService, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		service: svc,
		logger:  log.WithComponent("BatchHandler"),
	}
}

// CreateBatch handles POST /v1/batches
// The batch runs in the background, progress is polled with GetBatch
func (h *BatchHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	run, err := h.service.Start(r.Context(), req, newLogSink(h.logger, middleware.GetReqID(r.Context())))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, models.BatchAccepted{
		BatchID: run.ID,
		Total:   len(run.IPs),
	})
}

// GetBatch handles GET /v1/batches/{id}
// Filter query parameters narrow the outcome list, totals and options are unfiltered
func (h *BatchHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Batch(chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, run.Status(service.FilterFromQuery(r.URL.Query())))
}

// GetClusters handles GET /v1/batches/{id}/clusters
func (h *BatchHandler) GetClusters(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Batch(chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, run.Clusters())
}

// Locate handles GET /v1/locate?ip=<ip>&provider=<name>&bypass_cache=<bool>
// It runs a one-IP batch synchronously and returns its outcome
func (h *BatchHandler) Locate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ip := q.Get("ip")
	if ip == "" {
		respondError(w, http.StatusBadRequest, "Missing 'ip' query parameter")
		return
	}
	if !service.IsValidIP(ip) {
		respondError(w, http.StatusBadRequest, "Invalid IP address format")
		return
	}

	bypass := false
	if raw := q.Get("bypass_cache"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'bypass_cache' query parameter")
			return
		}
		bypass = v
	}

	run, err := h.service.Locate(r.Context(), models.BatchRequest{
		Input:       ip,
		Provider:    q.Get("provider"),
		BypassCache: bypass,
	}, nil)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	outcome := run.Outcomes()[0]
	if !outcome.Succeeded() {
		respondJSON(w, http.StatusBadGateway, outcome)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

// Providers handles GET /v1/providers
func (h *BatchHandler) Providers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{
		"providers": h.service.Providers(),
	})
}

func (h *BatchHandler) respondServiceError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, service.ErrBatchInProgress):
		respondError(w, http.StatusConflict, "A batch is already running, please wait for it to finish")
	case errors.Is(err, service.ErrBatchNotFound):
		respondError(w, http.StatusNotFound, "Batch not found")
	default:
		h.logger.Error().Err(err).Msg("Unexpected service error")
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
