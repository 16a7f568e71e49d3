// Package api serves the read side of the pipeline: precomputed metrics
// cache-first with an optional document-store fallback, repository listings,
// cache observability and collector control. It never writes canonical data;
// everything served is a projection of store state.
package api

import (
	"encoding/json"
	"net/http"

	collectorapi "github.com/repolens/repolens/api"
	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/aggregator"
	"github.com/repolens/repolens/internal/store"
	"github.com/repolens/repolens/pkg/log"
)

// Handler manages the query service routes.
type Handler struct {
	Logger    log.Logger
	Config    *cfg.Config
	Docs      store.DocumentStore
	Cache     store.MetricCache
	Collector *collectorapi.CollectorAPI
	agg       *aggregator.Aggregator
}

func NewHandler(logger log.Logger, config *cfg.Config, docs store.DocumentStore, cache store.MetricCache, collector *collectorapi.CollectorAPI) (*Handler, error) {
	agg, err := aggregator.NewAggregator(logger, config, docs, cache)
	if err != nil {
		return nil, err
	}
	return &Handler{
		Logger:    logger,
		Config:    config,
		Docs:      docs,
		Cache:     cache,
		Collector: collector,
		agg:       agg,
	}, nil
}

// RegisterRoutes sets up the HTTP routes for the query service.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)

	mux.HandleFunc("GET /metrics/languages", h.metricHandler(aggregator.MetricLanguages))
	mux.HandleFunc("GET /metrics/locations/map", h.metricHandler(aggregator.MetricLocationsMap))
	mux.HandleFunc("GET /metrics/locations/compare", h.metricHandler(aggregator.MetricLocationsCompare))
	mux.HandleFunc("GET /metrics/rankings", h.getRankings)
	mux.HandleFunc("GET /metrics/trending", h.getTrending)
	mux.HandleFunc("GET /metrics/owners", h.metricHandler(aggregator.MetricOwners))

	mux.HandleFunc("GET /repos", h.getRepos)
	mux.HandleFunc("GET /locations/{location}/repos", h.getLocationRepos)

	mux.HandleFunc("GET /cache/stats", h.getCacheStats)
	mux.HandleFunc("GET /cache/keys", h.getCacheKeys)
	mux.HandleFunc("POST /cache/clear", h.clearCache)
	mux.HandleFunc("POST /cache/refresh", h.refreshCache)

	mux.HandleFunc("POST /collect/start", h.startCollection)
	mux.HandleFunc("POST /collect/stop", h.stopCollection)
	mux.HandleFunc("GET /collect/stats", h.getCollectionStats)
}

// health pings every store and degrades to 503 when any is unreachable.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	stores := h.Collector.GetStoreStatus(r.Context())

	overall, status := "ok", http.StatusOK
	for _, state := range stores {
		if state != "ok" {
			overall, status = "degraded", http.StatusServiceUnavailable
			break
		}
	}

	h.writeJSON(w, r, status, map[string]interface{}{
		"status": overall,
		"stores": stores,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Logger.Error(r.Context(), "Failed to encode JSON response: %v", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.writeJSON(w, r, status, map[string]string{"error": message})
}
