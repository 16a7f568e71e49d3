package api

import (
	"net/http"

	"github.com/google/uuid"
)

func (h *Handler) getCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Cache.Stats(r.Context())
	if err != nil {
		h.Logger.Error(r.Context(), "Failed to read cache stats: %v", err)
		h.writeError(w, r, http.StatusServiceUnavailable, "cache unavailable")
		return
	}
	h.writeJSON(w, r, http.StatusOK, stats)
}

func (h *Handler) getCacheKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.Cache.Keys(r.Context())
	if err != nil {
		h.Logger.Error(r.Context(), "Failed to list cache keys: %v", err)
		h.writeError(w, r, http.StatusServiceUnavailable, "cache unavailable")
		return
	}
	if keys == nil {
		keys = []string{}
	}
	h.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"count": len(keys),
		"keys":  keys,
	})
}

// clearCache drops every cached metric. Reads fall back to the document
// store, or 503 when fallback is off, until the next aggregation pass.
func (h *Handler) clearCache(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.Cache.Clear(r.Context())
	if err != nil {
		h.Logger.Error(r.Context(), "Failed to clear cache: %v", err)
		h.writeError(w, r, http.StatusInternalServerError, "failed to clear cache")
		return
	}
	h.Logger.Info(r.Context(), "Cleared %d cached metrics", cleared)
	h.writeJSON(w, r, http.StatusOK, map[string]interface{}{"cleared": cleared})
}

// refreshCache runs the aggregator now under a fresh generation and returns
// its report.
func (h *Handler) refreshCache(w http.ResponseWriter, r *http.Request) {
	report, err := h.agg.Aggregate(r.Context(), uuid.NewString())
	if err != nil {
		h.Logger.Error(r.Context(), "Cache refresh failed: %v", err)
		h.writeError(w, r, http.StatusInternalServerError, "aggregation failed")
		return
	}
	h.writeJSON(w, r, http.StatusOK, report)
}
