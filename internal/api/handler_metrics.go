package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/repolens/repolens/internal/aggregator"
	"github.com/repolens/repolens/internal/store"
)

// metricPayload is the wire shape of every metric endpoint. Source says
// where the value came from so a consumer can tell a cache hit from a
// fallback recompute.
type metricPayload struct {
	Metric     string          `json:"metric"`
	Generation string          `json:"generation"`
	ComputedAt time.Time       `json:"computed_at"`
	Source     string          `json:"source"`
	Value      json.RawMessage `json:"value"`
}

func (h *Handler) metricHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.serveMetric(w, r, name)
	}
}

func (h *Handler) getRankings(w http.ResponseWriter, r *http.Request) {
	switch by := r.URL.Query().Get("by"); by {
	case "", "stars":
		h.serveMetric(w, r, aggregator.MetricRankingsStars)
	case "forks":
		h.serveMetric(w, r, aggregator.MetricRankingsForks)
	default:
		h.writeError(w, r, http.StatusBadRequest, "unknown ranking: "+by)
	}
}

func (h *Handler) getTrending(w http.ResponseWriter, r *http.Request) {
	switch kind := r.URL.Query().Get("kind"); kind {
	case "", "topics":
		h.serveMetric(w, r, aggregator.MetricTrendingTopics)
	case "frameworks":
		h.serveMetric(w, r, aggregator.MetricTrendingFrameworks)
	default:
		h.writeError(w, r, http.StatusBadRequest, "unknown trending kind: "+kind)
	}
}

// serveMetric is the cache-first read path. A cached value is served as is.
// On a miss with fallback enabled the metric is recomputed from the
// document store and the cache repopulated; with fallback disabled the miss
// is an explicit 503. Data is never fabricated.
func (h *Handler) serveMetric(w http.ResponseWriter, r *http.Request, name string) {
	ctx := r.Context()

	metric, err := h.Cache.GetMetric(ctx, name)
	if err == nil {
		h.writeMetric(w, r, metric, "cache")
		return
	}
	if !errors.Is(err, store.ErrMetricMiss) {
		h.Logger.Warn(ctx, "Cache read for %s failed, treating as miss: %v", name, err)
	}

	if !h.Config.Api.CacheFallback {
		h.writeError(w, r, http.StatusServiceUnavailable, "metric not available")
		return
	}

	metric, err = h.recompute(ctx, name)
	if err != nil {
		h.Logger.Error(ctx, "Fallback recompute for %s failed: %v", name, err)
		h.writeError(w, r, http.StatusServiceUnavailable, "metric not available")
		return
	}
	h.writeMetric(w, r, metric, "store")
}

// recompute runs an aggregation pass under a fresh generation and re-reads
// the requested metric. The pass repopulates the whole cache, so subsequent
// reads hit again.
func (h *Handler) recompute(ctx context.Context, name string) (*store.Metric, error) {
	if _, err := h.agg.Aggregate(ctx, uuid.NewString()); err != nil {
		return nil, err
	}
	return h.Cache.GetMetric(ctx, name)
}

func (h *Handler) writeMetric(w http.ResponseWriter, r *http.Request, metric *store.Metric, source string) {
	h.writeJSON(w, r, http.StatusOK, metricPayload{
		Metric:     metric.Name,
		Generation: metric.Generation,
		ComputedAt: metric.ComputedAt,
		Source:     source,
		Value:      metric.Value,
	})
}
