package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	collectorapi "github.com/repolens/repolens/api"
	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/aggregator"
	"github.com/repolens/repolens/internal/model"
	"github.com/repolens/repolens/internal/store/memory"
	"github.com/repolens/repolens/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiHarness struct {
	server *httptest.Server
	config *cfg.Config
	docs   *memory.Docs
	cache  *memory.Cache
}

func newAPIHarness(t *testing.T, tune func(*cfg.Config)) *apiHarness {
	t.Helper()
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)
	if tune != nil {
		tune(config)
	}

	logger, err := log.NewCslLogger()
	require.NoError(t, err)

	graph := memory.NewGraph()
	docs := memory.NewDocs()
	cache := memory.NewCache()
	collector := collectorapi.NewCollectorAPI(logger, config, graph, docs, cache)

	handler, err := NewHandler(logger, config, docs, cache, collector)
	require.NoError(t, err)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &apiHarness{server: server, config: config, docs: docs, cache: cache}
}

func (h *apiHarness) seedRepos(t *testing.T, repos ...model.Repository) {
	t.Helper()
	for _, repo := range repos {
		require.NoError(t, h.docs.UpsertRepository(context.Background(), repo))
	}
}

func seedRepo(id int64, fullName, language, location string, stars int) model.Repository {
	return model.Repository{
		ID:          id,
		FullName:    fullName,
		OwnerLogin:  "acme",
		Language:    language,
		Location:    location,
		Stars:       stars,
		Forks:       stars / 2,
		CollectedAt: time.Now(),
	}
}

func (h *apiHarness) get(t *testing.T, path string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(h.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (h *apiHarness) post(t *testing.T, path string, out interface{}) int {
	t.Helper()
	resp, err := http.Post(h.server.URL+path, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestMetricServedFromCacheAfterRefresh(t *testing.T) {
	h := newAPIHarness(t, nil)
	h.seedRepos(t,
		seedRepo(1, "acme/py-one", "python", "vietnam", 100),
		seedRepo(2, "acme/py-two", "python", "vietnam", 50),
		seedRepo(3, "acme/go-one", "go", "france", 200),
	)

	var refresh aggregator.Report
	require.Equal(t, http.StatusOK, h.post(t, "/cache/refresh", &refresh))
	assert.Equal(t, 3, refresh.ReposScanned)

	var payload metricPayload
	require.Equal(t, http.StatusOK, h.get(t, "/metrics/languages", &payload))
	assert.Equal(t, aggregator.MetricLanguages, payload.Metric)
	assert.Equal(t, "cache", payload.Source)
	assert.Equal(t, refresh.Generation, payload.Generation)
	assert.False(t, payload.ComputedAt.IsZero())

	var stats []aggregator.LanguageStat
	require.NoError(t, json.Unmarshal(payload.Value, &stats))
	require.Len(t, stats, 2)
	assert.Equal(t, "python", stats[0].Name)
	assert.Equal(t, 2, stats[0].TotalRepos)
	assert.Equal(t, 150, stats[0].TotalStars)
}

func TestMetricMissFallsBackToStore(t *testing.T) {
	h := newAPIHarness(t, nil)
	h.seedRepos(t, seedRepo(1, "acme/one", "go", "global", 40))

	var payload metricPayload
	require.Equal(t, http.StatusOK, h.get(t, "/metrics/languages", &payload))
	assert.Equal(t, "store", payload.Source)

	// The fallback pass repopulated the cache, so the next read hits.
	var second metricPayload
	require.Equal(t, http.StatusOK, h.get(t, "/metrics/languages", &second))
	assert.Equal(t, "cache", second.Source)
	assert.Equal(t, payload.Generation, second.Generation)
}

func TestMetricMissWithoutFallbackIs503(t *testing.T) {
	h := newAPIHarness(t, func(c *cfg.Config) {
		c.Api.CacheFallback = false
	})

	var body map[string]string
	require.Equal(t, http.StatusServiceUnavailable, h.get(t, "/metrics/languages", &body))
	assert.Equal(t, "metric not available", body["error"])
}

func TestRankingsAndTrendingSelectors(t *testing.T) {
	h := newAPIHarness(t, nil)
	h.seedRepos(t,
		seedRepo(1, "acme/low-stars", "go", "global", 10),
		seedRepo(2, "acme/high-stars", "go", "global", 500),
	)
	require.Equal(t, http.StatusOK, h.post(t, "/cache/refresh", nil))

	var byForks metricPayload
	require.Equal(t, http.StatusOK, h.get(t, "/metrics/rankings?by=forks", &byForks))
	assert.Equal(t, aggregator.MetricRankingsForks, byForks.Metric)

	var byDefault metricPayload
	require.Equal(t, http.StatusOK, h.get(t, "/metrics/rankings", &byDefault))
	assert.Equal(t, aggregator.MetricRankingsStars, byDefault.Metric)

	var ranked []aggregator.RankedRepo
	require.NoError(t, json.Unmarshal(byDefault.Value, &ranked))
	require.Len(t, ranked, 2)
	assert.Equal(t, "acme/high-stars", ranked[0].FullName)

	require.Equal(t, http.StatusBadRequest, h.get(t, "/metrics/rankings?by=watchers", nil))
	require.Equal(t, http.StatusBadRequest, h.get(t, "/metrics/trending?kind=licenses", nil))

	var trending metricPayload
	require.Equal(t, http.StatusOK, h.get(t, "/metrics/trending?kind=frameworks", &trending))
	assert.Equal(t, aggregator.MetricTrendingFrameworks, trending.Metric)
}

func TestReposPaginationAndSearch(t *testing.T) {
	h := newAPIHarness(t, nil)
	for i := 1; i <= 30; i++ {
		h.seedRepos(t, seedRepo(int64(i), fmt.Sprintf("acme/repo-%02d", i), "go", "global", 1000-i))
	}

	var page struct {
		Repositories []model.Repository `json:"repositories"`
		Pagination   struct {
			Page       int   `json:"page"`
			PageSize   int   `json:"pageSize"`
			TotalCount int64 `json:"totalCount"`
			TotalPages int64 `json:"totalPages"`
		} `json:"pagination"`
	}
	require.Equal(t, http.StatusOK, h.get(t, "/repos?page=2&pageSize=10", &page))
	assert.Len(t, page.Repositories, 10)
	assert.EqualValues(t, 30, page.Pagination.TotalCount)
	assert.EqualValues(t, 3, page.Pagination.TotalPages)
	// Stars descend with id, so page 2 starts at the 11th repo.
	assert.Equal(t, "acme/repo-11", page.Repositories[0].FullName)

	require.Equal(t, http.StatusOK, h.get(t, "/repos?search=repo-07", &page))
	require.Len(t, page.Repositories, 1)
	assert.Equal(t, "acme/repo-07", page.Repositories[0].FullName)
	assert.EqualValues(t, 1, page.Pagination.TotalCount)

	// Out-of-range pages are empty, not errors.
	require.Equal(t, http.StatusOK, h.get(t, "/repos?page=9&pageSize=10", &page))
	assert.Empty(t, page.Repositories)
}

func TestLocationRepos(t *testing.T) {
	h := newAPIHarness(t, nil)
	h.seedRepos(t,
		seedRepo(1, "acme/vn-one", "go", "vietnam", 100),
		seedRepo(2, "acme/vn-two", "go", "vietnam", 300),
		seedRepo(3, "acme/vn-three", "go", "vietnam", 200),
		seedRepo(4, "acme/fr-one", "go", "france", 900),
	)

	var body struct {
		Location     string             `json:"location"`
		Count        int                `json:"count"`
		Repositories []model.Repository `json:"repositories"`
	}
	require.Equal(t, http.StatusOK, h.get(t, "/locations/Vietnam/repos?limit=2", &body))
	assert.Equal(t, "vietnam", body.Location)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Repositories, 2)
	assert.Equal(t, "acme/vn-two", body.Repositories[0].FullName)
}

func TestCacheObservabilityAndClear(t *testing.T) {
	h := newAPIHarness(t, func(c *cfg.Config) {
		c.Api.CacheFallback = false
	})
	h.seedRepos(t, seedRepo(1, "acme/one", "go", "global", 40))
	require.Equal(t, http.StatusOK, h.post(t, "/cache/refresh", nil))

	var keys struct {
		Count int      `json:"count"`
		Keys  []string `json:"keys"`
	}
	require.Equal(t, http.StatusOK, h.get(t, "/cache/keys", &keys))
	assert.Equal(t, len(aggregator.MetricNames()), keys.Count)
	assert.Contains(t, keys.Keys, aggregator.MetricLanguages)

	var stats struct {
		MetricKeys int `json:"metric_keys"`
	}
	require.Equal(t, http.StatusOK, h.get(t, "/cache/stats", &stats))
	assert.Equal(t, len(aggregator.MetricNames()), stats.MetricKeys)

	var cleared struct {
		Cleared int `json:"cleared"`
	}
	require.Equal(t, http.StatusOK, h.post(t, "/cache/clear", &cleared))
	assert.Equal(t, len(aggregator.MetricNames()), cleared.Cleared)

	// Fallback is off, so reads now surface the miss explicitly.
	require.Equal(t, http.StatusServiceUnavailable, h.get(t, "/metrics/languages", nil))
}

func TestHealth(t *testing.T) {
	h := newAPIHarness(t, nil)

	var body struct {
		Status string            `json:"status"`
		Stores map[string]string `json:"stores"`
	}
	require.Equal(t, http.StatusOK, h.get(t, "/health", &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Stores["memgraph"])
	assert.Equal(t, "ok", body.Stores["mongo"])
	assert.Equal(t, "ok", body.Stores["dragonfly"])
}

func TestCollectStatsIdle(t *testing.T) {
	h := newAPIHarness(t, nil)

	var stats collectorapi.RunStats
	require.Equal(t, http.StatusOK, h.get(t, "/collect/stats", &stats))
	assert.False(t, stats.IsRunning)
}

func TestStartCollectionRejectsUnknownMode(t *testing.T) {
	h := newAPIHarness(t, nil)

	var body map[string]string
	require.Equal(t, http.StatusBadRequest, h.post(t, "/collect/start?mode=v7", &body))
	assert.NotEmpty(t, body["error"])
}
