package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/aggregator"
	"github.com/repolens/repolens/internal/model"
	"github.com/repolens/repolens/internal/store"
	"github.com/repolens/repolens/internal/store/memory"
	"github.com/repolens/repolens/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type directHarness struct {
	collector *DirectCollector
	config    *cfg.Config
	graph     *memory.Graph
	docs      *memory.Docs
	cache     *memory.Cache
}

func newDirectHarness(t *testing.T, baseUrl string, tune func(*cfg.Config)) *directHarness {
	t.Helper()
	config := testConfig(t, baseUrl, tune)

	logger, err := log.NewCslLogger()
	require.NoError(t, err)

	graph := memory.NewGraph()
	docs := memory.NewDocs()
	cache := memory.NewCache()
	collector, err := NewDirectCollector(logger, config, graph, docs, cache)
	require.NoError(t, err)

	return &directHarness{
		collector: collector,
		config:    config,
		graph:     graph,
		docs:      docs,
		cache:     cache,
	}
}

func testConfig(t *testing.T, baseUrl string, tune func(*cfg.Config)) *cfg.Config {
	t.Helper()
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)

	config.GithubApi.BaseUrl = baseUrl
	config.GithubApi.PerPage = 2
	config.GithubApi.MaxRetries = 2
	config.GithubApi.BackoffInitialMs = 1
	config.GithubApi.BackoffMaxMs = 2
	config.GithubApi.RequestsPerSecond = 1000
	config.Crawler.Languages = []string{"python"}
	config.Crawler.ReposPerLanguage = 3
	config.Crawler.Workers = 2
	config.Crawler.Profiles = nil
	if tune != nil {
		tune(config)
	}
	return config
}

func searchItem(id int64, name, language string, stars int) map[string]interface{} {
	return map[string]interface{}{
		"id":        id,
		"name":      name,
		"full_name": "acme/" + name,
		"owner": map[string]interface{}{
			"login": "acme", "id": 7, "type": "Organization",
		},
		"language":         language,
		"stargazers_count": stars,
		"forks_count":      stars / 2,
	}
}

func writeSearchPage(w http.ResponseWriter, items []map[string]interface{}) {
	w.Header().Set("X-RateLimit-Remaining", "100")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"total_count":        1000,
		"incomplete_results": false,
		"items":              items,
	})
}

func searchLanguage(r *http.Request) string {
	for _, field := range strings.Fields(r.URL.Query().Get("q")) {
		if lang, ok := strings.CutPrefix(field, "language:"); ok {
			return lang
		}
	}
	return ""
}

func pageParams(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	return page, perPage
}

func slicePage(all []map[string]interface{}, page, perPage int) []map[string]interface{} {
	start := (page - 1) * perPage
	if start >= len(all) {
		return nil
	}
	return all[start:min(start+perPage, len(all))]
}

func TestDirectCollectEndToEnd(t *testing.T) {
	fixtures := map[string][]map[string]interface{}{
		"python": {
			searchItem(101, "py-one", "Python", 300),
			searchItem(102, "py-two", "Python", 250),
			searchItem(103, "py-three", "Python", 200),
			searchItem(104, "py-four", "Python", 150),
			searchItem(105, "py-five", "Python", 100),
		},
		"go": {
			searchItem(201, "go-one", "Go", 500),
			searchItem(202, "go-two", "Go", 400),
		},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, perPage := pageParams(r)
		writeSearchPage(w, slicePage(fixtures[searchLanguage(r)], page, perPage))
	}))
	defer server.Close()

	h := newDirectHarness(t, server.URL, func(c *cfg.Config) {
		c.Crawler.Languages = []string{"python", "go"}
	})

	report, err := h.collector.Collect(context.Background())
	require.NoError(t, err)

	// Python hits its target of 3, go runs out of results at 2.
	assert.Equal(t, 5, report.ReposIngested)
	assert.Equal(t, map[string]int{"python": 3, "go": 2}, report.Languages)
	assert.True(t, report.Ok(), "no skips expected: %+v", report)
	assert.False(t, report.Aborted)
	assert.NotEmpty(t, report.RunID)
	assert.Positive(t, report.EntitiesUpserted)
	assert.Positive(t, report.DocumentsUpserted)
	assert.Equal(t, 100, report.Quota.Remaining)

	count, err := h.docs.CountRepositories(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)

	assert.True(t, h.graph.HasNode(model.EntityRepository, "101"))
	assert.True(t, h.graph.HasNode(model.EntityOrganization, "acme"))
	assert.True(t, h.graph.HasNode(model.EntityLanguage, "go"))

	metric, err := h.cache.GetMetric(context.Background(), aggregator.MetricLanguages)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, metric.Generation)
}

func TestCollectSkipsFailingPageAndContinues(t *testing.T) {
	fixture := []map[string]interface{}{
		searchItem(101, "one", "Python", 60),
		searchItem(102, "two", "Python", 50),
		searchItem(103, "three", "Python", 40),
		searchItem(104, "four", "Python", 30),
		searchItem(105, "five", "Python", 20),
		searchItem(106, "six", "Python", 10),
	}
	var pageTwoHits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, perPage := pageParams(r)
		if page == 2 {
			atomic.AddInt32(&pageTwoHits, 1)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeSearchPage(w, slicePage(fixture, page, perPage))
	}))
	defer server.Close()

	h := newDirectHarness(t, server.URL, func(c *cfg.Config) {
		c.Crawler.ReposPerLanguage = 4
	})

	report, err := h.collector.Collect(context.Background())
	require.NoError(t, err)

	// Pages 1 and 3 land, page 2 is skipped after the retry budget.
	assert.Equal(t, 4, report.ReposIngested)
	require.Len(t, report.PagesSkipped, 1)
	assert.Equal(t, "python", report.PagesSkipped[0].Language)
	assert.Equal(t, 2, report.PagesSkipped[0].Page)
	assert.EqualValues(t, 2, atomic.LoadInt32(&pageTwoHits))
	assert.False(t, report.Aborted)

	count, err := h.docs.CountRepositories(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	// A degraded run still refreshes the cache with what it has.
	_, err = h.cache.GetMetric(context.Background(), aggregator.MetricLanguages)
	require.NoError(t, err)
}

func TestCollectDeduplicatesAcrossPages(t *testing.T) {
	// Search windows drift while paging: repository 102 shows up on both
	// pages and must be ingested once.
	pages := map[int][]map[string]interface{}{
		1: {searchItem(101, "one", "Python", 60), searchItem(102, "two", "Python", 50)},
		2: {searchItem(102, "two", "Python", 50), searchItem(103, "three", "Python", 40)},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := pageParams(r)
		writeSearchPage(w, pages[page])
	}))
	defer server.Close()

	h := newDirectHarness(t, server.URL, nil)

	report, err := h.collector.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.ReposIngested)
	count, err := h.docs.CountRepositories(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestCollectAbortsWhenQuotaExhaustedBeyondBudget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(10*time.Minute).Unix(), 10))
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
	}))
	defer server.Close()

	h := newDirectHarness(t, server.URL, func(c *cfg.Config) {
		c.GithubApi.QuotaMaxWaitMin = 1
	})

	report, err := h.collector.Collect(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Aborted)
	assert.Contains(t, report.AbortReason, "quota exhausted")
	assert.Zero(t, report.ReposIngested)

	count, err := h.docs.CountRepositories(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCollectCancelledBeforeStart(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeSearchPage(w, nil)
	}))
	defer server.Close()

	h := newDirectHarness(t, server.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := h.collector.Collect(ctx)
	require.NoError(t, err)

	assert.True(t, report.Aborted)
	assert.Zero(t, atomic.LoadInt32(&hits))
	assert.Len(t, report.MetricsSkipped, len(aggregator.MetricNames()))

	_, err = h.cache.GetMetric(context.Background(), aggregator.MetricLanguages)
	assert.ErrorIs(t, err, store.ErrMetricMiss)
}

func TestCollectProfileFlow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/users/octocat":
			fmt.Fprint(w, `{
				"login": "octocat", "id": 583231, "type": "User",
				"name": "The Octocat", "location": "San Francisco",
				"followers": 4000, "public_repos": 8,
				"created_at": "2011-01-25T18:44:36Z"
			}`)
		case r.URL.Path == "/users/octocat/repos":
			_ = json.NewEncoder(w).Encode([]map[string]interface{}{
				{
					"id": 9001, "name": "hello", "full_name": "octocat/hello",
					"owner":    map[string]interface{}{"login": "octocat", "id": 583231, "type": "User"},
					"language": "JavaScript", "stargazers_count": 120,
				},
			})
		default:
			writeSearchPage(w, nil)
		}
	}))
	defer server.Close()

	h := newDirectHarness(t, server.URL, func(c *cfg.Config) {
		c.Crawler.Profiles = []string{"octocat"}
	})

	report, err := h.collector.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.ProfilesIngested)
	assert.Equal(t, 1, report.ReposIngested)

	owner, ok := h.docs.Owner("octocat")
	require.True(t, ok)
	assert.Equal(t, "San Francisco", owner.City)
	assert.Equal(t, 4000, owner.Followers)

	assert.True(t, h.graph.HasNode(model.EntityUser, "octocat"))
	assert.True(t, h.graph.HasNode(model.EntityCity, "San Francisco"))
	assert.True(t, h.graph.HasNode(model.EntityRepository, "9001"))
	assert.True(t, h.graph.HasEdge(model.Relationship{
		Kind: model.RelLocatedIn,
		From: model.Ref{Entity: model.EntityUser, Key: "octocat"},
		To:   model.Ref{Entity: model.EntityCity, Key: "San Francisco"},
	}))
}

func TestCollectValidationFailureIsFatal(t *testing.T) {
	h := newDirectHarness(t, "http://127.0.0.1:0", func(c *cfg.Config) {
		c.GithubApi.AccessToken = ""
	})

	report, err := h.collector.Collect(context.Background())
	assert.ErrorIs(t, err, cfg.ErrMissingToken)
	assert.Nil(t, report)
}

type publisherRecorder struct {
	mu   sync.Mutex
	fail bool
	keys []string
	msgs []model.BatchMessage
}

func (p *publisherRecorder) Publish(ctx context.Context, key string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return fmt.Errorf("broker unreachable")
	}
	msg, ok := value.(model.BatchMessage)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", value)
	}
	p.keys = append(p.keys, key)
	p.msgs = append(p.msgs, msg)
	return nil
}

func TestKafkaCollectorPublishesBatches(t *testing.T) {
	fixture := []map[string]interface{}{
		searchItem(101, "one", "Python", 60),
		searchItem(102, "two", "Python", 50),
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, perPage := pageParams(r)
		writeSearchPage(w, slicePage(fixture, page, perPage))
	}))
	defer server.Close()

	config := testConfig(t, server.URL, func(c *cfg.Config) {
		c.Crawler.Mode = cfg.ModeKafka
		c.Crawler.ReposPerLanguage = 2
	})
	logger, err := log.NewCslLogger()
	require.NoError(t, err)
	recorder := &publisherRecorder{}
	collector, err := NewKafkaCollector(logger, config, recorder)
	require.NoError(t, err)

	report, err := collector.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, cfg.ModeKafka, report.Mode)
	assert.Equal(t, 1, report.BatchesPublished)
	assert.Equal(t, 2, report.ReposIngested)
	require.Len(t, recorder.msgs, 1)
	assert.Equal(t, model.BatchMessageKey, recorder.keys[0])
	assert.Equal(t, report.RunID, recorder.msgs[0].RunID)
	assert.Len(t, recorder.msgs[0].Batch.Repositories, 2)
}

func TestKafkaCollectorReportsFailedPublish(t *testing.T) {
	fixture := []map[string]interface{}{searchItem(101, "one", "Python", 60)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, perPage := pageParams(r)
		writeSearchPage(w, slicePage(fixture, page, perPage))
	}))
	defer server.Close()

	config := testConfig(t, server.URL, func(c *cfg.Config) {
		c.Crawler.Mode = cfg.ModeKafka
		c.Crawler.ReposPerLanguage = 1
	})
	logger, err := log.NewCslLogger()
	require.NoError(t, err)
	collector, err := NewKafkaCollector(logger, config, &publisherRecorder{fail: true})
	require.NoError(t, err)

	report, err := collector.Collect(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Aborted)
	assert.Zero(t, report.BatchesPublished)
	require.Len(t, report.BatchErrors, 1)
	assert.Equal(t, "kafka", report.BatchErrors[0].Store)
}

func TestFactoryCollector(t *testing.T) {
	config := testConfig(t, "http://127.0.0.1:0", nil)
	logger, err := log.NewCslLogger()
	require.NoError(t, err)

	direct, err := FactoryCollector(cfg.ModeDirect, logger, config, memory.NewGraph(), memory.NewDocs(), memory.NewCache())
	require.NoError(t, err)
	assert.IsType(t, &DirectCollector{}, direct)

	kafka, err := FactoryCollector(cfg.ModeKafka, logger, config, nil, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &KafkaCollector{}, kafka)

	_, err = FactoryCollector("v9", logger, config, nil, nil, nil)
	assert.Error(t, err)
}
