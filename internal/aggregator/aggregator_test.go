package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/model"
	"github.com/repolens/repolens/internal/store"
	"github.com/repolens/repolens/internal/store/memory"
	"github.com/repolens/repolens/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAggregator(t *testing.T) (*Aggregator, *memory.Docs, *memory.Cache) {
	t.Helper()
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)
	logger, err := log.NewCslLogger()
	require.NoError(t, err)

	docs := memory.NewDocs()
	cache := memory.NewCache()
	a, err := NewAggregator(logger, config, docs, cache)
	require.NoError(t, err)
	return a, docs, cache
}

func seedRepos(t *testing.T, docs *memory.Docs) {
	t.Helper()
	repos := []model.Repository{
		{ID: 1, FullName: "octocat/hello", OwnerLogin: "octocat", Language: "python", Location: "tunisia",
			Stars: 120, Forks: 30, Topics: []string{"web", "django"}, Frameworks: []string{"Django"}},
		{ID: 2, FullName: "octocat/tools", OwnerLogin: "octocat", Language: "python", Location: "tunisia",
			Stars: 80, Forks: 10, Topics: []string{"cli"}},
		{ID: 3, FullName: "acme/svc", OwnerLogin: "acme", Language: "go", Location: "france",
			Stars: 300, Forks: 90, Topics: []string{"web"}, Frameworks: []string{"Gin"}},
		{ID: 4, FullName: "acme/lib", OwnerLogin: "acme", Language: "go", Location: "atlantis",
			Stars: 10, Forks: 1},
	}
	for _, repo := range repos {
		require.NoError(t, docs.UpsertRepository(context.Background(), repo))
	}
}

func decodeMetric[T any](t *testing.T, metric *store.Metric) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(metric.Value, &out))
	return out
}

func TestAggregateComputesLanguages(t *testing.T) {
	a, docs, cache := testAggregator(t)
	seedRepos(t, docs)

	report, err := a.Aggregate(context.Background(), "gen-1")
	require.NoError(t, err)
	assert.Equal(t, 4, report.ReposScanned)
	assert.ElementsMatch(t, MetricNames(), report.MetricsWritten)
	assert.Empty(t, report.Skipped)

	metric, err := cache.GetMetric(context.Background(), MetricLanguages)
	require.NoError(t, err)
	stats := decodeMetric[[]LanguageStat](t, metric)
	require.Len(t, stats, 2)

	// Both languages have two repos, ties break by name.
	assert.Equal(t, "go", stats[0].Name)
	assert.Equal(t, 2, stats[0].TotalRepos)
	assert.Equal(t, 310, stats[0].TotalStars)
	assert.Equal(t, 155.0, stats[0].AvgStars)
	assert.Equal(t, 1, stats[0].UniqueOwners)
	assert.Equal(t, "python", stats[1].Name)
	assert.Equal(t, 200, stats[1].TotalStars)
}

func TestAggregateLocationRollups(t *testing.T) {
	a, docs, cache := testAggregator(t)
	seedRepos(t, docs)

	_, err := a.Aggregate(context.Background(), "gen-1")
	require.NoError(t, err)

	compare, err := cache.GetMetric(context.Background(), MetricLocationsCompare)
	require.NoError(t, err)
	locations := decodeMetric[[]LocationStat](t, compare)
	require.Len(t, locations, 3)

	// Locations without known coordinates stay in compare but are left off
	// the map.
	mapMetric, err := cache.GetMetric(context.Background(), MetricLocationsMap)
	require.NoError(t, err)
	points := decodeMetric[[]MapPoint](t, mapMetric)
	require.Len(t, points, 2)
	for _, point := range points {
		assert.NotEqual(t, "atlantis", point.Location)
		assert.NotZero(t, point.Latitude)
	}
}

func TestAggregateRankings(t *testing.T) {
	a, docs, cache := testAggregator(t)
	seedRepos(t, docs)

	_, err := a.Aggregate(context.Background(), "gen-1")
	require.NoError(t, err)

	stars, err := cache.GetMetric(context.Background(), MetricRankingsStars)
	require.NoError(t, err)
	ranked := decodeMetric[[]RankedRepo](t, stars)
	require.Len(t, ranked, 4)
	assert.Equal(t, "acme/svc", ranked[0].FullName)
	assert.Equal(t, 300, ranked[0].Stars)

	forks, err := cache.GetMetric(context.Background(), MetricRankingsForks)
	require.NoError(t, err)
	rankedForks := decodeMetric[[]RankedRepo](t, forks)
	assert.Equal(t, "acme/svc", rankedForks[0].FullName)
	assert.Equal(t, "octocat/hello", rankedForks[1].FullName)
}

func TestAggregateStampsGenerationAndFreshness(t *testing.T) {
	a, docs, cache := testAggregator(t)
	seedRepos(t, docs)
	start := time.Now()

	report, err := a.Aggregate(context.Background(), "run-42")
	require.NoError(t, err)
	assert.Equal(t, "run-42", report.Generation)

	for _, name := range MetricNames() {
		metric, err := cache.GetMetric(context.Background(), name)
		require.NoError(t, err, name)
		assert.Equal(t, "run-42", metric.Generation, name)
		assert.False(t, metric.ComputedAt.Before(start.Add(-time.Second)), name)
	}
}

func TestMetricMissBeforeAnyRun(t *testing.T) {
	_, _, cache := testAggregator(t)
	_, err := cache.GetMetric(context.Background(), MetricLanguages)
	assert.ErrorIs(t, err, store.ErrMetricMiss)
}

func TestAggregateReplacesWholesale(t *testing.T) {
	a, docs, cache := testAggregator(t)
	seedRepos(t, docs)
	_, err := a.Aggregate(context.Background(), "gen-1")
	require.NoError(t, err)

	// A new repository in a new language must appear in the next generation
	// and the old value must be fully replaced, not merged.
	require.NoError(t, docs.UpsertRepository(context.Background(), model.Repository{
		ID: 5, FullName: "new/rusty", OwnerLogin: "new", Language: "rust", Stars: 5,
	}))
	_, err = a.Aggregate(context.Background(), "gen-2")
	require.NoError(t, err)

	metric, err := cache.GetMetric(context.Background(), MetricLanguages)
	require.NoError(t, err)
	assert.Equal(t, "gen-2", metric.Generation)
	stats := decodeMetric[[]LanguageStat](t, metric)
	assert.Len(t, stats, 3)
}

func TestScanFailureSkipsEverything(t *testing.T) {
	a, docs, cache := testAggregator(t)
	seedRepos(t, docs)
	_, err := a.Aggregate(context.Background(), "gen-1")
	require.NoError(t, err)

	docs.FailList = errors.New("primary stepped down")
	report, err := a.Aggregate(context.Background(), "gen-2")
	require.Error(t, err)
	assert.Len(t, report.Skipped, len(MetricNames()))

	// The previous generation's values stay live.
	metric, err := cache.GetMetric(context.Background(), MetricLanguages)
	require.NoError(t, err)
	assert.Equal(t, "gen-1", metric.Generation)
}

func TestCacheWriteFailureSkipsOnlyThatMetric(t *testing.T) {
	a, docs, cache := testAggregator(t)
	seedRepos(t, docs)

	cache.FailSet = func(name string) error {
		if name == MetricLanguages {
			return errors.New("connection refused")
		}
		return nil
	}
	report, err := a.Aggregate(context.Background(), "gen-1")
	require.NoError(t, err)

	require.Len(t, report.Skipped, 1)
	assert.Equal(t, MetricLanguages, report.Skipped[0].Metric)
	assert.Len(t, report.MetricsWritten, len(MetricNames())-1)

	_, err = cache.GetMetric(context.Background(), MetricLanguages)
	assert.ErrorIs(t, err, store.ErrMetricMiss)
	_, err = cache.GetMetric(context.Background(), MetricRankingsStars)
	assert.NoError(t, err)
}

func TestAggregateWritesRollupDocuments(t *testing.T) {
	a, docs, _ := testAggregator(t)
	seedRepos(t, docs)

	report, err := a.Aggregate(context.Background(), "gen-1")
	require.NoError(t, err)
	assert.Positive(t, report.RollupsWritten)

	assert.Equal(t, 2, docs.RollupCount(CollLanguageStats))
	assert.Equal(t, 3, docs.RollupCount(CollLocationStats))

	doc, ok := docs.Rollup(CollLanguageStats, "python")
	require.True(t, ok)
	stat, ok := doc.(LanguageStat)
	require.True(t, ok)
	assert.Equal(t, 2, stat.TotalRepos)
}

func TestAggregateEmptyStore(t *testing.T) {
	a, _, cache := testAggregator(t)

	report, err := a.Aggregate(context.Background(), "gen-1")
	require.NoError(t, err)
	assert.Zero(t, report.ReposScanned)

	// An empty store is a real answer, served as empty lists rather than a
	// miss.
	metric, err := cache.GetMetric(context.Background(), MetricLanguages)
	require.NoError(t, err)
	stats := decodeMetric[[]LanguageStat](t, metric)
	assert.Empty(t, stats)
}
