// Package aggregator recomputes derived metrics from the document store and
// replaces them in the metric cache. Every cached value is a pure projection
// of store state plus a generation stamp, nothing in the cache is ever
// hand-authored or merged field by field.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/store"
	"github.com/repolens/repolens/pkg/log"
)

// Rollup collections materialized back into the document store.
const (
	CollLanguageStats  = "language_stats"
	CollLocationStats  = "location_stats"
	CollTopicStats     = "topic_stats"
	CollFrameworkStats = "framework_stats"
	CollOwnerStats     = "owner_stats"
)

// MetricSkip reports one metric that kept its previous cached value because
// this run could not recompute or store it.
type MetricSkip struct {
	Metric string `json:"metric"`
	Reason string `json:"reason"`
}

// Report summarizes one aggregation pass.
type Report struct {
	Generation     string        `json:"generation"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	ReposScanned   int           `json:"repos_scanned"`
	MetricsWritten []string      `json:"metrics_written"`
	RollupsWritten int           `json:"rollups_written"`
	Skipped        []MetricSkip  `json:"skipped,omitempty"`
}

type Aggregator struct {
	Logger log.Logger
	Config *cfg.Config
	Docs   store.DocumentStore
	Cache  store.MetricCache
}

func NewAggregator(logger log.Logger, config *cfg.Config, docs store.DocumentStore, cache store.MetricCache) (*Aggregator, error) {
	return &Aggregator{
		Logger: logger,
		Config: config,
		Docs:   docs,
		Cache:  cache,
	}, nil
}

// Aggregate scans the document store once and recomputes every metric from
// that snapshot. Each metric is written wholesale under the given generation.
// A failed cache write skips that one metric and the previous cached value
// stays live; a failed scan skips everything, reported, never zeroed.
func (a *Aggregator) Aggregate(ctx context.Context, generation string) (*Report, error) {
	start := time.Now()
	report := &Report{Generation: generation, StartedAt: start}

	repos, err := a.Docs.ListRepositories(ctx)
	if err != nil {
		for _, name := range MetricNames() {
			report.Skipped = append(report.Skipped, MetricSkip{Metric: name, Reason: err.Error()})
		}
		report.Duration = time.Since(start)
		a.Logger.Error(ctx, "Aggregation scan failed, all metrics keep their previous values: %v", err)
		return report, fmt.Errorf("failed to scan repositories for aggregation: %w", err)
	}
	report.ReposScanned = len(repos)

	languages := ComputeLanguageStats(repos)
	locations := ComputeLocationStats(repos)
	topics := computeTopics(repos)
	frameworks := computeFrameworks(repos)
	owners := computeOwners(repos)

	a.setMetric(ctx, report, MetricLanguages, languages)
	a.setMetric(ctx, report, MetricLocationsCompare, locations)
	a.setMetric(ctx, report, MetricLocationsMap, mapPoints(locations))
	a.setMetric(ctx, report, MetricRankingsStars, computeRankings(repos, false))
	a.setMetric(ctx, report, MetricRankingsForks, computeRankings(repos, true))
	a.setMetric(ctx, report, MetricTrendingTopics, capTop(topics))
	a.setMetric(ctx, report, MetricTrendingFrameworks, capFrameworks(frameworks))
	a.setMetric(ctx, report, MetricOwners, capOwners(owners))

	a.writeRollups(ctx, report, languages, locations, topics, frameworks, owners)

	report.Duration = time.Since(start)
	a.Logger.Info(ctx, "Aggregated %d metrics from %d repositories in %v (generation %s, %d skipped)",
		len(report.MetricsWritten), report.ReposScanned, report.Duration.Round(time.Millisecond), generation, len(report.Skipped))
	return report, nil
}

// MetricNames lists every metric the aggregator maintains, in write order.
func MetricNames() []string {
	return []string{
		MetricLanguages,
		MetricLocationsCompare,
		MetricLocationsMap,
		MetricRankingsStars,
		MetricRankingsForks,
		MetricTrendingTopics,
		MetricTrendingFrameworks,
		MetricOwners,
	}
}

func (a *Aggregator) setMetric(ctx context.Context, report *Report, name string, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		a.skip(ctx, report, name, fmt.Errorf("failed to encode value: %w", err))
		return
	}
	metric := store.Metric{
		Name:       name,
		Generation: report.Generation,
		ComputedAt: time.Now().UTC(),
		Value:      payload,
	}
	if err := a.Cache.SetMetric(ctx, metric); err != nil {
		a.skip(ctx, report, name, err)
		return
	}
	report.MetricsWritten = append(report.MetricsWritten, name)
}

func (a *Aggregator) skip(ctx context.Context, report *Report, name string, err error) {
	a.Logger.Warn(ctx, "Skipping metric %s, previous cached value stays: %v", name, err)
	report.Skipped = append(report.Skipped, MetricSkip{Metric: name, Reason: err.Error()})
}

// writeRollups materializes the uncapped aggregates back into document store
// collections so the query service can serve them on a cache miss without
// rescanning every repository.
func (a *Aggregator) writeRollups(ctx context.Context, report *Report,
	languages []LanguageStat, locations []LocationStat, topics []TopicStat,
	frameworks []FrameworkStat, owners []OwnerStat) {

	for _, stat := range languages {
		a.upsertRollup(ctx, report, CollLanguageStats, stat.Name, stat)
	}
	for _, stat := range locations {
		a.upsertRollup(ctx, report, CollLocationStats, stat.Name, stat)
	}
	for _, stat := range topics {
		a.upsertRollup(ctx, report, CollTopicStats, stat.Name, stat)
	}
	for _, stat := range frameworks {
		a.upsertRollup(ctx, report, CollFrameworkStats, stat.Name, stat)
	}
	for _, stat := range owners {
		a.upsertRollup(ctx, report, CollOwnerStats, stat.Login, stat)
	}
}

func (a *Aggregator) upsertRollup(ctx context.Context, report *Report, collection, key string, doc interface{}) {
	if err := a.Docs.UpsertRollup(ctx, collection, key, doc); err != nil {
		report.Skipped = append(report.Skipped, MetricSkip{
			Metric: "rollup:" + collection + "/" + key,
			Reason: err.Error(),
		})
		return
	}
	report.RollupsWritten++
}

func capTop(stats []TopicStat) []TopicStat {
	if len(stats) > topN {
		return stats[:topN]
	}
	return stats
}

func capFrameworks(stats []FrameworkStat) []FrameworkStat {
	if len(stats) > topN {
		return stats[:topN]
	}
	return stats
}

func capOwners(stats []OwnerStat) []OwnerStat {
	if len(stats) > topN {
		return stats[:topN]
	}
	return stats
}
