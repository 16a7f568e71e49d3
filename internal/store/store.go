// Package store defines the contracts between the pipeline and its three
// backends: the graph store for entities and relationships, the document
// store for canonical repository and owner documents, and the metric cache
// for precomputed aggregates. Every write is an idempotent upsert keyed by
// canonical identity, so replaying a batch converges instead of duplicating.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/repolens/repolens/internal/model"
)

// ErrMetricMiss reports a metric absent from the cache. Callers decide
// whether to fall back to the document store or report unavailability.
var ErrMetricMiss = errors.New("metric not in cache")

// Metric is one precomputed aggregate. Generation identifies the
// aggregation run that produced it and ComputedAt says when, so staleness
// is always detectable from the entry itself.
type Metric struct {
	Name       string          `json:"name"`
	Generation string          `json:"generation"`
	ComputedAt time.Time       `json:"computed_at"`
	Value      json.RawMessage `json:"value"`
}

// CacheStats mirrors what the cache server reports about itself.
type CacheStats struct {
	TotalKeys        int64  `json:"total_keys"`
	MetricKeys       int    `json:"metric_keys"`
	MemoryUsed       string `json:"memory_used"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	ConnectedClients int64  `json:"connected_clients"`
	TotalCommands    int64  `json:"total_commands"`
}

type GraphStore interface {
	UpsertEntity(ctx context.Context, entity model.Entity, key string, props map[string]interface{}) error
	UpsertRelationship(ctx context.Context, rel model.Relationship) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type DocumentStore interface {
	UpsertRepository(ctx context.Context, repo model.Repository) error
	UpsertOwner(ctx context.Context, owner model.Owner) error
	ListRepositories(ctx context.Context) ([]model.Repository, error)
	ListOwners(ctx context.Context) ([]model.Owner, error)
	// PageRepositories returns one page ordered by stars descending, plus the
	// total match count. An empty search matches everything; otherwise the
	// search matches against full name and owner login.
	PageRepositories(ctx context.Context, search string, page, pageSize int) ([]model.Repository, int64, error)
	RepositoriesByLocation(ctx context.Context, location string, limit int) ([]model.Repository, error)
	CountRepositories(ctx context.Context) (int64, error)
	UpsertRollup(ctx context.Context, collection, key string, doc interface{}) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type MetricCache interface {
	SetMetric(ctx context.Context, metric Metric) error
	GetMetric(ctx context.Context, name string) (*Metric, error)
	Keys(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*CacheStats, error)
	Clear(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}
