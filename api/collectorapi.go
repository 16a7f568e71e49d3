// Package api exposes the collector to embedding surfaces: start and stop
// runs, read run stats, check store connectivity. The query service's
// control endpoints are built on it.
package api

import (
	"context"
	"sync"
	"time"

	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/crawler"
	"github.com/repolens/repolens/internal/store"
	"github.com/repolens/repolens/pkg/log"
)

// RunStats is the view of the current or most recent collection run.
type RunStats struct {
	Mode       string             `json:"mode"`
	IsRunning  bool               `json:"isRunning"`
	StartTime  time.Time          `json:"startTime"`
	Duration   string             `json:"duration"`
	LastReport *crawler.RunReport `json:"lastReport,omitempty"`
	LastError  string             `json:"lastError,omitempty"`
}

// CollectorAPI serializes collection runs: at most one runs at a time, and
// stopping cancels the run context so new fetches stop while in-flight
// writes finish.
type CollectorAPI struct {
	Logger log.Logger
	Config *cfg.Config
	Graph  store.GraphStore
	Docs   store.DocumentStore
	Cache  store.MetricCache

	mu      sync.RWMutex
	running bool
	stats   *RunStats
	cancel  context.CancelFunc
}

func NewCollectorAPI(logger log.Logger, config *cfg.Config, graph store.GraphStore, docs store.DocumentStore, cache store.MetricCache) *CollectorAPI {
	return &CollectorAPI{
		Logger: logger,
		Config: config,
		Graph:  graph,
		Docs:   docs,
		Cache:  cache,
		stats:  &RunStats{},
	}
}

// StartCollection launches one run in the background. An empty mode uses
// the configured default.
func (a *CollectorAPI) StartCollection(mode string) (string, error) {
	if mode == "" {
		mode = a.Config.Crawler.Mode
	}

	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return "A collection run is already in progress", nil
	}

	// Validate against the requested mode before anything spins up, so a
	// misconfigured start fails here instead of inside the run goroutine.
	checked := *a.Config
	checked.Crawler.Mode = mode
	if err := checked.Validate(); err != nil {
		a.mu.Unlock()
		return "", err
	}

	collector, err := crawler.FactoryCollector(mode, a.Logger, a.Config, a.Graph, a.Docs, a.Cache)
	if err != nil {
		a.mu.Unlock()
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.running = true
	a.cancel = cancel
	a.stats = &RunStats{Mode: mode, IsRunning: true, StartTime: time.Now()}
	a.mu.Unlock()

	go func() {
		report, err := collector.Collect(ctx)
		cancel()

		a.mu.Lock()
		defer a.mu.Unlock()
		a.running = false
		a.cancel = nil
		a.stats.IsRunning = false
		a.stats.Duration = time.Since(a.stats.StartTime).String()
		a.stats.LastReport = report
		if err != nil {
			a.stats.LastError = err.Error()
		}
	}()

	return "Started collection in " + mode + " mode", nil
}

// StopCollection cancels the running collection. New fetches stop promptly;
// batches already fetched still land before the run reports.
func (a *CollectorAPI) StopCollection() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running || a.cancel == nil {
		return "No collection run is in progress", nil
	}
	a.cancel()
	return "Stopping collection run, in-flight writes will finish", nil
}

// GetRunStats returns a copy of the run stats with a live duration while a
// run is still going.
func (a *CollectorAPI) GetRunStats() (*RunStats, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	stats := *a.stats
	if stats.IsRunning {
		stats.Duration = time.Since(stats.StartTime).String()
	}
	return &stats, nil
}

// GetStoreStatus pings every store with a short timeout.
func (a *CollectorAPI) GetStoreStatus(ctx context.Context) map[string]string {
	status := map[string]string{}
	check := func(name string, ping func(context.Context) error) {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := ping(pingCtx); err != nil {
			status[name] = "error: " + err.Error()
			return
		}
		status[name] = "ok"
	}
	check("memgraph", a.Graph.Ping)
	check("mongo", a.Docs.Ping)
	check("dragonfly", a.Cache.Ping)
	return status
}
