package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/crawler"
	"github.com/repolens/repolens/internal/store"
	"github.com/repolens/repolens/internal/store/dragonfly"
	"github.com/repolens/repolens/internal/store/memgraph"
	"github.com/repolens/repolens/internal/store/mongodoc"
	"github.com/repolens/repolens/pkg/db"
	"github.com/repolens/repolens/pkg/log"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loader, _ := cfg.NewViperLoader()
	config, err := loader.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, _ := log.NewCslLogger()

	if err := config.Validate(); err != nil {
		logger.Critical(ctx, "Configuration is invalid, refusing to start: %v", err)
		os.Exit(1)
	}

	var graph store.GraphStore
	var docs store.DocumentStore
	var cache store.MetricCache
	if config.Crawler.Mode == cfg.ModeDirect {
		memgraphDb, _ := db.NewMemgraph(config)
		mongoDb, _ := db.NewMongo(config)
		dragonflyDb, _ := db.NewDragonfly(config)
		graph, _ = memgraph.NewStore(logger, config, memgraphDb)
		docs, _ = mongodoc.NewStore(logger, config, mongoDb)
		cache, _ = dragonfly.NewCache(logger, config, dragonflyDb)
		defer graph.Close(context.Background())
		defer docs.Close(context.Background())
		defer cache.Close()
	}

	collector, err := crawler.FactoryCollector(config.Crawler.Mode, logger, config, graph, docs, cache)
	if err != nil {
		logger.Critical(ctx, "Failed to build collector: %v", err)
		os.Exit(1)
	}

	// SIGINT/SIGTERM cancel the run: no new fetches, in-flight batch writes
	// still land before the summary prints.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn(ctx, "Received %v, stopping new fetches", sig)
		cancel()
	}()

	logger.Info(ctx, "Starting %s v%s in %s mode", config.App.Name, config.App.Version, config.Crawler.Mode)
	report, err := collector.Collect(ctx)
	if err != nil {
		logger.Error(ctx, "Collection run failed: %v", err)
		os.Exit(1)
	}
	if !report.Ok() {
		// Partial degradation still counts as a finished run, the summary
		// carries the skip lists.
		logger.Warn(ctx, "Run finished with partial results, see summary above")
	}
}
