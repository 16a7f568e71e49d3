package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	collectorapi "github.com/repolens/repolens/api"
	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/api"
	"github.com/repolens/repolens/internal/store/dragonfly"
	"github.com/repolens/repolens/internal/store/memgraph"
	"github.com/repolens/repolens/internal/store/mongodoc"
	"github.com/repolens/repolens/pkg/db"
	"github.com/repolens/repolens/pkg/log"
)

func main() {
	port := flag.Int("port", 0, "Override the configured query service port")
	flag.Parse()

	ctx := context.Background()
	loader, _ := cfg.NewViperLoader()
	config, err := loader.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		config.Api.Port = *port
	}
	logger, _ := log.NewCslLogger()

	memgraphDb, _ := db.NewMemgraph(config)
	mongoDb, _ := db.NewMongo(config)
	dragonflyDb, _ := db.NewDragonfly(config)
	graph, _ := memgraph.NewStore(logger, config, memgraphDb)
	docs, _ := mongodoc.NewStore(logger, config, mongoDb)
	cache, _ := dragonfly.NewCache(logger, config, dragonflyDb)
	defer graph.Close(context.Background())
	defer docs.Close(context.Background())
	defer cache.Close()

	collector := collectorapi.NewCollectorAPI(logger, config, graph, docs, cache)
	handler, err := api.NewHandler(logger, config, docs, cache, collector)
	if err != nil {
		logger.Critical(ctx, "Failed to build query service handler: %v", err)
		os.Exit(1)
	}
	server, err := api.NewServer(logger, config, handler)
	if err != nil {
		logger.Critical(ctx, "Failed to build query service: %v", err)
		os.Exit(1)
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error(ctx, "Query service failed: %v", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error(ctx, "Error during shutdown: %v", err)
	}
	logger.Info(ctx, "Query service shut down gracefully")
}
