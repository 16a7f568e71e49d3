package main

import (
	"context"
	"fmt"
	"os"

	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/store/mongodoc"
	"github.com/repolens/repolens/internal/warehouse"
	"github.com/repolens/repolens/pkg/db"
	"github.com/repolens/repolens/pkg/log"
)

func main() {
	ctx := context.Background()
	loader, _ := cfg.NewViperLoader()
	config, err := loader.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, _ := log.NewCslLogger()

	mongoDb, _ := db.NewMongo(config)
	docs, _ := mongodoc.NewStore(logger, config, mongoDb)
	defer docs.Close(context.Background())

	mysql, _ := db.NewMysql(config)
	defer mysql.Close()

	wh, _ := warehouse.NewWarehouse(logger, config, docs, mysql)
	if err := wh.Migrate(); err != nil {
		logger.Critical(ctx, "Warehouse migration failed: %v", err)
		os.Exit(1)
	}

	logger.Info(ctx, "Starting warehouse sync")
	if _, err := wh.Sync(ctx); err != nil {
		logger.Error(ctx, "Warehouse sync failed: %v", err)
		os.Exit(1)
	}
}
