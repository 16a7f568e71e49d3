package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/aggregator"
	"github.com/repolens/repolens/internal/model"
	"github.com/repolens/repolens/internal/store/dragonfly"
	"github.com/repolens/repolens/internal/store/memgraph"
	"github.com/repolens/repolens/internal/store/mongodoc"
	"github.com/repolens/repolens/internal/writer"
	"github.com/repolens/repolens/pkg/db"
	"github.com/repolens/repolens/pkg/kafka"
	"github.com/repolens/repolens/pkg/log"
)

// The consumer flushes what it buffered either when the group is full or
// when the oldest message has waited this long.
const (
	flushSize    = 100
	flushTimeout = 5 * time.Second
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

	if len(config.Kafka.Brokers) == 0 {
		logger.Critical(ctx, "No kafka brokers configured")
		os.Exit(1)
	}

	memgraphDb, _ := db.NewMemgraph(config)
	mongoDb, _ := db.NewMongo(config)
	dragonflyDb, _ := db.NewDragonfly(config)
	graph, _ := memgraph.NewStore(logger, config, memgraphDb)
	docs, _ := mongodoc.NewStore(logger, config, mongoDb)
	cache, _ := dragonfly.NewCache(logger, config, dragonflyDb)
	defer graph.Close(context.Background())
	defer docs.Close(context.Background())
	defer cache.Close()

	w, _ := writer.NewWriter(logger, graph, docs)
	agg, _ := aggregator.NewAggregator(logger, config, docs, cache)

	messages := make(chan model.BatchMessage, flushSize*2)
	go drainBatches(ctx, logger, w, agg, messages)

	consumer := kafka.NewConsumer(config, logger, config.Kafka.Producer.TopicBatch, config.Kafka.ConsumerGroup)
	defer consumer.Close()

	consumer.RegisterHandler(model.BatchMessageKey, func(data []byte) error {
		var msg model.BatchMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("failed to unmarshal batch message: %w", err)
		}
		select {
		case messages <- msg:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error(ctx, "Batch consumer error: %v", err)
		}
	}()
	logger.Info(ctx, "Batch consumer started on topic %s", config.Kafka.Producer.TopicBatch)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info(ctx, "Received shutdown signal, draining remaining batches")
	cancel()
}

// drainBatches buffers incoming batch envelopes and flushes them through the
// multi-store writer in groups, refreshing the metric cache once per flush
// instead of once per page.
func drainBatches(ctx context.Context, logger log.Logger, w *writer.Writer, agg *aggregator.Aggregator, messages <-chan model.BatchMessage) {
	var pending []model.BatchMessage
	timer := time.NewTimer(flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			flush(context.WithoutCancel(ctx), logger, w, agg, pending)
			return

		case msg := <-messages:
			pending = append(pending, msg)
			if len(pending) >= flushSize {
				flush(ctx, logger, w, agg, pending)
				pending = nil
				timer.Reset(flushTimeout)
			}

		case <-timer.C:
			if len(pending) > 0 {
				flush(ctx, logger, w, agg, pending)
				pending = nil
			}
			timer.Reset(flushTimeout)
		}
	}
}

// flush writes every buffered batch and then recomputes the metrics under
// one fresh generation. Write errors are batch-scoped: the failed batch is
// logged with its source tag and the rest of the group still lands,
// re-publishing the page converges because every write is an upsert.
func flush(ctx context.Context, logger log.Logger, w *writer.Writer, agg *aggregator.Aggregator, pending []model.BatchMessage) {
	if len(pending) == 0 {
		return
	}
	logger.Info(ctx, "Flushing %d batches", len(pending))

	for _, msg := range pending {
		batch := msg.Batch
		report := w.Write(ctx, &batch)
		for _, we := range report.Errors {
			logger.Error(ctx, "Batch %s failed on %s (%s %s): %s", batch.Source, we.Store, we.Kind, we.Key, we.Err)
		}
	}

	if _, err := agg.Aggregate(ctx, uuid.NewString()); err != nil {
		logger.Error(ctx, "Cache refresh after flush failed, previous metrics stay: %v", err)
	}
}
