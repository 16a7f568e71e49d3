package crawler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/model"
	"github.com/repolens/repolens/pkg/log"
)

// KafkaCollector fetches and normalizes like the direct mode but publishes
// every batch to the batch topic instead of touching a store. The consumer
// process owns the writes and the cache refresh.
type KafkaCollector struct {
	Logger   log.Logger
	Config   *cfg.Config
	Producer BatchPublisher
}

func NewKafkaCollector(logger log.Logger, config *cfg.Config, producer BatchPublisher) (*KafkaCollector, error) {
	return &KafkaCollector{
		Logger:   logger,
		Config:   config,
		Producer: producer,
	}, nil
}

func (c *KafkaCollector) Collect(ctx context.Context) (*RunReport, error) {
	if err := c.Config.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = log.WithRunID(ctx, runID)
	report := newRunReport(runID, cfg.ModeKafka)
	c.Logger.Info(ctx, "Starting kafka run, publishing batches to %s", c.Config.Kafka.Producer.TopicBatch)

	newRun(c.Logger, c.Config, report, c.sink(report, runID)).collect(ctx)

	report.finish()
	logSummary(ctx, c.Logger, report)
	return report, nil
}

// sink publishes one envelope per batch. A failed publish is reported like
// a failed store write, the fetch loop keeps going.
func (c *KafkaCollector) sink(report *RunReport, runID string) batchSink {
	return func(ctx context.Context, batch *model.Batch) error {
		msg := model.BatchMessage{
			RunID:       runID,
			PublishedAt: time.Now(),
			Batch:       *batch,
		}
		if err := c.Producer.Publish(context.WithoutCancel(ctx), model.BatchMessageKey, msg); err != nil {
			report.addBatchError(BatchError{Source: batch.Source, Store: "kafka", Reason: err.Error()})
			return nil
		}
		report.addPublished()
		return nil
	}
}
