package crawler

import (
	"context"

	"github.com/google/uuid"

	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/aggregator"
	"github.com/repolens/repolens/internal/model"
	"github.com/repolens/repolens/internal/store"
	"github.com/repolens/repolens/internal/writer"
	"github.com/repolens/repolens/pkg/log"
)

// DirectCollector fetches, normalizes and writes straight into the stores,
// then refreshes the metric cache. This is the single-process mode.
type DirectCollector struct {
	Logger     log.Logger
	Config     *cfg.Config
	Writer     *writer.Writer
	Aggregator *aggregator.Aggregator
}

func NewDirectCollector(logger log.Logger, config *cfg.Config, graph store.GraphStore, docs store.DocumentStore, cache store.MetricCache) (*DirectCollector, error) {
	w, err := writer.NewWriter(logger, graph, docs)
	if err != nil {
		return nil, err
	}
	agg, err := aggregator.NewAggregator(logger, config, docs, cache)
	if err != nil {
		return nil, err
	}
	return &DirectCollector{
		Logger:     logger,
		Config:     config,
		Writer:     w,
		Aggregator: agg,
	}, nil
}

func (c *DirectCollector) Collect(ctx context.Context) (*RunReport, error) {
	if err := c.Config.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = log.WithRunID(ctx, runID)
	report := newRunReport(runID, cfg.ModeDirect)
	c.Logger.Info(ctx, "Starting direct run: %d languages, %d profiles, %d workers",
		len(c.Config.Crawler.Languages), len(c.Config.Crawler.Profiles), c.Config.Crawler.Workers)

	newRun(c.Logger, c.Config, report, c.sink(report)).collect(ctx)
	c.aggregate(ctx, report)

	report.finish()
	logSummary(ctx, c.Logger, report)
	return report, nil
}

// sink drains batches into the writer. Write failures are batch-scoped and
// land in the report, they never fail the run. The write context is
// detached so a batch already fetched still lands completely when the run
// is cancelled mid-flight.
func (c *DirectCollector) sink(report *RunReport) batchSink {
	return func(ctx context.Context, batch *model.Batch) error {
		wr := c.Writer.Write(context.WithoutCancel(ctx), batch)
		report.addWriteReport(batch.Source, wr)
		return nil
	}
}

// aggregate refreshes the metric cache after the ingest phase. An aborted
// run still aggregates what it managed to write, unless the abort was the
// operator cancelling, in which case recomputing is someone else's job.
func (c *DirectCollector) aggregate(ctx context.Context, report *RunReport) {
	if c.Config.Crawler.SkipAggregation {
		return
	}
	if ctx.Err() != nil {
		for _, name := range aggregator.MetricNames() {
			report.addMetricSkips([]aggregator.MetricSkip{{Metric: name, Reason: "run cancelled before aggregation"}})
		}
		return
	}

	aggReport, err := c.Aggregator.Aggregate(ctx, report.RunID)
	if aggReport != nil {
		report.addMetricSkips(aggReport.Skipped)
	}
	if err != nil {
		c.Logger.Error(ctx, "Aggregation failed, cache keeps previous generation: %v", err)
	}
}
