package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/aggregator"
	"github.com/repolens/repolens/internal/limiter"
	"github.com/repolens/repolens/internal/normalizer"
	"github.com/repolens/repolens/internal/writer"
	"github.com/repolens/repolens/pkg/log"
)

// PageSkip is one search page abandoned after the retry budget was spent.
// The next page of that language is still attempted.
type PageSkip struct {
	Language string `json:"language"`
	Page     int    `json:"page"`
	Reason   string `json:"reason"`
}

// BatchError is one failed store write. Source and key carry enough identity
// to re-ingest just that batch later; the store that succeeded keeps its
// writes.
type BatchError struct {
	Source string `json:"source"`
	Store  string `json:"store"`
	Kind   string `json:"kind,omitempty"`
	Key    string `json:"key,omitempty"`
	Reason string `json:"reason"`
}

// RunReport is the end-of-run summary. Partial degradation accumulates here
// as skip lists while the run keeps going; only configuration errors abort a
// run outright.
type RunReport struct {
	RunID      string        `json:"run_id"`
	Mode       string        `json:"mode"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`

	Languages        map[string]int `json:"languages"`
	ReposIngested    int            `json:"repos_ingested"`
	ProfilesIngested int            `json:"profiles_ingested"`
	BatchesPublished int            `json:"batches_published,omitempty"`

	EntitiesUpserted      int `json:"entities_upserted"`
	RelationshipsUpserted int `json:"relationships_upserted"`
	DocumentsUpserted     int `json:"documents_upserted"`

	PagesSkipped   []PageSkip              `json:"pages_skipped,omitempty"`
	RecordsSkipped []normalizer.RecordSkip `json:"records_skipped,omitempty"`
	BatchErrors    []BatchError            `json:"batch_errors,omitempty"`
	MetricsSkipped []aggregator.MetricSkip `json:"metrics_skipped,omitempty"`

	Quota       limiter.Snapshot `json:"quota"`
	Aborted     bool             `json:"aborted,omitempty"`
	AbortReason string           `json:"abort_reason,omitempty"`

	mu sync.Mutex
}

func newRunReport(runID, mode string) *RunReport {
	return &RunReport{
		RunID:     runID,
		Mode:      mode,
		StartedAt: time.Now(),
		Languages: map[string]int{},
	}
}

func (r *RunReport) addLanguage(language string, repos int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Languages[language] += repos
	r.ReposIngested += repos
}

func (r *RunReport) addProfile(repos int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ProfilesIngested++
	r.ReposIngested += repos
}

func (r *RunReport) addPublished() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.BatchesPublished++
}

func (r *RunReport) addPageSkip(skip PageSkip) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PagesSkipped = append(r.PagesSkipped, skip)
}

func (r *RunReport) addRecordSkips(skips []normalizer.RecordSkip) {
	if len(skips) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RecordsSkipped = append(r.RecordsSkipped, skips...)
}

func (r *RunReport) addBatchError(err BatchError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.BatchErrors = append(r.BatchErrors, err)
}

// addWriteReport folds one writer report into the run totals.
func (r *RunReport) addWriteReport(source string, wr *writer.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.EntitiesUpserted += wr.Entities
	r.RelationshipsUpserted += wr.Relationships
	r.DocumentsUpserted += wr.Documents
	for _, we := range wr.Errors {
		r.BatchErrors = append(r.BatchErrors, BatchError{
			Source: source,
			Store:  we.Store,
			Kind:   we.Kind,
			Key:    we.Key,
			Reason: we.Err,
		})
	}
}

func (r *RunReport) addMetricSkips(skips []aggregator.MetricSkip) {
	if len(skips) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.MetricsSkipped = append(r.MetricsSkipped, skips...)
}

func (r *RunReport) abort(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Aborted = true
	r.AbortReason = reason
}

func (r *RunReport) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)
}

// Ok reports whether the run finished without any skip or abort.
func (r *RunReport) Ok() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.Aborted && len(r.PagesSkipped) == 0 && len(r.RecordsSkipped) == 0 &&
		len(r.BatchErrors) == 0 && len(r.MetricsSkipped) == 0
}

func logSummary(ctx context.Context, logger log.Logger, r *RunReport) {
	logger.Info(ctx, "==== RUN SUMMARY ====")
	logger.Info(ctx, "Run %s (%s mode) finished in %v", r.RunID, r.Mode, r.Duration.Round(time.Millisecond))
	logger.Info(ctx, "Repositories ingested: %d across %d languages, %d profiles", r.ReposIngested, len(r.Languages), r.ProfilesIngested)
	if r.Mode == cfg.ModeKafka {
		logger.Info(ctx, "Batches published: %d", r.BatchesPublished)
	} else {
		logger.Info(ctx, "Upserts: %d entities, %d relationships, %d documents", r.EntitiesUpserted, r.RelationshipsUpserted, r.DocumentsUpserted)
	}
	logger.Info(ctx, "Skipped: %d pages, %d records, %d batch errors, %d metrics",
		len(r.PagesSkipped), len(r.RecordsSkipped), len(r.BatchErrors), len(r.MetricsSkipped))
	logger.Info(ctx, "Quota: %d calls remaining", r.Quota.Remaining)
	if r.Aborted {
		logger.Warn(ctx, "Run aborted early, results are partial: %s", r.AbortReason)
	}
}
