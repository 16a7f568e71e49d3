// Package warehouse flattens the document store into MySQL rows for BI
// tooling. The warehouse is a projection like the metric cache: re-running
// the sync against the same store state converges on the same rows, so it
// can run as often as the dashboards need.
package warehouse

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/aggregator"
	"github.com/repolens/repolens/internal/store"
	"github.com/repolens/repolens/pkg/db"
	"github.com/repolens/repolens/pkg/log"
)

const insertBatchSize = 200

// Report summarizes one sync pass.
type Report struct {
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Repos         int           `json:"repos"`
	Owners        int           `json:"owners"`
	LanguageStats int           `json:"language_stats"`
	LocationStats int           `json:"location_stats"`
}

type Warehouse struct {
	Logger log.Logger
	Config *cfg.Config
	Docs   store.DocumentStore
	Mysql  *db.Mysql
}

func NewWarehouse(logger log.Logger, config *cfg.Config, docs store.DocumentStore, mysql *db.Mysql) (*Warehouse, error) {
	return &Warehouse{
		Logger: logger,
		Config: config,
		Docs:   docs,
		Mysql:  mysql,
	}, nil
}

// Migrate creates or updates the warehouse tables.
func (w *Warehouse) Migrate() error {
	return w.Mysql.Migrate(&RepoRow{}, &OwnerRow{}, &LanguageStatRow{}, &LocationStatRow{})
}

// Sync reads the current document store snapshot and upserts the flattened
// rows. Rows are keyed the same way as the documents, so every write is an
// idempotent upsert and the sync never deletes.
func (w *Warehouse) Sync(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{StartedAt: start}

	gdb, err := w.Mysql.Db()
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse connection: %w", err)
	}
	gdb = gdb.WithContext(ctx)

	repos, err := w.Docs.ListRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read repositories for sync: %w", err)
	}
	syncedAt := time.Now().UTC()

	repoRows := make([]RepoRow, 0, len(repos))
	for _, repo := range repos {
		repoRows = append(repoRows, repoRow(repo, syncedAt))
	}
	if len(repoRows) > 0 {
		err := gdb.Clauses(clause.OnConflict{UpdateAll: true}).
			CreateInBatches(repoRows, insertBatchSize).Error
		if err != nil {
			return nil, fmt.Errorf("failed to upsert repository rows: %w", err)
		}
	}
	report.Repos = len(repoRows)

	owners, err := w.Docs.ListOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read owners for sync: %w", err)
	}
	ownerRows := make([]OwnerRow, 0, len(owners))
	for _, owner := range owners {
		ownerRows = append(ownerRows, ownerRow(owner, syncedAt))
	}
	if len(ownerRows) > 0 {
		err := gdb.Clauses(clause.OnConflict{UpdateAll: true}).
			CreateInBatches(ownerRows, insertBatchSize).Error
		if err != nil {
			return nil, fmt.Errorf("failed to upsert owner rows: %w", err)
		}
	}
	report.Owners = len(ownerRows)

	// Stat rows come from the same fold the aggregator uses, so the warehouse
	// and the metric cache always report identical numbers for one snapshot.
	languageRows := make([]LanguageStatRow, 0)
	for _, stat := range aggregator.ComputeLanguageStats(repos) {
		languageRows = append(languageRows, languageStatRow(stat, syncedAt))
	}
	if len(languageRows) > 0 {
		err := gdb.Clauses(clause.OnConflict{UpdateAll: true}).
			CreateInBatches(languageRows, insertBatchSize).Error
		if err != nil {
			return nil, fmt.Errorf("failed to upsert language stat rows: %w", err)
		}
	}
	report.LanguageStats = len(languageRows)

	locationRows := make([]LocationStatRow, 0)
	for _, stat := range aggregator.ComputeLocationStats(repos) {
		locationRows = append(locationRows, locationStatRow(stat, syncedAt))
	}
	if len(locationRows) > 0 {
		err := gdb.Clauses(clause.OnConflict{UpdateAll: true}).
			CreateInBatches(locationRows, insertBatchSize).Error
		if err != nil {
			return nil, fmt.Errorf("failed to upsert location stat rows: %w", err)
		}
	}
	report.LocationStats = len(locationRows)

	report.Duration = time.Since(start)
	w.Logger.Info(ctx, "Warehouse sync finished in %v: %d repos, %d owners, %d language stats, %d location stats",
		report.Duration.Round(time.Millisecond), report.Repos, report.Owners, report.LanguageStats, report.LocationStats)
	return report, nil
}
