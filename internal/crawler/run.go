package crawler

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/repolens/repolens/cfg"
	githubapi "github.com/repolens/repolens/internal/github_api"
	"github.com/repolens/repolens/internal/limiter"
	"github.com/repolens/repolens/internal/model"
	"github.com/repolens/repolens/internal/normalizer"
	"github.com/repolens/repolens/pkg/log"
	"github.com/repolens/repolens/pkg/retry"
)

// batchSink lands one normalized batch: the multi-store writer in direct
// mode, the batch topic in kafka mode. Sinks report their own failures into
// the run report and never fail the run.
type batchSink func(ctx context.Context, batch *model.Batch) error

// run owns the state shared by every worker of one collection pass: the
// quota tracker, the processed-id guard and the report.
type run struct {
	logger     log.Logger
	config     *cfg.Config
	caller     *githubapi.Caller
	normalizer *normalizer.Normalizer
	tracker    *limiter.QuotaTracker
	retryCfg   retry.Config
	report     *RunReport
	sink       batchSink

	processedLock    sync.RWMutex
	processedRepoIDs map[int64]bool
}

func newRun(logger log.Logger, config *cfg.Config, report *RunReport, sink batchSink) *run {
	tracker := limiter.NewQuotaTracker(
		config.GithubApi.RequestsPerSecond,
		time.Duration(config.GithubApi.QuotaMaxWaitMin)*time.Minute,
	)
	norm, _ := normalizer.NewNormalizer(logger, config)
	return &run{
		logger:     logger,
		config:     config,
		caller:     githubapi.NewCaller(logger, config, tracker),
		normalizer: norm,
		tracker:    tracker,
		retryCfg: retry.Config{
			MaxAttempts:  config.GithubApi.MaxRetries,
			InitialDelay: time.Duration(config.GithubApi.BackoffInitialMs) * time.Millisecond,
			MaxDelay:     time.Duration(config.GithubApi.BackoffMaxMs) * time.Millisecond,
			Multiplier:   2.0,
			Jitter:       true,
		},
		report:           report,
		sink:             sink,
		processedRepoIDs: map[int64]bool{},
	}
}

// collect fans every language and profile out to the worker pool and blocks
// until all units finished. Unit errors are run-fatal (exhausted quota or a
// cancelled context); everything softer already landed in the report as a
// skip. The first fatal error cancels the remaining units and marks the
// report aborted.
func (r *run) collect(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Crawler.Workers)

	for _, language := range r.config.Crawler.Languages {
		g.Go(func() error {
			return r.collectLanguage(gctx, language)
		})
	}
	for _, login := range r.config.Crawler.Profiles {
		g.Go(func() error {
			return r.collectProfile(gctx, login)
		})
	}

	if err := g.Wait(); err != nil {
		r.report.abort(err.Error())
		r.logger.Error(ctx, "Run aborted with partial results: %v", err)
	}
	r.report.Quota = r.tracker.Snapshot()
}

// collectLanguage pages through the search results for one language until
// the per-language target is met or the result window ends.
func (r *run) collectLanguage(ctx context.Context, language string) error {
	target := r.config.Crawler.ReposPerLanguage
	location := r.config.Crawler.Location
	collected := 0

	for page := 1; collected < target; {
		if err := r.tracker.Wait(ctx); err != nil {
			return err
		}

		perPage := min(r.config.GithubApi.PerPage, target-collected)
		var sp *githubapi.SearchPage
		err := r.retryTransient(ctx, func() error {
			p, callErr := r.caller.SearchRepositories(ctx, language, location, page, perPage)
			if callErr == nil {
				sp = p
			}
			return callErr
		})

		var rateErr *githubapi.RateLimitError
		switch {
		case err == nil:
		case errors.As(err, &rateErr):
			// Quota spent mid-window. The tracker already knows the reset
			// time, so loop back into Wait without burning the page.
			continue
		case errors.Is(err, githubapi.ErrNoMoreResults):
			r.logger.Info(ctx, "Search window for %s ended after %d repositories", language, collected)
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			r.report.addPageSkip(PageSkip{Language: language, Page: page, Reason: err.Error()})
			r.logger.Warn(ctx, "Skipping %s page %d after retries: %v", language, page, err)
			page++
			continue
		}

		if len(sp.Items) == 0 {
			return nil
		}

		items := r.fresh(sp.Items)
		sp.Items = items
		batch, skips := r.normalizer.PageBatch(ctx, sp, language, location, page, time.Now())
		r.report.addRecordSkips(skips)

		if !batch.IsEmpty() {
			if err := r.sink(ctx, batch); err != nil {
				return err
			}
			collected += len(batch.Repositories)
			r.report.addLanguage(language, len(batch.Repositories))
		}
		page++
	}

	r.logger.Info(ctx, "Collected %d %s repositories", collected, language)
	return nil
}

// collectProfile ingests one configured owner profile and its recent
// repositories. A profile that stays unreachable is skipped as a record, the
// run keeps going.
func (r *run) collectProfile(ctx context.Context, login string) error {
	var profile *githubapi.UserProfile
	for profile == nil {
		if err := r.tracker.Wait(ctx); err != nil {
			return err
		}
		err := r.retryTransient(ctx, func() error {
			p, callErr := r.caller.User(ctx, login)
			if callErr == nil {
				profile = p
			}
			return callErr
		})
		var rateErr *githubapi.RateLimitError
		if errors.As(err, &rateErr) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.report.addRecordSkips([]normalizer.RecordSkip{{Key: "profile:" + login, Reason: err.Error()}})
			r.logger.Warn(ctx, "Skipping profile %s: %v", login, err)
			return nil
		}
	}

	var repos []githubapi.RepoItem
	for done := false; !done; {
		if err := r.tracker.Wait(ctx); err != nil {
			return err
		}
		err := r.retryTransient(ctx, func() error {
			items, callErr := r.caller.UserRepos(ctx, login, r.config.GithubApi.PerPage)
			if callErr == nil {
				repos = items
			}
			return callErr
		})
		var rateErr *githubapi.RateLimitError
		if errors.As(err, &rateErr) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// The profile itself still lands without its repositories.
			r.logger.Warn(ctx, "Repositories of %s unavailable: %v", login, err)
		}
		done = true
	}

	batch, skips := r.normalizer.ProfileBatch(ctx, profile, r.fresh(repos), r.config.Crawler.Location, time.Now())
	r.report.addRecordSkips(skips)
	if batch.IsEmpty() {
		return nil
	}
	if err := r.sink(ctx, batch); err != nil {
		return err
	}
	r.report.addProfile(len(batch.Repositories))
	return nil
}

// retryTransient retries fn while it fails transiently. Rate-limit,
// end-of-results and malformed-response errors surface immediately so the
// caller can decide.
func (r *run) retryTransient(ctx context.Context, fn func() error) error {
	return retry.Do(ctx, r.retryCfg, func() error {
		if err := fn(); err != nil {
			if errors.Is(err, githubapi.ErrTransient) {
				return err
			}
			return retry.Permanent(err)
		}
		return nil
	})
}

// fresh filters out repositories already processed in this run. Search
// windows drift while paging, so the same repository can show up on two
// pages; upserts make duplicates harmless, this just avoids the wasted
// writes. Items without a usable id pass through for the normalizer to
// reject with a reason.
func (r *run) fresh(items []githubapi.RepoItem) []githubapi.RepoItem {
	if len(items) == 0 {
		return items
	}

	kept := make([]githubapi.RepoItem, 0, len(items))
	r.processedLock.Lock()
	for _, item := range items {
		if item.ID > 0 && r.processedRepoIDs[item.ID] {
			continue
		}
		if item.ID > 0 {
			r.processedRepoIDs[item.ID] = true
		}
		kept = append(kept, item)
	}
	r.processedLock.Unlock()
	return kept
}
