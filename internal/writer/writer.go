// Package writer lands normalized batches in the graph store and the
// document store. The two stores succeed or fail independently, there is no
// cross-store transaction. A failed batch is reported with identity context
// and never retried in line, re-ingesting later converges because every
// write is an idempotent upsert.
package writer

import (
	"context"

	"github.com/repolens/repolens/internal/model"
	"github.com/repolens/repolens/internal/store"
	"github.com/repolens/repolens/pkg/log"
)

// WriteError identifies one failed store write.
type WriteError struct {
	Store string `json:"store"`
	Kind  string `json:"kind"`
	Key   string `json:"key"`
	Err   string `json:"error"`
}

// Report summarizes one batch write across both stores.
type Report struct {
	Source        string       `json:"source"`
	Entities      int          `json:"entities"`
	Relationships int          `json:"relationships"`
	Documents     int          `json:"documents"`
	Errors        []WriteError `json:"errors,omitempty"`
}

func (r *Report) Ok() bool {
	return len(r.Errors) == 0
}

type Writer struct {
	Logger log.Logger
	Graph  store.GraphStore
	Docs   store.DocumentStore
}

func NewWriter(logger log.Logger, graph store.GraphStore, docs store.DocumentStore) (*Writer, error) {
	return &Writer{
		Logger: logger,
		Graph:  graph,
		Docs:   docs,
	}, nil
}

// Write upserts the batch into both stores. On the graph side every entity
// lands before any relationship, so no edge can reference a node that is not
// there yet. The first error on a store skips the rest of the batch on that
// store only.
func (w *Writer) Write(ctx context.Context, batch *model.Batch) *Report {
	report := &Report{Source: batch.Source}
	w.writeGraph(ctx, batch, report)
	w.writeDocs(ctx, batch, report)
	return report
}

type graphItem struct {
	entity model.Entity
	key    string
	props  map[string]interface{}
}

func graphItems(batch *model.Batch) []graphItem {
	var items []graphItem
	for _, r := range batch.Repositories {
		items = append(items, graphItem{model.EntityRepository, r.Key(), repoProps(r)})
	}
	for _, o := range batch.Owners {
		items = append(items, graphItem{o.Entity(), o.Key(), ownerProps(o)})
	}
	for _, l := range batch.Languages {
		items = append(items, graphItem{model.EntityLanguage, l.Key(), languageProps(l)})
	}
	for _, t := range batch.Topics {
		items = append(items, graphItem{model.EntityTopic, t.Key(), topicProps(t)})
	}
	for _, f := range batch.Frameworks {
		items = append(items, graphItem{model.EntityFramework, f.Key(), frameworkProps(f)})
	}
	for _, d := range batch.Dependencies {
		items = append(items, graphItem{model.EntityDependency, d.Key(), dependencyProps(d)})
	}
	for _, c := range batch.Contributors {
		items = append(items, graphItem{model.EntityContributor, c.Key(), contributorProps(c)})
	}
	for _, c := range batch.Cities {
		items = append(items, graphItem{model.EntityCity, c.Key(), cityProps(c)})
	}
	return items
}

func (w *Writer) writeGraph(ctx context.Context, batch *model.Batch, report *Report) {
	for _, item := range graphItems(batch) {
		if err := w.Graph.UpsertEntity(ctx, item.entity, item.key, item.props); err != nil {
			w.fail(ctx, report, "graph", string(item.entity), item.key, err)
			return
		}
		report.Entities++
	}
	for _, rel := range batch.Relationships {
		if err := w.Graph.UpsertRelationship(ctx, rel); err != nil {
			w.fail(ctx, report, "graph", string(rel.Kind), rel.From.Key+"->"+rel.To.Key, err)
			return
		}
		report.Relationships++
	}
}

func (w *Writer) writeDocs(ctx context.Context, batch *model.Batch, report *Report) {
	for _, repo := range batch.Repositories {
		if err := w.Docs.UpsertRepository(ctx, repo); err != nil {
			w.fail(ctx, report, "documents", "repository", repo.Key(), err)
			return
		}
		report.Documents++
	}
	for _, owner := range batch.Owners {
		if err := w.Docs.UpsertOwner(ctx, owner); err != nil {
			w.fail(ctx, report, "documents", "owner", owner.Key(), err)
			return
		}
		report.Documents++
	}
}

func (w *Writer) fail(ctx context.Context, report *Report, storeName, kind, key string, err error) {
	w.Logger.Error(ctx, "Write to %s store failed at %s %s: %v", storeName, kind, key, err)
	report.Errors = append(report.Errors, WriteError{
		Store: storeName,
		Kind:  kind,
		Key:   key,
		Err:   err.Error(),
	})
}
