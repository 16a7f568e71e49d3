package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/repolens/repolens/internal/model"
	"github.com/repolens/repolens/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphUpsertMergesProps(t *testing.T) {
	g := NewGraph()
	ctx := context.Background()

	require.NoError(t, g.UpsertEntity(ctx, model.EntityRepository, "1", map[string]interface{}{"stars": 10, "name": "hello"}))
	require.NoError(t, g.UpsertEntity(ctx, model.EntityRepository, "1", map[string]interface{}{"stars": 12}))

	assert.Equal(t, 1, g.NodeCount())
	props := g.Props(model.EntityRepository, "1")
	assert.Equal(t, 12, props["stars"])
	assert.Equal(t, "hello", props["name"])
}

func TestGraphRejectsDanglingEdge(t *testing.T) {
	g := NewGraph()
	ctx := context.Background()
	require.NoError(t, g.UpsertEntity(ctx, model.EntityRepository, "1", nil))

	rel := model.Relationship{
		Kind: model.RelOwnedBy,
		From: model.Ref{Entity: model.EntityRepository, Key: "1"},
		To:   model.Ref{Entity: model.EntityUser, Key: "ghost"},
	}
	err := g.UpsertRelationship(ctx, rel)
	assert.ErrorIs(t, err, ErrDanglingEdge)
	assert.Equal(t, 0, g.EdgeCount())

	require.NoError(t, g.UpsertEntity(ctx, model.EntityUser, "ghost", nil))
	require.NoError(t, g.UpsertRelationship(ctx, rel))
	assert.True(t, g.HasEdge(rel))

	// Replaying the same edge stays a single edge.
	require.NoError(t, g.UpsertRelationship(ctx, rel))
	assert.Equal(t, 1, g.EdgeCount())
}

func TestGraphFailureInjection(t *testing.T) {
	g := NewGraph()
	boom := errors.New("store down")
	g.FailEntity = func(entity model.Entity, key string) error {
		if key == "2" {
			return boom
		}
		return nil
	}
	ctx := context.Background()
	assert.NoError(t, g.UpsertEntity(ctx, model.EntityRepository, "1", nil))
	assert.ErrorIs(t, g.UpsertEntity(ctx, model.EntityRepository, "2", nil), boom)
	assert.Equal(t, 1, g.NodeCount())
}

func TestDocsByLocation(t *testing.T) {
	d := NewDocs()
	ctx := context.Background()
	for _, repo := range []model.Repository{
		{ID: 1, FullName: "a/a", Location: "vietnam", Stars: 5},
		{ID: 2, FullName: "b/b", Location: "vietnam", Stars: 50},
		{ID: 3, FullName: "c/c", Location: "global", Stars: 500},
		{ID: 4, FullName: "d/d", Location: "vietnam", Stars: 20},
	} {
		require.NoError(t, d.UpsertRepository(ctx, repo))
	}

	got, err := d.RepositoriesByLocation(ctx, "vietnam", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b/b", got[0].FullName)
	assert.Equal(t, "d/d", got[1].FullName)

	count, err := d.CountRepositories(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestDocsUpsertReplaces(t *testing.T) {
	d := NewDocs()
	ctx := context.Background()
	require.NoError(t, d.UpsertRepository(ctx, model.Repository{ID: 1, FullName: "a/a", Stars: 5}))
	require.NoError(t, d.UpsertRepository(ctx, model.Repository{ID: 1, FullName: "a/a", Stars: 9}))

	repos, err := d.ListRepositories(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, 9, repos[0].Stars)
}

func TestCacheMissAndClear(t *testing.T) {
	c := NewCache()
	ctx := context.Background()

	_, err := c.GetMetric(ctx, "languages")
	assert.ErrorIs(t, err, store.ErrMetricMiss)

	value, _ := json.Marshal(map[string]int{"python": 3})
	require.NoError(t, c.SetMetric(ctx, store.Metric{Name: "languages", Generation: "run-1", Value: value}))

	got, err := c.GetMetric(ctx, "languages")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.Generation)

	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"languages"}, keys)

	cleared, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)
	_, err = c.GetMetric(ctx, "languages")
	assert.ErrorIs(t, err, store.ErrMetricMiss)
}
