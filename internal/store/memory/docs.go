package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/repolens/repolens/internal/model"
)

// Docs implements store.DocumentStore on maps.
type Docs struct {
	mu      sync.RWMutex
	repos   map[string]model.Repository
	owners  map[string]model.Owner
	rollups map[string]map[string]interface{}

	FailRepository func(repo model.Repository) error
	FailOwner      func(owner model.Owner) error
	FailRollup     func(collection, key string) error
	FailList       error
}

func NewDocs() *Docs {
	return &Docs{
		repos:   map[string]model.Repository{},
		owners:  map[string]model.Owner{},
		rollups: map[string]map[string]interface{}{},
	}
}

func (d *Docs) UpsertRepository(ctx context.Context, repo model.Repository) error {
	if d.FailRepository != nil {
		if err := d.FailRepository(repo); err != nil {
			return err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.repos[repo.Key()] = repo
	return nil
}

func (d *Docs) UpsertOwner(ctx context.Context, owner model.Owner) error {
	if d.FailOwner != nil {
		if err := d.FailOwner(owner); err != nil {
			return err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.owners[owner.Key()] = owner
	return nil
}

// ListRepositories returns every repository ordered by id so scans are
// deterministic.
func (d *Docs) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	if d.FailList != nil {
		return nil, d.FailList
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.Repository, 0, len(d.repos))
	for _, repo := range d.repos {
		out = append(out, repo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *Docs) ListOwners(ctx context.Context) ([]model.Owner, error) {
	if d.FailList != nil {
		return nil, d.FailList
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.Owner, 0, len(d.owners))
	for _, owner := range d.owners {
		out = append(out, owner)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (d *Docs) PageRepositories(ctx context.Context, search string, page, pageSize int) ([]model.Repository, int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	lowered := strings.ToLower(search)
	var matched []model.Repository
	for _, repo := range d.repos {
		if lowered != "" &&
			!strings.Contains(strings.ToLower(repo.FullName), lowered) &&
			!strings.Contains(strings.ToLower(repo.OwnerLogin), lowered) {
			continue
		}
		matched = append(matched, repo)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Stars != matched[j].Stars {
			return matched[i].Stars > matched[j].Stars
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := min(start+pageSize, len(matched))
	return matched[start:end], total, nil
}

func (d *Docs) RepositoriesByLocation(ctx context.Context, location string, limit int) ([]model.Repository, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []model.Repository
	for _, repo := range d.repos {
		if repo.Location == location {
			out = append(out, repo)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stars > out[j].Stars })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *Docs) CountRepositories(ctx context.Context) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return int64(len(d.repos)), nil
}

func (d *Docs) UpsertRollup(ctx context.Context, collection, key string, doc interface{}) error {
	if d.FailRollup != nil {
		if err := d.FailRollup(collection, key); err != nil {
			return err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	coll, ok := d.rollups[collection]
	if !ok {
		coll = map[string]interface{}{}
		d.rollups[collection] = coll
	}
	coll[key] = doc
	return nil
}

func (d *Docs) Ping(ctx context.Context) error { return nil }

func (d *Docs) Close(ctx context.Context) error { return nil }

func (d *Docs) Owner(login string) (model.Owner, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	owner, ok := d.owners[login]
	return owner, ok
}

func (d *Docs) Rollup(collection, key string) (interface{}, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	coll, ok := d.rollups[collection]
	if !ok {
		return nil, false
	}
	doc, ok := coll[key]
	return doc, ok
}

func (d *Docs) RollupCount(collection string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rollups[collection])
}
