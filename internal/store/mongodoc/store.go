// Package mongodoc implements the document store on MongoDB.
package mongodoc

import (
	"context"
	"fmt"
	"regexp"

	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/model"
	"github.com/repolens/repolens/pkg/db"
	"github.com/repolens/repolens/pkg/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collRepositories = "repositories"
	collOwners       = "owners"
)

// Store keeps the source-of-truth documents. Each upsert replaces the whole
// document under its canonical key, filter _id carries the key so the
// replacement document itself stays free of identity bookkeeping.
type Store struct {
	Logger log.Logger
	Config *cfg.Config
	Mongo  *db.Mongo
}

func NewStore(logger log.Logger, config *cfg.Config, mongo *db.Mongo) (*Store, error) {
	return &Store{
		Logger: logger,
		Config: config,
		Mongo:  mongo,
	}, nil
}

func (s *Store) collection(ctx context.Context, name string) (*mongo.Collection, error) {
	database, err := s.Mongo.Database(ctx)
	if err != nil {
		return nil, err
	}
	return database.Collection(name), nil
}

func (s *Store) UpsertRepository(ctx context.Context, repo model.Repository) error {
	coll, err := s.collection(ctx, collRepositories)
	if err != nil {
		return err
	}
	_, err = coll.ReplaceOne(ctx, bson.M{"_id": repo.Key()}, repo, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert repository %q: %w", repo.FullName, err)
	}
	return nil
}

func (s *Store) UpsertOwner(ctx context.Context, owner model.Owner) error {
	coll, err := s.collection(ctx, collOwners)
	if err != nil {
		return err
	}
	_, err = coll.ReplaceOne(ctx, bson.M{"_id": owner.Key()}, owner, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert owner %q: %w", owner.Login, err)
	}
	return nil
}

// ListRepositories streams every repository document. The aggregator scans
// this to recompute metrics from scratch.
func (s *Store) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	coll, err := s.collection(ctx, collRepositories)
	if err != nil {
		return nil, err
	}
	cursor, err := coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer cursor.Close(ctx)

	var repos []model.Repository
	if err := cursor.All(ctx, &repos); err != nil {
		return nil, fmt.Errorf("failed to decode repositories: %w", err)
	}
	return repos, nil
}

// ListOwners streams every owner document, the warehouse sync flattens them
// into relational rows.
func (s *Store) ListOwners(ctx context.Context) ([]model.Owner, error) {
	coll, err := s.collection(ctx, collOwners)
	if err != nil {
		return nil, err
	}
	cursor, err := coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer cursor.Close(ctx)

	var owners []model.Owner
	if err := cursor.All(ctx, &owners); err != nil {
		return nil, fmt.Errorf("failed to decode owners: %w", err)
	}
	return owners, nil
}

// PageRepositories serves the paginated listing: stars descending, optional
// case-insensitive match against full name or owner login.
func (s *Store) PageRepositories(ctx context.Context, search string, page, pageSize int) ([]model.Repository, int64, error) {
	coll, err := s.collection(ctx, collRepositories)
	if err != nil {
		return nil, 0, err
	}

	filter := bson.M{}
	if search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		filter = bson.M{"$or": []bson.M{
			{"full_name": pattern},
			{"owner_login": pattern},
		}}
	}

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count repositories: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "stars", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to page repositories: %w", err)
	}
	defer cursor.Close(ctx)

	var repos []model.Repository
	if err := cursor.All(ctx, &repos); err != nil {
		return nil, 0, fmt.Errorf("failed to decode repositories page: %w", err)
	}
	return repos, total, nil
}

func (s *Store) RepositoriesByLocation(ctx context.Context, location string, limit int) ([]model.Repository, error) {
	coll, err := s.collection(ctx, collRepositories)
	if err != nil {
		return nil, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "stars", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := coll.Find(ctx, bson.M{"location": location}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query repositories for %q: %w", location, err)
	}
	defer cursor.Close(ctx)

	var repos []model.Repository
	if err := cursor.All(ctx, &repos); err != nil {
		return nil, fmt.Errorf("failed to decode repositories for %q: %w", location, err)
	}
	return repos, nil
}

func (s *Store) CountRepositories(ctx context.Context) (int64, error) {
	coll, err := s.collection(ctx, collRepositories)
	if err != nil {
		return 0, err
	}
	return coll.CountDocuments(ctx, bson.D{})
}

// UpsertRollup replaces one materialized aggregate document, for example the
// per-language stats the aggregator derives from the repositories scan.
func (s *Store) UpsertRollup(ctx context.Context, collection, key string, doc interface{}) error {
	coll, err := s.collection(ctx, collection)
	if err != nil {
		return err
	}
	_, err = coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert rollup %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Mongo.Ping(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.Mongo.Close(ctx)
}
