// Package memgraph implements the graph store on Memgraph over Bolt.
package memgraph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/model"
	"github.com/repolens/repolens/pkg/db"
	"github.com/repolens/repolens/pkg/log"
)

// Store maps canonical entities onto labeled nodes and relationships onto
// typed edges. Node identity is the canonical key, so upserting the same
// entity again merges onto the same node with last-write-wins properties.
type Store struct {
	Logger   log.Logger
	Config   *cfg.Config
	Memgraph *db.Memgraph
}

func NewStore(logger log.Logger, config *cfg.Config, memgraph *db.Memgraph) (*Store, error) {
	return &Store{
		Logger:   logger,
		Config:   config,
		Memgraph: memgraph,
	}, nil
}

// UpsertEntity merges one node. Labels and relationship types interpolate
// into the query text because Cypher cannot parameterize them; both only
// ever come from model constants.
func (s *Store) UpsertEntity(ctx context.Context, entity model.Entity, key string, props map[string]interface{}) error {
	driver, err := s.Memgraph.Driver()
	if err != nil {
		return err
	}
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MERGE (n:%s {key: $key})
		ON CREATE SET n += $props, n.first_seen = $now
		ON MATCH SET n += $props, n.last_seen = $now
	`, entity)

	_, err = session.Run(ctx, query, map[string]interface{}{
		"key":   key,
		"props": props,
		"now":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %s %q: %w", entity, key, err)
	}
	return nil
}

// UpsertRelationship merges one edge between two existing nodes. The writer
// upserts endpoints before edges, so an unmatched MATCH here means a batch
// violated closure upstream rather than a race to tolerate.
func (s *Store) UpsertRelationship(ctx context.Context, rel model.Relationship) error {
	driver, err := s.Memgraph.Driver()
	if err != nil {
		return err
	}
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (from:%s {key: $fromKey})
		MATCH (to:%s {key: $toKey})
		MERGE (from)-[:%s]->(to)
	`, rel.From.Entity, rel.To.Entity, rel.Kind)

	_, err = session.Run(ctx, query, map[string]interface{}{
		"fromKey": rel.From.Key,
		"toKey":   rel.To.Key,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %s edge %q->%q: %w", rel.Kind, rel.From.Key, rel.To.Key, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Memgraph.Ping(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.Memgraph.Close(ctx)
}
