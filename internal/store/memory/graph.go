// Package memory holds in-process implementations of the three store
// contracts. They back unit tests and the dev profile, and they enforce the
// same invariants the real backends rely on, a relationship whose endpoint
// was never upserted is rejected instead of silently dropped.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/repolens/repolens/internal/model"
)

// ErrDanglingEdge reports a relationship that arrived before one of its
// endpoints.
var ErrDanglingEdge = errors.New("relationship endpoint missing")

// Graph implements store.GraphStore on maps. The optional Fail hooks let
// tests inject store errors for specific entities.
type Graph struct {
	mu    sync.RWMutex
	nodes map[model.Ref]map[string]interface{}
	edges map[model.Relationship]bool

	FailEntity       func(entity model.Entity, key string) error
	FailRelationship func(rel model.Relationship) error
}

func NewGraph() *Graph {
	return &Graph{
		nodes: map[model.Ref]map[string]interface{}{},
		edges: map[model.Relationship]bool{},
	}
}

func (g *Graph) UpsertEntity(ctx context.Context, entity model.Entity, key string, props map[string]interface{}) error {
	if g.FailEntity != nil {
		if err := g.FailEntity(entity, key); err != nil {
			return err
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	ref := model.Ref{Entity: entity, Key: key}
	node, ok := g.nodes[ref]
	if !ok {
		node = map[string]interface{}{}
		g.nodes[ref] = node
	}
	for k, v := range props {
		node[k] = v
	}
	return nil
}

func (g *Graph) UpsertRelationship(ctx context.Context, rel model.Relationship) error {
	if g.FailRelationship != nil {
		if err := g.FailRelationship(rel); err != nil {
			return err
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[rel.From]; !ok {
		return fmt.Errorf("%w: %s %s", ErrDanglingEdge, rel.From.Entity, rel.From.Key)
	}
	if _, ok := g.nodes[rel.To]; !ok {
		return fmt.Errorf("%w: %s %s", ErrDanglingEdge, rel.To.Entity, rel.To.Key)
	}
	g.edges[rel] = true
	return nil
}

func (g *Graph) Ping(ctx context.Context) error { return nil }

func (g *Graph) Close(ctx context.Context) error { return nil }

func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

func (g *Graph) HasNode(entity model.Entity, key string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[model.Ref{Entity: entity, Key: key}]
	return ok
}

func (g *Graph) HasEdge(rel model.Relationship) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[rel]
}

// Props returns a copy of one node's property map.
func (g *Graph) Props(entity model.Entity, key string) map[string]interface{} {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.nodes[model.Ref{Entity: entity, Key: key}]
	if !ok {
		return nil
	}
	out := make(map[string]interface{}, len(node))
	for k, v := range node {
		out[k] = v
	}
	return out
}
