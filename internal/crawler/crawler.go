// Package crawler runs collection passes against the GitHub API. A run fans
// the configured languages and profiles out to a bounded worker pool, every
// worker shares one quota tracker, and each fetched page flows through the
// normalizer into a batch sink. Direct mode drains the sink into the stores
// and aggregates afterwards; kafka mode publishes each batch for the
// consumer process to land.
package crawler

import (
	"context"
)

// Collector is one configured way to run a collection pass.
type Collector interface {
	Collect(ctx context.Context) (*RunReport, error)
}

// BatchPublisher sends one batch envelope to the message bus.
type BatchPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}
