package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/repolens/repolens/internal/store"
)

// Cache implements store.MetricCache on a map.
type Cache struct {
	mu      sync.RWMutex
	metrics map[string]store.Metric

	FailSet func(name string) error
}

func NewCache() *Cache {
	return &Cache{metrics: map[string]store.Metric{}}
}

func (c *Cache) SetMetric(ctx context.Context, metric store.Metric) error {
	if c.FailSet != nil {
		if err := c.FailSet(metric.Name); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics[metric.Name] = metric
	return nil
}

func (c *Cache) GetMetric(ctx context.Context, name string) (*store.Metric, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	metric, ok := c.metrics[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrMetricMiss, name)
	}
	return &metric, nil
}

func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.metrics))
	for name := range c.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *Cache) Stats(ctx context.Context) (*store.CacheStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &store.CacheStats{
		TotalKeys:  int64(len(c.metrics)),
		MetricKeys: len(c.metrics),
		MemoryUsed: "in-memory",
	}, nil
}

func (c *Cache) Clear(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cleared := len(c.metrics)
	c.metrics = map[string]store.Metric{}
	return cleared, nil
}

func (c *Cache) Ping(ctx context.Context) error { return nil }

func (c *Cache) Close() error { return nil }
