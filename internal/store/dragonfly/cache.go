// Package dragonfly implements the metric cache on Dragonfly. Dragonfly is
// wire compatible with Redis, so values are plain Redis strings.
package dragonfly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/store"
	"github.com/repolens/repolens/pkg/db"
	"github.com/repolens/repolens/pkg/log"
)

const metricPrefix = "metric:"

// Cache stores each metric as one JSON string under metric:{name}. SetMetric
// replaces the whole value, there is no partial update of a cached metric.
type Cache struct {
	Logger    log.Logger
	Config    *cfg.Config
	Dragonfly *db.Dragonfly
}

func NewCache(logger log.Logger, config *cfg.Config, dragonfly *db.Dragonfly) (*Cache, error) {
	return &Cache{
		Logger:    logger,
		Config:    config,
		Dragonfly: dragonfly,
	}, nil
}

func (c *Cache) SetMetric(ctx context.Context, metric store.Metric) error {
	payload, err := json.Marshal(metric)
	if err != nil {
		return fmt.Errorf("failed to encode metric %q: %w", metric.Name, err)
	}
	ttl := time.Duration(c.Config.Dragonfly.TtlSeconds) * time.Second
	if err := c.Dragonfly.Client().Set(ctx, metricPrefix+metric.Name, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache metric %q: %w", metric.Name, err)
	}
	return nil
}

func (c *Cache) GetMetric(ctx context.Context, name string) (*store.Metric, error) {
	payload, err := c.Dragonfly.Client().Get(ctx, metricPrefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", store.ErrMetricMiss, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metric %q: %w", name, err)
	}
	var metric store.Metric
	if err := json.Unmarshal(payload, &metric); err != nil {
		return nil, fmt.Errorf("failed to decode metric %q: %w", name, err)
	}
	return &metric, nil
}

func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	raw, err := c.Dragonfly.Client().Keys(ctx, metricPrefix+"*").Result()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(raw))
	for _, key := range raw {
		names = append(names, strings.TrimPrefix(key, metricPrefix))
	}
	return names, nil
}

func (c *Cache) Stats(ctx context.Context) (*store.CacheStats, error) {
	client := c.Dragonfly.Client()
	total, err := client.DBSize(ctx).Result()
	if err != nil {
		return nil, err
	}
	names, err := c.Keys(ctx)
	if err != nil {
		return nil, err
	}
	info, err := client.Info(ctx).Result()
	if err != nil {
		return nil, err
	}
	return &store.CacheStats{
		TotalKeys:        total,
		MetricKeys:       len(names),
		MemoryUsed:       infoValue(info, "used_memory_human"),
		UptimeSeconds:    infoInt(info, "uptime_in_seconds"),
		ConnectedClients: infoInt(info, "connected_clients"),
		TotalCommands:    infoInt(info, "total_commands_processed"),
	}, nil
}

// Clear deletes metric keys only. Anything else living in the same database
// survives a cache clear.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	client := c.Dragonfly.Client()
	keys, err := client.Keys(ctx, metricPrefix+"*").Result()
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	deleted, err := client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.Dragonfly.Ping(ctx)
}

func (c *Cache) Close() error {
	return c.Dragonfly.Close()
}

func infoValue(info, field string) string {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, field+":") {
			return strings.TrimPrefix(line, field+":")
		}
	}
	return ""
}

func infoInt(info, field string) int64 {
	n, _ := strconv.ParseInt(infoValue(info, field), 10, 64)
	return n
}
