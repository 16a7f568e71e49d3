package db

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/repolens/repolens/cfg"
)

// Dragonfly manages the metric cache client. Dragonfly is Redis protocol
// compatible, so go-redis is the client.
type Dragonfly struct {
	Config *cfg.Config
	once   sync.Once
	client *redis.Client
}

func NewDragonfly(config *cfg.Config) (*Dragonfly, error) {
	return &Dragonfly{
		Config: config,
	}, nil
}

func (d *Dragonfly) Client() *redis.Client {
	d.once.Do(func() {
		d.client = redis.NewClient(&redis.Options{
			Addr:     d.Config.Dragonfly.Host + ":" + d.Config.Dragonfly.Port,
			Password: d.Config.Dragonfly.Password,
			DB:       d.Config.Dragonfly.Db,
		})
	})
	return d.client
}

func (d *Dragonfly) Ping(ctx context.Context) error {
	return d.Client().Ping(ctx).Err()
}

func (d *Dragonfly) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}
