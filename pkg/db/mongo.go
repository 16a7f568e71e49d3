package db

import (
	"context"
	"sync"
	"time"

	"github.com/repolens/repolens/cfg"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Mongo manages the document store client.
type Mongo struct {
	Config  *cfg.Config
	once    sync.Once
	client  *mongo.Client
	initErr error
}

func NewMongo(config *cfg.Config) (*Mongo, error) {
	return &Mongo{
		Config: config,
	}, nil
}

func (m *Mongo) Client(ctx context.Context) (*mongo.Client, error) {
	m.once.Do(func() {
		timeout := time.Duration(m.Config.Mongo.TimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		opts := options.Client().
			ApplyURI(m.Config.Mongo.Uri).
			SetConnectTimeout(timeout).
			SetServerSelectionTimeout(timeout)
		m.client, m.initErr = mongo.Connect(ctx, opts)
	})
	return m.client, m.initErr
}

func (m *Mongo) Database(ctx context.Context) (*mongo.Database, error) {
	client, err := m.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(m.Config.Mongo.Database), nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	client, err := m.Client(ctx)
	if err != nil {
		return err
	}
	return client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	if m.client != nil {
		return m.client.Disconnect(ctx)
	}
	return nil
}
