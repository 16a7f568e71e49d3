package db

import (
	"context"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/repolens/repolens/cfg"
)

// Memgraph manages the Bolt connection to the graph store. Memgraph speaks
// the Bolt protocol, so the Neo4j driver is the client.
type Memgraph struct {
	Config  *cfg.Config
	once    sync.Once
	driver  neo4j.DriverWithContext
	initErr error
}

func NewMemgraph(config *cfg.Config) (*Memgraph, error) {
	return &Memgraph{
		Config: config,
	}, nil
}

func (m *Memgraph) Uri() string {
	return "bolt://" + m.Config.Memgraph.Host + ":" + m.Config.Memgraph.Port
}

func (m *Memgraph) Driver() (neo4j.DriverWithContext, error) {
	m.once.Do(func() {
		auth := neo4j.NoAuth()
		if m.Config.Memgraph.Username != "" {
			auth = neo4j.BasicAuth(m.Config.Memgraph.Username, m.Config.Memgraph.Password, "")
		}
		m.driver, m.initErr = neo4j.NewDriverWithContext(m.Uri(), auth)
	})
	return m.driver, m.initErr
}

func (m *Memgraph) Ping(ctx context.Context) error {
	driver, err := m.Driver()
	if err != nil {
		return err
	}
	return driver.VerifyConnectivity(ctx)
}

func (m *Memgraph) Close(ctx context.Context) error {
	if m.driver != nil {
		return m.driver.Close(ctx)
	}
	return nil
}
