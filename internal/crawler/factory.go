package crawler

import (
	"fmt"

	"github.com/repolens/repolens/cfg"
	"github.com/repolens/repolens/internal/store"
	"github.com/repolens/repolens/pkg/kafka"
	"github.com/repolens/repolens/pkg/log"
)

// FactoryCollector picks the collector for the configured mode. Direct mode
// needs the three stores; kafka mode builds its own producer and ignores
// them.
func FactoryCollector(mode string, logger log.Logger, config *cfg.Config, graph store.GraphStore, docs store.DocumentStore, cache store.MetricCache) (Collector, error) {
	switch mode {
	case cfg.ModeDirect:
		return NewDirectCollector(logger, config, graph, docs, cache)
	case cfg.ModeKafka:
		producer := kafka.NewProducer(config, logger, config.Kafka.Producer.TopicBatch)
		return NewKafkaCollector(logger, config, producer)
	default:
		return nil, fmt.Errorf("unsupported collector mode: %s", mode)
	}
}
