package cfg

import (
	"errors"
	"fmt"
)

const (
	ModeDirect = "direct"
	ModeKafka  = "kafka"
)

type (
	App struct {
		Name    string
		Version string
	}

	GithubApi struct {
		AccessToken       string
		BaseUrl           string
		PerPage           int
		MinStars          int
		RequestsPerSecond int
		MaxRetries        int
		BackoffInitialMs  int
		BackoffMaxMs      int
		QuotaMaxWaitMin   int
		TimeoutSec        int
	}

	Crawler struct {
		Languages        []string
		ReposPerLanguage int
		Location         string
		Workers          int
		Profiles         []string
		Mode             string
		SkipAggregation  bool
	}

	Memgraph struct {
		Host     string
		Port     string
		Username string
		Password string
	}

	Mongo struct {
		Uri        string
		Database   string
		TimeoutSec int
	}

	Dragonfly struct {
		Host       string
		Port       string
		Password   string
		Db         int
		TtlSeconds int
	}

	Mysql struct {
		Host                  string
		Port                  string
		Username              string
		Password              string
		Database              string
		MaxIdleConnection     int
		MaxOpenConnection     int
		MaxLifeTimeConnection int
	}

	Kafka struct {
		Brokers       []string
		Producer      KafkaProducer
		ConsumerGroup string
	}

	KafkaProducer struct {
		TopicBatch string
	}

	Api struct {
		Port          int
		CacheFallback bool
	}
)

type Config struct {
	App       App
	GithubApi GithubApi
	Crawler   Crawler
	Memgraph  Memgraph
	Mongo     Mongo
	Dragonfly Dragonfly
	Mysql     Mysql
	Kafka     Kafka
	Api       Api
}

var (
	ErrMissingToken     = errors.New("github access token is not configured")
	ErrNoLanguages      = errors.New("no crawl languages configured")
	ErrInvalidMode      = errors.New("invalid crawler mode")
	ErrMissingStore     = errors.New("store endpoint is not configured")
	ErrInvalidPaging    = errors.New("paging settings must be positive")
	ErrInvalidWorkers   = errors.New("worker count must be positive")
	ErrMissingBrokers   = errors.New("no kafka brokers configured")
	ErrInvalidRetryPlan = errors.New("retry settings must be positive")
)

// Validate checks the settings a run cannot start without. It is called once
// at startup and a failure is fatal before any fetch happens.
func (c *Config) Validate() error {
	if c.GithubApi.AccessToken == "" {
		return ErrMissingToken
	}
	if len(c.Crawler.Languages) == 0 {
		return ErrNoLanguages
	}
	if c.Crawler.ReposPerLanguage <= 0 || c.GithubApi.PerPage <= 0 || c.GithubApi.PerPage > 100 {
		return fmt.Errorf("%w: repos_per_language=%d per_page=%d", ErrInvalidPaging, c.Crawler.ReposPerLanguage, c.GithubApi.PerPage)
	}
	if c.Crawler.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.GithubApi.MaxRetries <= 0 || c.GithubApi.BackoffInitialMs <= 0 {
		return ErrInvalidRetryPlan
	}

	switch c.Crawler.Mode {
	case ModeDirect:
		if c.Memgraph.Host == "" {
			return fmt.Errorf("%w: memgraph host", ErrMissingStore)
		}
		if c.Mongo.Uri == "" {
			return fmt.Errorf("%w: mongo uri", ErrMissingStore)
		}
		if c.Dragonfly.Host == "" {
			return fmt.Errorf("%w: dragonfly host", ErrMissingStore)
		}
	case ModeKafka:
		if len(c.Kafka.Brokers) == 0 {
			return ErrMissingBrokers
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Crawler.Mode)
	}

	return nil
}
