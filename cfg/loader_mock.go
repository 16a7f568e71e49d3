package cfg

type MockLoader struct{}

func NewMockLoader() (*MockLoader, error) {
	return &MockLoader{}, nil
}

func (yl *MockLoader) Load() (*Config, error) {
	return &Config{
		// App
		App: App{
			Name:    "repolens",
			Version: "0.1.0",
		},

		// GithubApi
		GithubApi: GithubApi{
			AccessToken:       "mock-token",
			BaseUrl:           "https://api.github.com",
			PerPage:           100,
			MinStars:          10,
			RequestsPerSecond: 5,
			MaxRetries:        3,
			BackoffInitialMs:  500,
			BackoffMaxMs:      15000,
			QuotaMaxWaitMin:   20,
			TimeoutSec:        30,
		},

		// Crawler
		Crawler: Crawler{
			Languages:        []string{"python", "javascript", "go"},
			ReposPerLanguage: 500,
			Location:         "",
			Workers:          3,
			Profiles:         []string{},
			Mode:             ModeDirect,
			SkipAggregation:  false,
		},

		// Memgraph
		Memgraph: Memgraph{
			Host:     "127.0.0.1",
			Port:     "7687",
			Username: "",
			Password: "",
		},

		// Mongo
		Mongo: Mongo{
			Uri:        "mongodb://127.0.0.1:27018",
			Database:   "repolens",
			TimeoutSec: 10,
		},

		// Dragonfly
		Dragonfly: Dragonfly{
			Host:       "127.0.0.1",
			Port:       "6379",
			Password:   "",
			Db:         0,
			TtlSeconds: 3600,
		},

		// Mysql
		Mysql: Mysql{
			Host:                  "127.0.0.1",
			Password:              "root",
			Username:              "root",
			Port:                  "3306",
			Database:              "repolens",
			MaxIdleConnection:     10,
			MaxOpenConnection:     100,
			MaxLifeTimeConnection: 3600,
		},

		// Kafka
		Kafka: Kafka{
			Brokers: []string{"127.0.0.1:9092"},
			Producer: KafkaProducer{
				TopicBatch: "repolens.batches",
			},
			ConsumerGroup: "repolens-writer",
		},

		// Api
		Api: Api{
			Port:          8080,
			CacheFallback: true,
		},
	}, nil
}
