// Package config loads application configuration from YAML files with
// environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Indexer, Search, Proximity, ...).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Search    SearchConfig    `yaml:"search"`
	Proximity ProximityConfig `yaml:"proximity"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimitRPS caps requests per client address; zero disables it.
	RateLimitRPS   float64 `yaml:"rateLimitRPS"`
	RateLimitBurst int     `yaml:"rateLimitBurst"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest   string `yaml:"documentIngest"`
	DependencePasses string `yaml:"dependencePasses"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexerConfig controls the indexing engine's memory threshold, flush
// interval and on-disk layout.
type IndexerConfig struct {
	DataDir        string        `yaml:"dataDir"`
	SegmentMaxSize int64         `yaml:"segmentMaxSize"`
	FlushInterval  time.Duration `yaml:"flushInterval"`
	NumShards      int           `yaml:"numShards"`
	// StorePositions keeps token offsets in postings. Proximity scoring
	// needs them.
	StorePositions bool `yaml:"storePositions"`
}

// SearchConfig controls query execution limits and timeouts.
type SearchConfig struct {
	MaxResults      int           `yaml:"maxResults"`
	DefaultLimit    int           `yaml:"defaultLimit"`
	TimeoutPerShard time.Duration `yaml:"timeoutPerShard"`
}

// ProximityConfig configures the term-dependence score modifier.
type ProximityConfig struct {
	// DependencyType is "SD" or "FD". Any other value disables the modifier.
	DependencyType string  `yaml:"dependencyType"`
	NgramLength    int     `yaml:"ngramLength"`
	WT             float64 `yaml:"wT"`
	WO             float64 `yaml:"wO"`
	WU             float64 `yaml:"wU"`
	QTWFnID        int     `yaml:"qtwFnID"`
	SplitSynonyms  bool    `yaml:"splitSynonyms"`
	// Scoring names the window scoring function: ratio, bil or pbil.
	Scoring string `yaml:"scoring"`
}

// AnalyticsConfig controls how dependence pass reports are batched on the
// searcher side and persisted by the analytics service.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	// PersistPasses stores every pass event in Postgres, not only snapshots.
	PersistPasses bool `yaml:"persistPasses"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitRPS:    50,
			RateLimitBurst:  100,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "proximitysearch",
			User:            "proximitysearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "proximitysearch-group",
			Topics: KafkaTopics{
				DocumentIngest:   "document-ingest",
				DependencePasses: "dependence-passes",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Indexer: IndexerConfig{
			DataDir:        "data/index",
			SegmentMaxSize: 10000,
			FlushInterval:  30 * time.Second,
			NumShards:      8,
			StorePositions: true,
		},
		Search: SearchConfig{
			MaxResults:      100,
			DefaultLimit:    10,
			TimeoutPerShard: 2 * time.Second,
		},
		Proximity: ProximityConfig{
			DependencyType: "",
			NgramLength:    2,
			WT:             1.0,
			WO:             1.0,
			WU:             1.0,
			QTWFnID:        1,
			SplitSynonyms:  true,
			Scoring:        "bil",
		},
		Analytics: AnalyticsConfig{
			Enabled:          true,
			BatchSize:        100,
			FlushInterval:    5 * time.Second,
			SnapshotInterval: time.Minute,
			PersistPasses:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads PS_* environment variables and overrides the
// corresponding config fields. Unparsable numbers are ignored.
func applyEnvOverrides(cfg *Config) {
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setInt("PS_SERVER_PORT", &cfg.Server.Port)
	setFloat("PS_SERVER_RATE_LIMIT_RPS", &cfg.Server.RateLimitRPS)
	setString("PS_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("PS_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("PS_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("PS_POSTGRES_USER", &cfg.Postgres.User)
	setString("PS_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("PS_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	if v := os.Getenv("PS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setString("PS_REDIS_ADDR", &cfg.Redis.Addr)
	setString("PS_REDIS_PASSWORD", &cfg.Redis.Password)
	setString("PS_INDEXER_DATA_DIR", &cfg.Indexer.DataDir)
	setInt("PS_INDEXER_NUM_SHARDS", &cfg.Indexer.NumShards)
	setBool("PS_INDEXER_STORE_POSITIONS", &cfg.Indexer.StorePositions)
	setString("PS_PROXIMITY_DEPENDENCY_TYPE", &cfg.Proximity.DependencyType)
	setInt("PS_PROXIMITY_NGRAM_LENGTH", &cfg.Proximity.NgramLength)
	setFloat("PS_PROXIMITY_W_T", &cfg.Proximity.WT)
	setFloat("PS_PROXIMITY_W_O", &cfg.Proximity.WO)
	setFloat("PS_PROXIMITY_W_U", &cfg.Proximity.WU)
	setInt("PS_PROXIMITY_QTW_FN_ID", &cfg.Proximity.QTWFnID)
	setBool("PS_PROXIMITY_SPLIT_SYNONYMS", &cfg.Proximity.SplitSynonyms)
	setString("PS_PROXIMITY_SCORING", &cfg.Proximity.Scoring)
	setBool("PS_ANALYTICS_ENABLED", &cfg.Analytics.Enabled)
	setBool("PS_ANALYTICS_PERSIST_PASSES", &cfg.Analytics.PersistPasses)
	setString("PS_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("PS_LOGGING_FORMAT", &cfg.Logging.Format)
	setInt("PS_METRICS_PORT", &cfg.Metrics.Port)
}
