package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend kinds accepted by Store.Backend.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
)

// Change feed kinds accepted by ChangeFeed.Kind.
const (
	FeedNone  = "none"
	FeedKafka = "kafka"
	FeedNATS  = "nats"
)

// DefaultRelationshipTerminologyID is the well-known terminology holding the allowed
// mapping relationship codes.
const DefaultRelationshipTerminologyID = "ftd-concept-map-relationship"

// Config is the full engine configuration.
type Config struct {
	Server       Server       `yaml:"server"`
	Log          Log          `yaml:"log"`
	Store        Store        `yaml:"store"`
	Redis        RedisConfig  `yaml:"redis"`
	ChangeFeed   ChangeFeed   `yaml:"change_feed"`
	Relationship Relationship `yaml:"relationship"`
}

// Server captures the ops HTTP listener.
type Server struct {
	OpsAddr         string        `yaml:"ops_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Store selects the document store backend.
type Store struct {
	Backend string `yaml:"backend"`
	// DSN is the connection string for postgres/sqlite; redis uses Redis.URL.
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
	// KeyPrefix namespaces redis keys.
	KeyPrefix string `yaml:"key_prefix"`
	// OpTimeout bounds connecting to and migrating the store.
	OpTimeout time.Duration `yaml:"op_timeout"`
}

// RedisConfig holds connection settings for the redis backend.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ChangeFeed selects where provenance change events are published.
type ChangeFeed struct {
	Kind         string   `yaml:"kind"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
	NATSURL      string   `yaml:"nats_url"`
	NATSSubject  string   `yaml:"nats_subject"`
	// Breaker guards remote feeds; while open, events are logged instead of published.
	Breaker Breaker `yaml:"breaker"`
}

// Breaker tunes the change feed circuit breaker.
type Breaker struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// Relationship configures the reference relationship vocabulary.
type Relationship struct {
	TerminologyID string `yaml:"terminology_id"`
	// RefreshInterval is the staleness window of the cached vocabulary. Zero loads once per process.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// Seed writes the default vocabulary when the reference terminology is missing.
	Seed bool `yaml:"seed"`
}

// Default returns a Config with development defaults.
func Default() Config {
	return Config{
		Server: Server{OpsAddr: ":9090", ShutdownTimeout: 10 * time.Second},
		Log:    Log{Level: "info", Format: "json"},
		Store: Store{
			Backend:   BackendMemory,
			Table:     "lexicon_documents",
			KeyPrefix: "lexicon:",
			OpTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		ChangeFeed: ChangeFeed{
			Kind:        FeedNone,
			KafkaTopic:  "lexicon.provenance",
			NATSSubject: "lexicon.provenance",
			Breaker:     Breaker{FailureThreshold: 5, SuccessThreshold: 1, Cooldown: 30 * time.Second},
		},
		Relationship: Relationship{
			TerminologyID: DefaultRelationshipTerminologyID,
			Seed:          true,
		},
	}
}

// FromEnv builds a Config from defaults, an optional YAML file named by LEXICON_CONFIG_FILE,
// then environment overrides, so main stays lean.
func FromEnv() (Config, error) {
	return Load(os.Getenv("LEXICON_CONFIG_FILE"))
}

// Load is FromEnv with an explicit YAML file. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile overlays a YAML file on top of the current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	setString(getenv, "LEXICON_OPS_ADDR", &c.Server.OpsAddr)
	setString(getenv, "LEXICON_LOG_LEVEL", &c.Log.Level)
	setString(getenv, "LEXICON_LOG_FORMAT", &c.Log.Format)
	setString(getenv, "LEXICON_STORE_BACKEND", &c.Store.Backend)
	setString(getenv, "LEXICON_STORE_DSN", &c.Store.DSN)
	setString(getenv, "LEXICON_STORE_TABLE", &c.Store.Table)
	setString(getenv, "LEXICON_STORE_KEY_PREFIX", &c.Store.KeyPrefix)
	setDuration(getenv, "LEXICON_STORE_OP_TIMEOUT", &c.Store.OpTimeout)
	setString(getenv, "REDIS_URL", &c.Redis.URL)
	setString(getenv, "LEXICON_CHANGEFEED", &c.ChangeFeed.Kind)
	if brokers := getenv("KAFKA_BROKERS"); brokers != "" {
		c.ChangeFeed.KafkaBrokers = splitList(brokers)
	}
	setString(getenv, "LEXICON_KAFKA_TOPIC", &c.ChangeFeed.KafkaTopic)
	setString(getenv, "NATS_URL", &c.ChangeFeed.NATSURL)
	setString(getenv, "LEXICON_NATS_SUBJECT", &c.ChangeFeed.NATSSubject)
	setDuration(getenv, "LEXICON_CHANGEFEED_BREAKER_COOLDOWN", &c.ChangeFeed.Breaker.Cooldown)
	setString(getenv, "LEXICON_RELATIONSHIP_TERMINOLOGY", &c.Relationship.TerminologyID)
	setDuration(getenv, "LEXICON_RELATIONSHIP_REFRESH", &c.Relationship.RefreshInterval)
	if v := getenv("LEXICON_RELATIONSHIP_SEED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Relationship.Seed = b
		}
	}
}

// Validate checks that the configuration is usable. A bad store selection is fatal.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres, BackendSQLite:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s backend", c.Store.Backend)
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.ChangeFeed.Kind {
	case FeedNone, "":
	case FeedKafka:
		if len(c.ChangeFeed.KafkaBrokers) == 0 {
			return fmt.Errorf("change_feed.kafka_brokers is required for the kafka feed")
		}
	case FeedNATS:
		if c.ChangeFeed.NATSURL == "" {
			return fmt.Errorf("change_feed.nats_url is required for the nats feed")
		}
	default:
		return fmt.Errorf("unknown change feed %q", c.ChangeFeed.Kind)
	}
	if c.Relationship.TerminologyID == "" {
		return fmt.Errorf("relationship.terminology_id is required")
	}
	if c.Relationship.RefreshInterval < 0 {
		return fmt.Errorf("relationship.refresh_interval must not be negative")
	}
	return nil
}

func setString(getenv func(string) string, key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(getenv func(string) string, key string, dst *time.Duration) {
	if v := getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
