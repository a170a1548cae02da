package internal

import (
	"fmt"
	"log"
	"os"
	"strings"

	"hookfeed/pkg/events"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration.
type Config struct {
	// Server holds listener, limits and metrics settings.
	Server ServerConfig `yaml:"server"`
	// Webhook configures the ingestion endpoint.
	Webhook WebhookConfig `yaml:"webhook"`
	// Events configures the polling query endpoint.
	Events EventsConfig `yaml:"events"`
	// Storage selects the database backing the event store.
	Storage StorageConfig `yaml:"storage"`
	// Filters drop matching deliveries before extraction.
	Filters []Filter `yaml:"filters"`
	// Watermill holds configuration for the record fan-out.
	Watermill WatermillConfig `yaml:"watermill"`
}

type ServerConfig struct {
	Port           int    `yaml:"port"`
	ReadTimeoutMS  int64  `yaml:"read_timeout_ms"`
	WriteTimeoutMS int64  `yaml:"write_timeout_ms"`
	IdleTimeoutMS  int64  `yaml:"idle_timeout_ms"`
	ReadHeaderMS   int64  `yaml:"read_header_timeout_ms"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes"`
	RateLimitRPS   int64  `yaml:"rate_limit_rps"`
	RateLimitBurst int64  `yaml:"rate_limit_burst"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsPath    string `yaml:"metrics_path"`
	HealthPath     string `yaml:"health_path"`
}

// WebhookConfig configures how deliveries are received.
type WebhookConfig struct {
	Path   string `yaml:"path"`
	Secret string `yaml:"secret"`
	// PromoteMerges records merged pull_request deliveries as merge events.
	PromoteMerges *bool `yaml:"promote_merges"`
	DebugEvents   bool  `yaml:"debug_events"`
}

// EventsConfig configures the recent events endpoint.
type EventsConfig struct {
	Path         string `yaml:"path"`
	DefaultLimit int    `yaml:"default_limit"`
	MaxLimit     int    `yaml:"max_limit"`
}

// StorageConfig selects the SQL database used through GORM.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
	// AutoMigrate creates the events table at startup; defaults to true.
	AutoMigrate *bool `yaml:"auto_migrate"`
}

// WatermillConfig holds the configuration for publishing stored records.
type WatermillConfig struct {
	Enabled      bool               `yaml:"enabled"`
	TopicPrefix  string             `yaml:"topic_prefix"`
	Driver       string             `yaml:"driver"`
	Drivers      []string           `yaml:"drivers"`
	GoChannel    GoChannelConfig    `yaml:"gochannel"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	NATS         NATSConfig         `yaml:"nats"`
	AMQP         AMQPConfig         `yaml:"amqp"`
	SQL          SQLConfig          `yaml:"sql"`
	HTTP         HTTPConfig         `yaml:"http"`
	RiverQueue   RiverQueueConfig   `yaml:"riverqueue"`
	PublishRetry PublishRetryConfig `yaml:"publish_retry"`
	PublishQueue PublishQueueConfig `yaml:"publish_queue"`
}

// GoChannelConfig holds configuration for the GoChannel pub/sub.
type GoChannelConfig struct {
	OutputChannelBuffer            int64 `yaml:"output_buffer"`
	Persistent                     bool  `yaml:"persistent"`
	BlockPublishUntilSubscriberAck bool  `yaml:"block_publish_until_subscriber_ack"`
}

// KafkaConfig holds configuration for the Kafka pub/sub.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// NATSConfig holds configuration for the NATS streaming pub/sub.
type NATSConfig struct {
	ClusterID string `yaml:"cluster_id"`
	ClientID  string `yaml:"client_id"`
	URL       string `yaml:"url"`
}

// AMQPConfig holds configuration for the AMQP pub/sub.
type AMQPConfig struct {
	URL  string `yaml:"url"`
	Mode string `yaml:"mode"`
}

// SQLConfig holds configuration for the SQL pub/sub.
type SQLConfig struct {
	Driver               string `yaml:"driver"`
	DSN                  string `yaml:"dsn"`
	Dialect              string `yaml:"dialect"`
	InitializeSchema     bool   `yaml:"initialize_schema"`
	AutoInitializeSchema bool   `yaml:"auto_initialize_schema"`
}

// HTTPConfig holds configuration for the HTTP publisher. Each record is
// POSTed to BaseURL joined with its topic.
type HTTPConfig struct {
	BaseURL string `yaml:"base_url"`
}

// RiverQueueConfig holds configuration for inserting records as River jobs.
type RiverQueueConfig struct {
	Driver      string   `yaml:"driver"`
	DSN         string   `yaml:"dsn"`
	Table       string   `yaml:"table"`
	Queue       string   `yaml:"queue"`
	Kind        string   `yaml:"kind"`
	MaxAttempts int      `yaml:"max_attempts"`
	Priority    int      `yaml:"priority"`
	Tags        []string `yaml:"tags"`
}

type PublishRetryConfig struct {
	Attempts int `yaml:"attempts"`
	DelayMS  int `yaml:"delay_ms"`
}

// PublishQueueConfig bounds the background queue between ingestion and
// fan-out. Records arriving while the queue is full are dropped and counted.
type PublishQueueConfig struct {
	Size    int `yaml:"size"`
	Workers int `yaml:"workers"`
}

// Filter drops deliveries whose flattened payload satisfies When.
type Filter struct {
	Name  string   `yaml:"name"`
	When  string   `yaml:"when"`
	Kinds []string `yaml:"kinds"`
}

// FiltersConfig is the input to NewFilterSet.
type FiltersConfig struct {
	Filters []Filter
	Logger  *log.Logger
}

// PromoteMergesEnabled reports whether merged pull requests become merge events.
func (c WebhookConfig) PromoteMergesEnabled() bool {
	return c.PromoteMerges == nil || *c.PromoteMerges
}

// AutoMigrateEnabled reports whether the events table is migrated at startup.
func (c StorageConfig) AutoMigrateEnabled() bool {
	return c.AutoMigrate == nil || *c.AutoMigrate
}

// LoadConfig loads the application configuration from a YAML file.
// It expands environment variables, applies defaults and validates filters.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, err
	}

	applyDefaults(&cfg)
	filters, err := normalizeFilters(cfg.Filters)
	if err != nil {
		return cfg, err
	}
	cfg.Filters = filters
	if cfg.Events.DefaultLimit > cfg.Events.MaxLimit {
		return cfg, fmt.Errorf("events.default_limit %d exceeds events.max_limit %d", cfg.Events.DefaultLimit, cfg.Events.MaxLimit)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 10000
	}
	if cfg.Server.IdleTimeoutMS == 0 {
		cfg.Server.IdleTimeoutMS = 60000
	}
	if cfg.Server.ReadHeaderMS == 0 {
		cfg.Server.ReadHeaderMS = 5000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}
	if cfg.Server.HealthPath == "" {
		cfg.Server.HealthPath = "/health"
	}
	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = "/webhook"
	}
	if cfg.Events.Path == "" {
		cfg.Events.Path = "/api/events"
	}
	if cfg.Events.MaxLimit == 0 {
		cfg.Events.MaxLimit = 500
	}
	if cfg.Events.DefaultLimit == 0 {
		cfg.Events.DefaultLimit = 50
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DSN == "" && cfg.Storage.Driver == "sqlite" {
		cfg.Storage.DSN = "hookfeed.db"
	}
	if cfg.Storage.Table == "" {
		cfg.Storage.Table = "hookfeed_events"
	}
	if cfg.Watermill.TopicPrefix == "" {
		cfg.Watermill.TopicPrefix = "hookfeed.events"
	}
	if cfg.Watermill.Driver == "" {
		cfg.Watermill.Driver = "gochannel"
	}
	if cfg.Watermill.GoChannel.OutputChannelBuffer == 0 {
		cfg.Watermill.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.Watermill.RiverQueue.Table == "" {
		cfg.Watermill.RiverQueue.Table = "river_job"
	}
	if cfg.Watermill.RiverQueue.Queue == "" {
		cfg.Watermill.RiverQueue.Queue = "default"
	}
	if cfg.Watermill.RiverQueue.Kind == "" {
		cfg.Watermill.RiverQueue.Kind = "hookfeed.record"
	}
	if cfg.Watermill.RiverQueue.MaxAttempts == 0 {
		cfg.Watermill.RiverQueue.MaxAttempts = 25
	}
	if cfg.Watermill.PublishRetry.Attempts == 0 {
		cfg.Watermill.PublishRetry.Attempts = 3
	}
	if cfg.Watermill.PublishRetry.DelayMS == 0 {
		cfg.Watermill.PublishRetry.DelayMS = 500
	}
	if cfg.Watermill.PublishQueue.Size <= 0 {
		cfg.Watermill.PublishQueue.Size = 256
	}
	if cfg.Watermill.PublishQueue.Workers <= 0 {
		cfg.Watermill.PublishQueue.Workers = 1
	}
}

func normalizeFilters(filters []Filter) ([]Filter, error) {
	out := make([]Filter, 0, len(filters))
	for i := range filters {
		filter := filters[i]
		filter.Name = strings.TrimSpace(filter.Name)
		filter.When = strings.TrimSpace(filter.When)
		if filter.When == "" {
			return nil, fmt.Errorf("filter %d is missing when", i)
		}
		if filter.Name == "" {
			filter.Name = fmt.Sprintf("filter-%d", i)
		}
		kinds := make([]string, 0, len(filter.Kinds))
		for _, kind := range filter.Kinds {
			trimmed := strings.ToLower(strings.TrimSpace(kind))
			if trimmed == "" {
				continue
			}
			if !events.Kind(trimmed).Valid() {
				return nil, fmt.Errorf("filter %s: unsupported kind %q", filter.Name, kind)
			}
			kinds = append(kinds, trimmed)
		}
		filter.Kinds = kinds
		out = append(out, filter)
	}
	return out, nil
}
