package worker

import (
	"strings"

	"hookfeed/pkg/events"
)

// SubscriberConfig mirrors the server's watermill section so workers can read
// the same file the ingest server publishes with.
type SubscriberConfig struct {
	Driver      string   `yaml:"driver"`
	Drivers     []string `yaml:"drivers"`
	TopicPrefix string   `yaml:"topic_prefix"`

	GoChannel    GoChannelConfig    `yaml:"gochannel"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	NATS         NATSConfig         `yaml:"nats"`
	AMQP         AMQPConfig         `yaml:"amqp"`
	SQL          SQLConfig          `yaml:"sql"`
	ConnectRetry ConnectRetryConfig `yaml:"connect_retry"`
}

type GoChannelConfig struct {
	OutputChannelBuffer            int64 `yaml:"output_buffer"`
	Persistent                     bool  `yaml:"persistent"`
	BlockPublishUntilSubscriberAck bool  `yaml:"block_publish_until_subscriber_ack"`
}

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	ConsumerGroup string   `yaml:"consumer_group"`
}

// NATSConfig configures a NATS streaming subscription. ClientIDSuffix keeps
// the worker from colliding with the publisher's client id.
type NATSConfig struct {
	ClusterID      string `yaml:"cluster_id"`
	ClientID       string `yaml:"client_id"`
	ClientIDSuffix string `yaml:"client_id_suffix"`
	URL            string `yaml:"url"`
	Durable        string `yaml:"durable"`
}

type AMQPConfig struct {
	URL  string `yaml:"url"`
	Mode string `yaml:"mode"`
}

type SQLConfig struct {
	Driver               string `yaml:"driver"`
	DSN                  string `yaml:"dsn"`
	Dialect              string `yaml:"dialect"`
	ConsumerGroup        string `yaml:"consumer_group"`
	InitializeSchema     bool   `yaml:"initialize_schema"`
	AutoInitializeSchema bool   `yaml:"auto_initialize_schema"`
}

// ConnectRetryConfig bounds how long subscriber construction keeps retrying
// a broker that is not up yet.
type ConnectRetryConfig struct {
	Attempts int `yaml:"attempts"`
	DelayMS  int `yaml:"delay_ms"`
}

// Topic returns the topic records of kind are published on.
func (c SubscriberConfig) Topic(kind events.Kind) string {
	return topicFor(c.TopicPrefix, kind)
}

// Topics returns the topics for kinds, or for every supported kind when none
// are given.
func (c SubscriberConfig) Topics(kinds ...events.Kind) []string {
	if len(kinds) == 0 {
		kinds = events.Kinds()
	}
	topics := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		topics = append(topics, c.Topic(kind))
	}
	return topics
}

func topicFor(prefix string, kind events.Kind) string {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return string(kind)
	}
	return prefix + "." + string(kind)
}
