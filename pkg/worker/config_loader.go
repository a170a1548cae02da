package worker

import (
	"os"

	"gopkg.in/yaml.v3"
)

type appConfig struct {
	Watermill SubscriberConfig `yaml:"watermill"`
}

// LoadSubscriberConfig reads the watermill section of the server config file,
// expanding environment variables the same way the server does.
func LoadSubscriberConfig(path string) (SubscriberConfig, error) {
	var cfg appConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg.Watermill, err
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg.Watermill, err
	}
	applySubscriberDefaults(&cfg.Watermill)
	return cfg.Watermill, nil
}

func applySubscriberDefaults(cfg *SubscriberConfig) {
	if cfg.Driver == "" && len(cfg.Drivers) == 0 {
		cfg.Driver = "gochannel"
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "hookfeed.events"
	}
	if cfg.GoChannel.OutputChannelBuffer == 0 {
		cfg.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.NATS.ClientIDSuffix == "" {
		cfg.NATS.ClientIDSuffix = "-worker"
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = "hookfeed-worker"
	}
	if cfg.SQL.ConsumerGroup == "" {
		cfg.SQL.ConsumerGroup = "hookfeed-worker"
	}
	if cfg.ConnectRetry.Attempts == 0 {
		cfg.ConnectRetry.Attempts = 10
	}
	if cfg.ConnectRetry.DelayMS == 0 {
		cfg.ConnectRetry.DelayMS = 2000
	}
}
