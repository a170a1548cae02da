package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"hookfeed/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	wmamaqp "github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	wmhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	wmkafka "github.com/ThreeDotsLabs/watermill-kafka/pkg/kafka"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	wmsql "github.com/ThreeDotsLabs/watermill-sql/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	stan "github.com/nats-io/stan.go"
)

// Publisher sends stored records to a message bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, record events.Record) error
	Close() error
}

type watermillPublisher struct {
	publisher message.Publisher
	closeFn   func() error
}

type PublisherFactory func(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error)

var publisherFactories = map[string]PublisherFactory{
	"gochannel": buildGoChannelPublisher,
}

func RegisterPublisherDriver(name string, factory PublisherFactory) {
	if name == "" || factory == nil {
		return
	}
	publisherFactories[strings.ToLower(name)] = factory
}

// NewPublisher builds one publisher per configured driver. Drivers that fail
// to initialize are skipped; it is an error only when none can be built.
func NewPublisher(cfg WatermillConfig) (Publisher, error) {
	logger := watermill.NewStdLogger(false, false)

	drivers := cfg.Drivers
	if len(drivers) == 0 && cfg.Driver != "" {
		drivers = []string{cfg.Driver}
	}
	if len(drivers) == 0 {
		drivers = []string{"gochannel"}
	}

	pubs := make(map[string]Publisher, len(drivers))
	order := make([]string, 0, len(drivers))
	for _, driver := range drivers {
		key := strings.ToLower(strings.TrimSpace(driver))
		if _, ok := pubs[key]; ok || key == "" {
			continue
		}
		pub, err := newSinglePublisher(cfg, key, logger)
		if err != nil {
			logger.Error("publisher init failed, skipping driver", err, watermill.LogFields{
				"driver": key,
			})
			continue
		}
		pubs[key] = pub
		order = append(order, key)
	}
	if len(pubs) == 0 {
		return nil, errors.New("no publishers available")
	}
	return &publisherMux{publishers: pubs, drivers: order}, nil
}

func newSinglePublisher(cfg WatermillConfig, driver string, logger watermill.LoggerAdapter) (Publisher, error) {
	switch driver {
	case "http":
		if strings.TrimSpace(cfg.HTTP.BaseURL) == "" {
			return nil, fmt.Errorf("http base_url is required")
		}
		pub, err := wmhttp.NewPublisher(wmhttp.PublisherConfig{
			MarshalMessageFunc: func(topic string, msg *message.Message) (*http.Request, error) {
				target, err := httpTargetURL(cfg.HTTP.BaseURL, topic)
				if err != nil {
					return nil, err
				}
				return wmhttp.DefaultMarshalMessageFunc(target, msg)
			},
		}, logger)
		if err != nil {
			return nil, err
		}
		return &watermillPublisher{publisher: pub}, nil
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("kafka brokers are required")
		}
		pub, err := retryPublisher(func() (message.Publisher, error) {
			return wmkafka.NewPublisher(cfg.Kafka.Brokers, wmkafka.DefaultMarshaler{}, nil, logger)
		})
		if err != nil {
			return nil, err
		}
		return &watermillPublisher{publisher: pub}, nil
	case "nats":
		if cfg.NATS.ClusterID == "" || cfg.NATS.ClientID == "" {
			return nil, fmt.Errorf("nats cluster_id and client_id are required")
		}
		natsCfg := wmnats.StreamingPublisherConfig{
			ClusterID: cfg.NATS.ClusterID,
			ClientID:  cfg.NATS.ClientID,
			Marshaler: wmnats.GobMarshaler{},
		}
		if cfg.NATS.URL != "" {
			natsCfg.StanOptions = append(natsCfg.StanOptions, stan.NatsURL(cfg.NATS.URL))
		}
		pub, err := wmnats.NewStreamingPublisher(natsCfg, logger)
		if err != nil {
			return nil, err
		}
		return &watermillPublisher{publisher: pub}, nil
	case "amqp":
		if cfg.AMQP.URL == "" {
			return nil, fmt.Errorf("amqp url is required")
		}
		amqpCfg, err := amqpConfigFromMode(cfg.AMQP.URL, cfg.AMQP.Mode)
		if err != nil {
			return nil, err
		}
		pub, err := wmamaqp.NewPublisher(amqpCfg, logger)
		if err != nil {
			return nil, err
		}
		return &watermillPublisher{publisher: pub}, nil
	case "sql":
		if cfg.SQL.Driver == "" || cfg.SQL.DSN == "" {
			return nil, fmt.Errorf("sql driver and dsn are required")
		}
		schemaAdapter, err := sqlSchemaAdapter(cfg.SQL.Dialect)
		if err != nil {
			return nil, err
		}
		db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return nil, err
		}
		autoInit := cfg.SQL.AutoInitializeSchema || cfg.SQL.InitializeSchema
		pub, err := wmsql.NewPublisher(db, wmsql.PublisherConfig{
			SchemaAdapter:        schemaAdapter,
			AutoInitializeSchema: autoInit,
		}, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &watermillPublisher{
			publisher: pub,
			closeFn:   db.Close,
		}, nil
	case "riverqueue":
		return newRiverQueuePublisher(cfg.RiverQueue)
	default:
		if factory, ok := publisherFactories[driver]; ok {
			pub, closeFn, err := factory(cfg, logger)
			if err != nil {
				return nil, err
			}
			return &watermillPublisher{publisher: pub, closeFn: closeFn}, nil
		}
		return nil, fmt.Errorf("unsupported watermill driver: %s", driver)
	}
}

func retryPublisher(build func() (message.Publisher, error)) (message.Publisher, error) {
	const attempts = 10
	const delay = 2 * time.Second

	var lastErr error
	for i := 0; i < attempts; i++ {
		pub, err := build()
		if err == nil {
			return pub, nil
		}
		lastErr = err
		time.Sleep(delay)
	}
	return nil, lastErr
}

// recordMessage encodes a record as a Watermill message carrying its id,
// kind and repository as metadata.
func recordMessage(ctx context.Context, record events.Record) (*message.Message, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	id := record.ID
	if id == "" {
		id = watermill.NewUUID()
	}
	msg := message.NewMessage(id, payload)
	msg.Metadata.Set("record_id", record.ID)
	msg.Metadata.Set("event_kind", string(record.Kind))
	msg.Metadata.Set("repository", record.Repository)
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		msg.Metadata.Set("request_id", reqID)
	}
	msg.SetContext(ctx)
	return msg, nil
}

func (w *watermillPublisher) Publish(ctx context.Context, topic string, record events.Record) error {
	msg, err := recordMessage(ctx, record)
	if err != nil {
		return err
	}
	return w.publisher.Publish(topic, msg)
}

func (w *watermillPublisher) Close() error {
	if w.publisher == nil {
		return nil
	}
	err := w.publisher.Close()
	if w.closeFn != nil {
		return errors.Join(err, w.closeFn())
	}
	return err
}

type publisherMux struct {
	publishers map[string]Publisher
	drivers    []string
}

func (m *publisherMux) Publish(ctx context.Context, topic string, record events.Record) error {
	var err error
	for _, driver := range m.drivers {
		if publishErr := m.publishers[driver].Publish(ctx, topic, record); publishErr != nil {
			IncPublishError(driver)
			err = errors.Join(err, fmt.Errorf("%s: %w", driver, publishErr))
		}
	}
	return err
}

func (m *publisherMux) Close() error {
	var err error
	for _, driver := range m.drivers {
		err = errors.Join(err, m.publishers[driver].Close())
	}
	return err
}

// Fanout publishes every stored record to "<prefix>.<kind>", retrying each
// failed publish according to the configured policy.
type Fanout struct {
	publisher Publisher
	prefix    string
	attempts  int
	delay     time.Duration
	logger    *log.Logger
}

// NewFanout wraps publisher with the topic naming and retry policy from cfg.
func NewFanout(publisher Publisher, cfg WatermillConfig, logger *log.Logger) *Fanout {
	if logger == nil {
		logger = log.Default()
	}
	attempts := cfg.PublishRetry.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	return &Fanout{
		publisher: publisher,
		prefix:    strings.TrimSuffix(cfg.TopicPrefix, "."),
		attempts:  attempts,
		delay:     time.Duration(cfg.PublishRetry.DelayMS) * time.Millisecond,
		logger:    logger,
	}
}

// Topic returns the topic a record of kind is published on.
func (f *Fanout) Topic(kind events.Kind) string {
	if f.prefix == "" {
		return string(kind)
	}
	return f.prefix + "." + string(kind)
}

// PublishRecord sends record to its topic. It gives up early when ctx ends.
func (f *Fanout) PublishRecord(ctx context.Context, record events.Record) error {
	if f == nil || f.publisher == nil {
		return nil
	}
	topic := f.Topic(record.Kind)
	var err error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		if err = f.publisher.Publish(ctx, topic, record); err == nil {
			return nil
		}
		if attempt == f.attempts {
			break
		}
		f.logger.Printf("publish %s attempt %d failed: %v", topic, attempt, err)
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(f.delay):
		}
	}
	return err
}

// Close closes the underlying publisher.
func (f *Fanout) Close() error {
	if f == nil || f.publisher == nil {
		return nil
	}
	return f.publisher.Close()
}

func buildGoChannelPublisher(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	pub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            cfg.GoChannel.OutputChannelBuffer,
			Persistent:                     cfg.GoChannel.Persistent,
			BlockPublishUntilSubscriberAck: cfg.GoChannel.BlockPublishUntilSubscriberAck,
		},
		logger,
	)
	return pub, nil, nil
}

func amqpConfigFromMode(url, mode string) (wmamaqp.Config, error) {
	switch strings.ToLower(mode) {
	case "", "durable_queue":
		return wmamaqp.NewDurableQueueConfig(url), nil
	case "nondurable_queue":
		return wmamaqp.NewNonDurableQueueConfig(url), nil
	case "durable_pubsub":
		return wmamaqp.NewDurablePubSubConfig(url, nil), nil
	case "nondurable_pubsub":
		return wmamaqp.NewNonDurablePubSubConfig(url, nil), nil
	default:
		return wmamaqp.Config{}, fmt.Errorf("unsupported amqp mode: %s", mode)
	}
}

func sqlSchemaAdapter(dialect string) (wmsql.SchemaAdapter, error) {
	switch strings.ToLower(dialect) {
	case "postgres", "postgresql":
		return wmsql.DefaultPostgreSQLSchema{}, nil
	case "mysql":
		return wmsql.DefaultMySQLSchema{}, nil
	default:
		return nil, fmt.Errorf("unsupported sql dialect: %s", dialect)
	}
}

// httpTargetURL joins the base URL and topic, e.g.
// "http://sink/hooks" + "hookfeed.events.push".
func httpTargetURL(baseURL, topic string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return "", fmt.Errorf("http base_url is empty")
	}
	if topic == "" {
		return base, nil
	}
	return base + "/" + strings.TrimLeft(topic, "/"), nil
}
