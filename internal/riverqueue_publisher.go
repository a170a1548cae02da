package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"hookfeed/pkg/events"

	"github.com/lib/pq"
)

// riverQueuePublisher inserts each record as a job row in a River jobs table,
// so River workers can pick records up without running a broker.
type riverQueuePublisher struct {
	db    *sql.DB
	cfg   RiverQueueConfig
	query string
}

func newRiverQueuePublisher(cfg RiverQueueConfig) (*riverQueuePublisher, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("riverqueue dsn is required")
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = "river_job"
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &riverQueuePublisher{
		db:    db,
		cfg:   cfg,
		query: riverInsertQuery(table),
	}, nil
}

func riverInsertQuery(table string) string {
	return fmt.Sprintf(
		`INSERT INTO %s (args, kind, max_attempts, metadata, priority, queue, scheduled_at, tags)
VALUES ($1, $2, $3, $4, $5, $6, now(), $7)`,
		pq.QuoteIdentifier(table),
	)
}

// Publish inserts the record as the job args; the topic travels in metadata.
func (p *riverQueuePublisher) Publish(ctx context.Context, topic string, record events.Record) error {
	args, err := json.Marshal(record)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(map[string]interface{}{
		"record_id":  record.ID,
		"event_kind": record.Kind,
		"topic":      topic,
	})
	if err != nil {
		return err
	}

	priority := p.cfg.Priority
	if priority <= 0 {
		priority = 1
	}
	_, err = p.db.ExecContext(
		ctx,
		p.query,
		string(args),
		p.cfg.Kind,
		p.cfg.MaxAttempts,
		string(metadata),
		priority,
		p.cfg.Queue,
		pq.Array(p.cfg.Tags),
	)
	return err
}

// Close closes the underlying database connection.
func (p *riverQueuePublisher) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
