package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hookfeed/pkg/events"
	"hookfeed/pkg/storage"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultTable = "hookfeed_events"

// Config mirrors the storage section of the application config.
type Config struct {
	Driver      string
	DSN         string
	Table       string
	AutoMigrate bool
}

// Store implements storage.EventStore on top of GORM.
type Store struct {
	db    *gorm.DB
	table string
}

var _ storage.EventStore = (*Store)(nil)

type row struct {
	Seq         uint64    `gorm:"column:seq;primaryKey;autoIncrement"`
	ID          string    `gorm:"column:id;size:36;not null;uniqueIndex:idx_hookfeed_events_id"`
	Kind        string    `gorm:"column:event_kind;size:32;not null;index:idx_hookfeed_events_kind"`
	Repository  string    `gorm:"column:repository;size:255;not null"`
	Actor       string    `gorm:"column:actor;size:255"`
	RefOrBranch string    `gorm:"column:ref_or_branch;size:512"`
	FromBranch  string    `gorm:"column:from_branch;size:255"`
	ToBranch    string    `gorm:"column:to_branch;size:255"`
	Action      string    `gorm:"column:action;size:64"`
	OccurredAt  time.Time `gorm:"column:occurred_at;not null;index:idx_hookfeed_events_occurred_at"`
	Summary     string    `gorm:"column:summary;type:text"`
	DeliveryID  string    `gorm:"column:delivery_id;size:128"`
}

// Open connects to the configured database and returns a GORM-backed store.
func Open(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("storage dsn is required")
	}
	driver := normalizeDriver(cfg.Driver)
	if driver == "" {
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.Driver)
	}
	db, err := openGorm(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", storage.ErrStoreUnavailable, driver, err)
	}
	store := New(db, cfg.Table)
	if cfg.AutoMigrate {
		if err := store.Migrate(); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

// New wraps an already opened database handle. The caller keeps ownership of
// the handle's lifecycle unless it calls Close on the returned store.
func New(db *gorm.DB, table string) *Store {
	table = strings.TrimSpace(table)
	if table == "" {
		table = defaultTable
	}
	return &Store{db: db, table: table}
}

// Migrate creates or updates the events table.
func (s *Store) Migrate() error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	return s.tableDB().AutoMigrate(&row{})
}

// Close closes the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks database connectivity. Failures wrap storage.ErrStoreUnavailable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: store is not initialized", storage.ErrStoreUnavailable)
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%w: ping: %v", storage.ErrStoreUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", storage.ErrStoreUnavailable, err)
	}
	return nil
}

// Append inserts one record. Store failures wrap storage.ErrStoreUnavailable.
func (s *Store) Append(ctx context.Context, record events.Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: store is not initialized", storage.ErrStoreUnavailable)
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	data := toRow(record)
	if err := s.tableDB().WithContext(ctx).Create(&data).Error; err != nil {
		return fmt.Errorf("%w: append: %v", storage.ErrStoreUnavailable, err)
	}
	return nil
}

// RecentEvents lists the newest records first, breaking occurred_at ties by
// insertion order.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]events.Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("%w: store is not initialized", storage.ErrStoreUnavailable)
	}
	if limit <= 0 {
		return []events.Record{}, nil
	}
	var data []row
	err := s.tableDB().
		WithContext(ctx).
		Order("occurred_at desc").
		Order("seq desc").
		Limit(limit).
		Find(&data).Error
	if err != nil {
		return nil, fmt.Errorf("%w: recent events: %v", storage.ErrStoreUnavailable, err)
	}
	records := make([]events.Record, 0, len(data))
	for _, item := range data {
		records = append(records, fromRow(item))
	}
	return records, nil
}

func (s *Store) tableDB() *gorm.DB {
	return s.db.Table(s.table)
}

func toRow(record events.Record) row {
	return row{
		ID:          record.ID,
		Kind:        string(record.Kind),
		Repository:  record.Repository,
		Actor:       record.Actor,
		RefOrBranch: record.RefOrBranch,
		FromBranch:  record.FromBranch,
		ToBranch:    record.ToBranch,
		Action:      record.Action,
		OccurredAt:  record.OccurredAt.UTC(),
		Summary:     record.Summary,
		DeliveryID:  record.DeliveryID,
	}
}

func fromRow(data row) events.Record {
	return events.Record{
		ID:          data.ID,
		Kind:        events.Kind(data.Kind),
		Repository:  data.Repository,
		Actor:       data.Actor,
		RefOrBranch: data.RefOrBranch,
		FromBranch:  data.FromBranch,
		ToBranch:    data.ToBranch,
		Action:      data.Action,
		OccurredAt:  data.OccurredAt.UTC(),
		Summary:     data.Summary,
		DeliveryID:  data.DeliveryID,
	}
}

func normalizeDriver(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "postgres", "postgresql", "pgx":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return ""
	}
}

func openGorm(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), cfg)
	case "mysql":
		return gorm.Open(mysql.Open(dsn), cfg)
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}
