package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Entry is the row model of the SQLite driver
type Entry struct {
	Key       string `gorm:"column:kv_key;primaryKey;size:512"`
	Value     []byte
	UpdatedAt time.Time
}

// TableName overrides the gorm default
func (Entry) TableName() string {
	return "kv_entries"
}

// SQLiteKV implements KV on a single SQLite table through gorm
type SQLiteKV struct {
	db *gorm.DB
}

// NewSQLiteKV opens (or creates) the database at dsn and migrates the table.
// A nil log uses gorm's silent logger.
func NewSQLiteKV(dsn string, log gormlogger.Interface) (*SQLiteKV, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn required")
	}
	if log == nil {
		log = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// SQLite serialises writers; one connection also keeps ":memory:" databases shared.
	sqlDB.SetMaxOpenConns(1)

	if err := db.Use(otelgorm.NewPlugin(
		otelgorm.WithDBName("storefront-kv"),
		otelgorm.WithoutQueryVariables(),
	)); err != nil {
		return nil, fmt.Errorf("failed to install tracing plugin: %w", err)
	}

	return NewSQLiteKVWithDB(db)
}

// NewSQLiteKVWithDB uses an existing gorm handle
func NewSQLiteKVWithDB(db *gorm.DB) (*SQLiteKV, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv table: %w", err)
	}
	return &SQLiteKV{db: db}, nil
}

// Get reads a value
func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, error) {
	var entry Entry
	err := s.db.WithContext(ctx).Where("kv_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %q: %w", key, err)
	}
	return entry.Value, nil
}

// Set upserts a value
func (s *SQLiteKV) Set(ctx context.Context, key string, value []byte) error {
	entry := Entry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

// Delete removes keys
func (s *SQLiteKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("kv_key IN ?", keys).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *SQLiteKV) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ KV = (*SQLiteKV)(nil)
