// Package sqlite implements storage.Store against a local SQLite
// database via gorm and the pure-Go glebarez/sqlite dialector, used
// for tests and single-node deployments that don't need PostgreSQL.
package sqlite

import (
	"context"
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sensorgateway/gateway/internal/sensor"
)

// SensorData is the gorm model for the SensorData table, matching the
// schema in spec.md §6.
type SensorData struct {
	RecordID  uint64  `gorm:"column:record_id;primaryKey;autoIncrement"`
	SensorID  uint16  `gorm:"column:sensor_id;not null"`
	Timestamp int64   `gorm:"column:timestamp;not null"`
	Value     float64 `gorm:"column:value;not null"`
}

// TableName pins the gorm model to the SensorData table name.
func (SensorData) TableName() string {
	return "SensorData"
}

// Store is a storage.Store backed by SQLite. path may be a file path
// or ":memory:" for an ephemeral in-process database.
type Store struct {
	path string

	mu sync.Mutex
	db *gorm.DB
}

// New constructs a Store for the given SQLite database path.
func New(path string) *Store {
	return &Store{path: path}
}

// Connect opens the database file and ensures the SensorData table
// exists.
func (s *Store) Connect(ctx context.Context) error {
	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("sqlite: connect: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&SensorData{}); err != nil {
		return fmt.Errorf("sqlite: automigrate: %w", err)
	}

	s.mu.Lock()
	s.db = db
	s.mu.Unlock()
	return nil
}

// Insert persists a single reading via a parameterized gorm Create.
func (s *Store) Insert(ctx context.Context, r sensor.Reading) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("sqlite: not connected")
	}

	row := SensorData{
		SensorID:  r.SensorID,
		Timestamp: r.Timestamp,
		Value:     r.Value,
	}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("sqlite: insert: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.mu.Unlock()
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CountRows returns the number of persisted rows, used by tests to
// assert on ingestion outcomes without a raw SQL query.
func (s *Store) CountRows(ctx context.Context) (int64, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return 0, fmt.Errorf("sqlite: not connected")
	}
	var count int64
	if err := db.WithContext(ctx).Model(&SensorData{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
