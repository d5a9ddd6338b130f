// Package postgres implements storage.Store against a PostgreSQL
// database via gorm, used as the gateway's production persistence
// backend.
package postgres

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sensorgateway/gateway/internal/sensor"
)

// SensorData is the gorm model for the SensorData table described in
// spec.md §6: (RecordID PK autoincrement, SensorID, Timestamp, Value).
type SensorData struct {
	RecordID  uint64 `gorm:"column:record_id;primaryKey;autoIncrement"`
	SensorID  uint16 `gorm:"column:sensor_id;not null"`
	Timestamp int64  `gorm:"column:timestamp;not null"`
	Value     float64 `gorm:"column:value;not null"`
}

// TableName pins the gorm model to the SensorData table name from the
// spec, rather than gorm's default pluralized/snake_case guess.
func (SensorData) TableName() string {
	return "SensorData"
}

// Store is a storage.Store backed by PostgreSQL.
type Store struct {
	dsn string

	mu sync.Mutex
	db *gorm.DB
}

// New constructs a Store for the given PostgreSQL DSN. Connect must be
// called before Insert.
func New(dsn string) *Store {
	return &Store{dsn: dsn}
}

// Connect opens the database connection and ensures the SensorData
// table exists, creating it on first connect.
func (s *Store) Connect(ctx context.Context) error {
	db, err := gorm.Open(postgres.Open(s.dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("postgres: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres: underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}

	if err := runMigrations(ctx, s.dsn); err != nil {
		return err
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
		return fmt.Errorf("postgres: not connected")
	}

	row := SensorData{
		SensorID:  r.SensorID,
		Timestamp: r.Timestamp,
		Value:     r.Value,
	}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("postgres: insert: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
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
