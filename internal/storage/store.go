// Package storage implements the storage worker (C5): it consumes
// readings from its staging buffer, giving priority to its local
// retry queue, and persists them to a relational store behind the
// Store interface.
package storage

import (
	"context"

	"github.com/sensorgateway/gateway/internal/sensor"
)

// Record is a persisted sensor reading, including the store-assigned
// primary key.
type Record struct {
	RecordID  uint64
	SensorID  uint16
	Timestamp int64
	Value     float64
}

// Store is the persistence backend the storage worker inserts into.
// Implementations live in storage/postgres and storage/sqlite; both
// back the same SensorData table shape described in spec.md §6.
type Store interface {
	// Connect establishes (or re-establishes) the backend connection
	// and ensures the SensorData table exists. It is called once at
	// startup and again on every reconnect attempt.
	Connect(ctx context.Context) error

	// Insert persists a single reading. Implementations must use a
	// parameterized statement.
	Insert(ctx context.Context, r sensor.Reading) error

	// Close releases the backend connection.
	Close() error
}
