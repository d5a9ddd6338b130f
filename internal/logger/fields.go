package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the gateway.
// Use these keys consistently so log lines can be aggregated and queried
// the same way regardless of which component emitted them.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Component & Operation
	// ========================================================================
	KeyComponent = "component" // Owning component: ingest, analytics, storage, orchestrator
	KeyOperation = "operation" // Sub-operation name
	KeyState     = "state"     // Lifecycle state (init, running, draining, stopped)

	// ========================================================================
	// Client / Connection
	// ========================================================================
	KeyClientIP     = "client_ip"     // Sensor TCP peer address
	KeyClientPort   = "client_port"   // Sensor TCP peer port
	KeyConnectionID = "connection_id" // Per-connection correlation id (uuid)

	// ========================================================================
	// Sensor Data
	// ========================================================================
	KeySensorID  = "sensor_id"  // Sensor identifier from the wire packet
	KeyRoomID    = "room_id"    // Room identifier resolved via the room map
	KeyValue     = "value"      // Reading value (temperature)
	KeyTimestamp = "timestamp"  // Reading timestamp (unix seconds)
	KeyCount     = "count"      // Generic count (bytes, readings, entries)
	KeyBytesRead = "bytes_read" // Bytes read off a connection

	// ========================================================================
	// Buffering & Queues
	// ========================================================================
	KeyBufferName = "buffer_name" // Staging buffer identifier (analytics, storage)
	KeyQueueDepth = "queue_depth" // Current occupancy of a bounded queue
	KeyCapacity   = "capacity"    // Maximum capacity of a bounded queue

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Numeric/kind error code
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts
	KeySource     = "source"      // Data source / backend name

	// ========================================================================
	// Storage Backend
	// ========================================================================
	KeyStoreType = "store_type" // Store backend: postgres, sqlite
	KeyRecordID  = "record_id"  // Primary key of a persisted record

	// ========================================================================
	// Alerting
	// ========================================================================
	KeyAlertKind  = "alert_kind"  // too_hot, too_cold
	KeyThreshold  = "threshold"   // Threshold value crossed
	KeyRunningAvg = "running_avg" // Running average at alert time
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// Component returns a slog.Attr naming the owning component.
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation returns a slog.Attr for sub-operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// State returns a slog.Attr for lifecycle state.
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// ClientIP returns a slog.Attr for the sensor's peer address.
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// ClientPort returns a slog.Attr for the sensor's peer port.
func ClientPort(port int) slog.Attr {
	return slog.Int(KeyClientPort, port)
}

// ConnectionID returns a slog.Attr for the per-connection correlation id.
func ConnectionID(id string) slog.Attr {
	return slog.String(KeyConnectionID, id)
}

// SensorID returns a slog.Attr for the sensor identifier.
func SensorID(id uint16) slog.Attr {
	return slog.Int(KeySensorID, int(id))
}

// RoomID returns a slog.Attr for the resolved room identifier.
func RoomID(id string) slog.Attr {
	return slog.String(KeyRoomID, id)
}

// Value returns a slog.Attr for a reading value.
func Value(v float64) slog.Attr {
	return slog.Float64(KeyValue, v)
}

// Timestamp returns a slog.Attr for a reading's unix timestamp.
func Timestamp(ts int64) slog.Attr {
	return slog.Int64(KeyTimestamp, ts)
}

// Count returns a slog.Attr for a generic count.
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// BytesRead returns a slog.Attr for bytes read off a connection.
func BytesRead(n int) slog.Attr {
	return slog.Int(KeyBytesRead, n)
}

// BufferName returns a slog.Attr naming a staging buffer.
func BufferName(name string) slog.Attr {
	return slog.String(KeyBufferName, name)
}

// QueueDepth returns a slog.Attr for current queue occupancy.
func QueueDepth(n int) slog.Attr {
	return slog.Int(KeyQueueDepth, n)
}

// Capacity returns a slog.Attr for a queue's maximum capacity.
func Capacity(n int) slog.Attr {
	return slog.Int(KeyCapacity, n)
}

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric/kind error code.
func ErrorCode(code string) slog.Attr {
	return slog.String(KeyErrorCode, code)
}

// Attempt returns a slog.Attr for retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for maximum retry attempts.
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// Source returns a slog.Attr for a data source / backend name.
func Source(src string) slog.Attr {
	return slog.String(KeySource, src)
}

// StoreType returns a slog.Attr for the storage backend in use.
func StoreType(t string) slog.Attr {
	return slog.String(KeyStoreType, t)
}

// RecordID returns a slog.Attr for a persisted record's primary key.
func RecordID(id uint64) slog.Attr {
	return slog.Uint64(KeyRecordID, id)
}

// AlertKind returns a slog.Attr for the kind of threshold alert raised.
func AlertKind(kind string) slog.Attr {
	return slog.String(KeyAlertKind, kind)
}

// Threshold returns a slog.Attr for the threshold value crossed.
func Threshold(v float64) slog.Attr {
	return slog.Float64(KeyThreshold, v)
}

// RunningAvg returns a slog.Attr for the running average at alert time.
func RunningAvg(v float64) slog.Attr {
	return slog.Float64(KeyRunningAvg, v)
}
