// Package sensor defines the gateway's core data model: the
// SensorReading shared between the ingest, analytics, and storage
// components, and the 10-byte wire encoding the connection manager
// reads off each sensor socket.
package sensor

// InvalidID is the reserved sensor id. A reading carrying this id is
// still forwarded to the staging buffers like any other reading; it is
// the analytics worker that drops it (after logging), since that is
// where a per-sensor identity is needed.
const InvalidID uint16 = 0

// Reading is a single temperature sample. It is immutable once
// constructed: ownership passes from the connection manager to the
// staging buffers to the analytics and storage workers, and each
// consumer operates on its own copy.
type Reading struct {
	SensorID  uint16
	Value     float64
	Timestamp int64 // seconds since epoch, assigned at read time
}

// New constructs a Reading, stamping it with the given timestamp. The
// gateway assigns the timestamp itself at the moment the packet is
// read; it is never taken from the wire.
func New(sensorID uint16, value float64, timestamp int64) Reading {
	return Reading{
		SensorID:  sensorID,
		Value:     value,
		Timestamp: timestamp,
	}
}
