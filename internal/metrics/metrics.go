// Package metrics defines the gateway's observability surface as a
// plain interface, independent of any particular metrics backend. The
// concrete Prometheus implementation lives in the metrics/prometheus
// subpackage, so core components (internal/ingest, internal/analytics,
// internal/storage) depend only on this interface and never import
// the prometheus client directly.
package metrics

// Collector is the metrics surface the core ingestion pipeline
// reports against. A no-op implementation is provided by NoOp for
// callers (and tests) that do not want a metrics backend wired in.
type Collector interface {
	// ReadingsIngested increments the count of readings accepted by
	// the connection manager.
	ReadingsIngested(n int)

	// ReadingsDropped increments the count of readings dropped, by the
	// caller's drop reason (e.g. protocol_violation, short_read,
	// invalid_sensor_id, retry_queue_full).
	ReadingsDropped(reason string, n int)

	// ConnectionsActive sets the current count of active sensor
	// connections.
	ConnectionsActive(n int)

	// ConnectionsRejected increments the count of connections refused
	// by admission control (per-IP cap, total cap).
	ConnectionsRejected(reason string)

	// QueueDepth reports the current occupancy of a named staging
	// buffer or retry queue.
	QueueDepth(name string, depth int)

	// AlertsEmitted increments the count of hysteresis alerts raised
	// by the analytics worker, tagged by kind (too_hot, too_cold).
	AlertsEmitted(kind string)

	// StorageInsert records the outcome of a single storage insert
	// attempt.
	StorageInsert(success bool)

	// Gauge sets an arbitrary named gauge value, used by the
	// system-resource sampler to feed CPU/RSS readings into the same
	// registry as the core counters.
	Gauge(name string, value float64)
}

// NoOp is a Collector that discards everything. Useful for tests and
// for running the gateway with metrics disabled.
type NoOp struct{}

func (NoOp) ReadingsIngested(int)            {}
func (NoOp) ReadingsDropped(string, int)     {}
func (NoOp) ConnectionsActive(int)           {}
func (NoOp) ConnectionsRejected(string)      {}
func (NoOp) QueueDepth(string, int)          {}
func (NoOp) AlertsEmitted(string)            {}
func (NoOp) StorageInsert(bool)              {}
func (NoOp) Gauge(string, float64)           {}

var _ Collector = NoOp{}
