// Package prometheus implements metrics.Collector on top of
// github.com/prometheus/client_golang, registered against a
// caller-supplied registry so cmd/gateway controls exposition.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sensorgateway/gateway/internal/metrics"
)

// Collector is the Prometheus-backed metrics.Collector implementation.
type Collector struct {
	readingsIngested   prometheus.Counter
	readingsDropped     *prometheus.CounterVec
	connectionsActive   prometheus.Gauge
	connectionsRejected *prometheus.CounterVec
	queueDepth          *prometheus.GaugeVec
	alertsEmitted       *prometheus.CounterVec
	storageInsertsOK    prometheus.Counter
	storageInsertsFail  prometheus.Counter
	gauges              *prometheus.GaugeVec
}

// New registers the gateway's collectors against reg and returns a
// Collector implementing metrics.Collector.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		readingsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "readings_ingested_total",
			Help:      "Total number of sensor readings accepted by the connection manager.",
		}),
		readingsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "readings_dropped_total",
			Help:      "Total number of sensor readings dropped, by reason.",
		}, []string{"reason"}),
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "connections_active",
			Help:      "Current number of active sensor connections.",
		}),
		connectionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "connections_rejected_total",
			Help:      "Total number of connections refused by admission control, by reason.",
		}, []string{"reason"}),
		queueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "queue_depth",
			Help:      "Current occupancy of a named staging buffer or retry queue.",
		}, []string{"name"}),
		alertsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "alerts_emitted_total",
			Help:      "Total number of hysteresis alerts emitted, by kind.",
		}, []string{"kind"}),
		storageInsertsOK: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "storage_inserts_succeeded_total",
			Help:      "Total number of readings successfully persisted.",
		}),
		storageInsertsFail: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "storage_inserts_failed_total",
			Help:      "Total number of failed persistence attempts.",
		}),
		gauges: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "sampled_value",
			Help:      "Arbitrary sampled values, such as process CPU and RSS.",
		}, []string{"name"}),
	}
}

func (c *Collector) ReadingsIngested(n int) {
	c.readingsIngested.Add(float64(n))
}

func (c *Collector) ReadingsDropped(reason string, n int) {
	c.readingsDropped.WithLabelValues(reason).Add(float64(n))
}

func (c *Collector) ConnectionsActive(n int) {
	c.connectionsActive.Set(float64(n))
}

func (c *Collector) ConnectionsRejected(reason string) {
	c.connectionsRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) QueueDepth(name string, depth int) {
	c.queueDepth.WithLabelValues(name).Set(float64(depth))
}

func (c *Collector) AlertsEmitted(kind string) {
	c.alertsEmitted.WithLabelValues(kind).Inc()
}

func (c *Collector) StorageInsert(success bool) {
	if success {
		c.storageInsertsOK.Inc()
		return
	}
	c.storageInsertsFail.Inc()
}

func (c *Collector) Gauge(name string, value float64) {
	c.gauges.WithLabelValues(name).Set(value)
}

var _ metrics.Collector = (*Collector)(nil)
