// Package analytics implements the analytics worker (C4): a single
// long-running consumer that maintains per-sensor running averages
// and emits hysteresis alerts on classification state transitions.
package analytics

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/sensorgateway/gateway/internal/buffer"
	"github.com/sensorgateway/gateway/internal/logger"
	"github.com/sensorgateway/gateway/internal/metrics"
	"github.com/sensorgateway/gateway/internal/roommap"
	"github.com/sensorgateway/gateway/internal/sensor"
)

// DefaultTooHotThreshold and DefaultTooColdThreshold are the
// classification boundaries from spec.md §6.
const (
	DefaultTooHotThreshold  = 30.0
	DefaultTooColdThreshold = 15.0
)

// Worker is the analytics worker (C4).
type Worker struct {
	staging *buffer.Staging
	rooms   *roommap.Map
	log     *slog.Logger
	metrics metrics.Collector

	tooHot  float64
	tooCold float64

	reg *registry
}

// NewWorker constructs an analytics worker. rooms may be nil, in which
// case alerts report the sensor id instead of a room id. metricsCollector
// may be metrics.NoOp{} if metrics are disabled.
func NewWorker(staging *buffer.Staging, rooms *roommap.Map, tooCold, tooHot float64, log *slog.Logger, metricsCollector metrics.Collector) *Worker {
	if metricsCollector == nil {
		metricsCollector = metrics.NoOp{}
	}
	if tooHot == 0 {
		tooHot = DefaultTooHotThreshold
	}
	if tooCold == 0 {
		tooCold = DefaultTooColdThreshold
	}
	return &Worker{
		staging: staging,
		rooms:   rooms,
		log:     log,
		metrics: metricsCollector,
		tooHot:  tooHot,
		tooCold: tooCold,
		reg:     newRegistry(),
	}
}

// Run consumes readings until the staging buffer signals shutdown,
// returning nil on clean exit.
func (w *Worker) Run() error {
	for {
		r, err := w.staging.Remove()
		if err != nil {
			if errors.Is(err, buffer.ErrShutdown) {
				w.log.Info("analytics worker exiting: buffer shut down", logger.Component("analytics"))
				return nil
			}
			return err
		}
		w.metrics.QueueDepth("analytics", w.staging.Len())
		w.process(r)
	}
}

func (w *Worker) process(r sensor.Reading) {
	if r.SensorID == sensor.InvalidID {
		w.log.Warn("dropping reading with invalid sensor id", logger.Component("analytics"))
		w.metrics.ReadingsDropped("invalid_sensor_id", 1)
		return
	}

	stats := w.reg.findOrCreate(r.SensorID)
	stats.Count++
	stats.Sum += r.Value

	state := classify(stats.Average(), w.tooCold, w.tooHot)
	if state == stats.LastState {
		return
	}
	stats.LastState = state
	w.emitAlert(stats, state)
}

// classify implements spec.md §4.3's threshold classification:
// avg < cold -> TooCold, avg > hot -> TooHot, else Normal.
func classify(avg, cold, hot float64) State {
	switch {
	case avg < cold:
		return TooCold
	case avg > hot:
		return TooHot
	default:
		return Normal
	}
}

func (w *Worker) emitAlert(stats *Stats, state State) {
	w.metrics.AlertsEmitted(state.String())

	attrs := []any{
		logger.Component("analytics"),
		logger.SensorID(stats.SensorID),
		logger.AlertKind(state.String()),
		logger.RunningAvg(stats.Average()),
	}
	if roomID, ok := w.rooms.Lookup(stats.SensorID); ok {
		attrs = append(attrs, logger.RoomID(strconv.Itoa(int(roomID))))
	}

	switch state {
	case TooHot:
		w.log.Warn("temperature too hot", attrs...)
	case TooCold:
		w.log.Warn("temperature too cold", attrs...)
	default:
		w.log.Info("temperature back to normal", attrs...)
	}
}

// Snapshot returns every tracked sensor's stats, for tests.
func (w *Worker) Snapshot() []Stats {
	return w.reg.snapshot()
}
