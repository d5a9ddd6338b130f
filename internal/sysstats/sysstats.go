// Package sysstats periodically samples process CPU and memory usage
// and feeds them into the metrics collector as gauges, giving
// operators visibility into the gateway's own resource footprint
// alongside the domain counters.
package sysstats

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/sensorgateway/gateway/internal/logger"
	"github.com/sensorgateway/gateway/internal/metrics"
)

// DefaultInterval is how often the sampler reports a new reading when
// the caller does not override it.
const DefaultInterval = 15 * time.Second

const (
	gaugeCPUPercent = "process_cpu_percent"
	gaugeRSSBytes   = "process_rss_bytes"
)

// Sampler periodically reads this process's CPU and RSS usage via
// gopsutil and reports them through a metrics.Collector.
type Sampler struct {
	proc     *process.Process
	interval time.Duration
	log      *slog.Logger
	metrics  metrics.Collector
}

// New constructs a Sampler for the current process. interval <= 0
// falls back to DefaultInterval.
func New(interval time.Duration, log *slog.Logger, metricsCollector metrics.Collector) (*Sampler, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logger.With()
	}
	if metricsCollector == nil {
		metricsCollector = metrics.NoOp{}
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	return &Sampler{proc: proc, interval: interval, log: log, metrics: metricsCollector}, nil
}

// Run samples on a ticker until ctx is cancelled. A failed individual
// sample is logged and skipped; it never terminates the loop.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Sampler) sample() {
	cpuPercent, err := s.proc.CPUPercent()
	if err != nil {
		s.log.Warn("failed to sample process CPU usage", logger.Component("sysstats"), logger.Err(err))
	} else {
		s.metrics.Gauge(gaugeCPUPercent, cpuPercent)
	}

	memInfo, err := s.proc.MemoryInfo()
	if err != nil {
		s.log.Warn("failed to sample process memory usage", logger.Component("sysstats"), logger.Err(err))
		return
	}
	s.metrics.Gauge(gaugeRSSBytes, float64(memInfo.RSS))
}
