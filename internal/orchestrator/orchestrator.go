// Package orchestrator implements the orchestrator (C6): it parses
// configuration, wires together the staging buffers and the ingest,
// analytics, and storage components, runs them until a shutdown
// signal arrives, and drives the ordered shutdown sequence from
// spec.md §4.5.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sensorgateway/gateway/internal/analytics"
	"github.com/sensorgateway/gateway/internal/buffer"
	"github.com/sensorgateway/gateway/internal/config"
	"github.com/sensorgateway/gateway/internal/gatewayerrors"
	"github.com/sensorgateway/gateway/internal/ingest"
	"github.com/sensorgateway/gateway/internal/logger"
	"github.com/sensorgateway/gateway/internal/metrics"
	"github.com/sensorgateway/gateway/internal/roommap"
	"github.com/sensorgateway/gateway/internal/storage"
	"github.com/sensorgateway/gateway/internal/storage/postgres"
	"github.com/sensorgateway/gateway/internal/storage/sqlite"
)

// Orchestrator owns the lifecycle of every core component (C3-C5) and
// the two staging buffers that connect them.
type Orchestrator struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics metrics.Collector

	analyticsBuf *buffer.Staging
	storageBuf   *buffer.Staging

	ingestServer    *ingest.Server
	analyticsWorker *analytics.Worker
	storageWorker   *storage.Worker
	store           storage.Store

	listenAddr string

	state     atomic.Int32
	drainOnce sync.Once
}

// New builds an Orchestrator from cfg, wiring the staging buffers and
// every core component. The storage backend is selected by
// cfg.Storage.Driver ("postgres" or "sqlite"); any other value is a
// configuration error.
func New(cfg *config.Config, log *slog.Logger, metricsCollector metrics.Collector) (*Orchestrator, error) {
	if log == nil {
		log = logger.With()
	}
	if metricsCollector == nil {
		metricsCollector = metrics.NoOp{}
	}

	store, err := buildStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	rooms := roommap.Load(cfg.RoomMap.MapFileName, log.With(logger.Component("roommap")))

	analyticsBuf := buffer.NewStaging(cfg.Buffer.SBufferSize)
	storageBuf := buffer.NewStaging(cfg.Buffer.SBufferSize)

	registry := ingest.NewRegistry(cfg.Server.MaxConnections, cfg.Server.MaxConnectionsPerIP)
	idleTimeout := time.Duration(cfg.Server.SensorTimeoutSec) * time.Second

	o := &Orchestrator{
		cfg:          cfg,
		log:          log,
		metrics:      metricsCollector,
		analyticsBuf: analyticsBuf,
		storageBuf:   storageBuf,
		store:        store,
		listenAddr:   fmt.Sprintf(":%d", cfg.Server.Port),
		ingestServer: ingest.NewServer(registry, analyticsBuf, storageBuf, idleTimeout, cfg.Server.TCPBacklog, log.With(logger.Component("ingest")), metricsCollector),
		analyticsWorker: analytics.NewWorker(analyticsBuf, rooms, cfg.Analytics.TempTooColdThreshold, cfg.Analytics.TempTooHotThreshold,
			log.With(logger.Component("analytics")), metricsCollector),
	}
	o.storageWorker = storage.NewWorker(store, storageBuf, cfg.Storage.RetryQueueCapacity, cfg.Storage.DBConnectRetryAttempts,
		time.Duration(cfg.Storage.DBConnectRetryDelaySec)*time.Second, log.With(logger.Component("storage")), metricsCollector)
	o.state.Store(int32(StateInit))

	return o, nil
}

func buildStore(cfg config.Storage) (storage.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.New(cfg.DSN), nil
	case "sqlite":
		return sqlite.New(cfg.DSN), nil
	default:
		return nil, gatewayerrors.New(gatewayerrors.InvalidArgument, fmt.Sprintf("unknown storage driver %q", cfg.Driver))
	}
}

// State returns the orchestrator's current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// ListenAddr blocks until the ingest server's listener is bound and
// returns its address. Useful when the configured port is 0 (OS
// assigns an ephemeral port), as in tests.
func (o *Orchestrator) ListenAddr() string {
	return o.ingestServer.Addr()
}

// ActiveConnectionCount and FormatSnapshot expose the ingest server's
// connection registry to the control socket.
func (o *Orchestrator) ActiveConnectionCount() int {
	return o.ingestServer.ActiveConnectionCount()
}

func (o *Orchestrator) FormatSnapshot() string {
	return o.ingestServer.FormatSnapshot()
}

// AnalyticsSnapshot exposes the analytics worker's per-sensor stats.
// The control socket does not use it: its "stats" command reports the
// connection snapshot from FormatSnapshot.
func (o *Orchestrator) AnalyticsSnapshot() []analytics.Stats {
	return o.analyticsWorker.Snapshot()
}

type componentResult struct {
	name string
	err  error
}

// Run starts every component and blocks until ctx is cancelled (the
// termination signal) or a component fails fatally, then drives the
// ordered shutdown sequence and returns once every component has
// exited. A non-nil return means a component failed fatally (for
// example, storage.ErrReconnectExhausted); a nil return is a clean
// signal-triggered shutdown.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.state.Store(int32(StateRunning))
	o.log.Info("orchestrator running", logger.Component("orchestrator"), logger.State(StateRunning.String()))

	drainCtx, drainCancel := context.WithCancel(ctx)
	defer drainCancel()

	results := make(chan componentResult, 3)

	go func() { results <- componentResult{"analytics", o.analyticsWorker.Run()} }()
	go func() { results <- componentResult{"storage", o.storageWorker.Run(drainCtx)} }()
	go func() { results <- componentResult{"ingest", o.ingestServer.Serve(drainCtx, o.listenAddr)} }()

	ctxDone := ctx.Done()
	remaining := 3
	var fatal error

	for remaining > 0 {
		select {
		case <-ctxDone:
			ctxDone = nil
			o.log.Info("shutdown signal received", logger.Component("orchestrator"))
			o.drain(drainCancel)
		case r := <-results:
			remaining--
			if r.err != nil {
				o.log.Error("component terminated fatally", logger.Component("orchestrator"),
					slog.String("worker", r.name), logger.Err(r.err))
				if fatal == nil {
					fatal = r.err
				}
			}
			o.drain(drainCancel)
		}
	}

	o.state.Store(int32(StateStopped))
	o.log.Info("orchestrator stopped", logger.Component("orchestrator"), logger.State(StateStopped.String()))
	_ = o.store.Close()
	return fatal
}

// drain asserts shutdown on every component in the order spec.md
// §4.5 requires: close the listener first (stops new data entering
// C1), then shut down both staging buffers (drains and releases C4
// and C5). It is safe to call more than once; only the first call has
// an effect.
func (o *Orchestrator) drain(cancel context.CancelFunc) {
	o.drainOnce.Do(func() {
		o.state.Store(int32(StateDraining))
		o.log.Info("draining", logger.Component("orchestrator"), logger.State(StateDraining.String()))

		o.ingestServer.Stop()
		o.analyticsBuf.SignalShutdown()
		o.storageBuf.SignalShutdown()
		cancel()
	})
}
