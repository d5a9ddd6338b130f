package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/sensorgateway/gateway/internal/buffer"
	"github.com/sensorgateway/gateway/internal/gatewayerrors"
	"github.com/sensorgateway/gateway/internal/logger"
	"github.com/sensorgateway/gateway/internal/metrics"
	"github.com/sensorgateway/gateway/internal/sensor"
)

// ErrReconnectExhausted is returned by Run when every connect attempt
// in the retry budget has failed, at startup or after a connection is
// lost mid-stream. The orchestrator treats this as fatal (SW2).
var ErrReconnectExhausted = errors.New("storage: reconnect attempts exhausted")

var tracer = otel.Tracer("github.com/sensorgateway/gateway/internal/storage")

// Worker is the storage worker (C5): a single long-running consumer
// of its dedicated staging buffer, with a local retry queue that
// takes priority over fresh readings whenever it is non-empty.
type Worker struct {
	store      Store
	staging    *buffer.Staging
	retry      *RetryQueue
	log        *slog.Logger
	metrics    metrics.Collector
	retryAttempts int
	retryDelay    time.Duration

	connected bool
}

// NewWorker constructs a storage worker. metricsCollector may be
// metrics.NoOp{} if metrics are disabled.
func NewWorker(store Store, staging *buffer.Staging, retryCapacity, retryAttempts int, retryDelay time.Duration, log *slog.Logger, metricsCollector metrics.Collector) *Worker {
	if metricsCollector == nil {
		metricsCollector = metrics.NoOp{}
	}
	return &Worker{
		store:         store,
		staging:       staging,
		retry:         NewRetryQueue(retryCapacity),
		log:           log,
		metrics:       metricsCollector,
		retryAttempts: retryAttempts,
		retryDelay:    retryDelay,
	}
}

// connectWithBackoff attempts to (re)connect to the store up to
// retryAttempts times, sleeping retryDelay between attempts. Sleeps
// are interruptible via ctx cancellation. Returns
// ErrReconnectExhausted if every attempt fails.
func (w *Worker) connectWithBackoff(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= w.retryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.store.Connect(ctx); err != nil {
			lastErr = err
			w.log.Warn("store connect attempt failed",
				logger.Component("storage"), logger.Attempt(attempt), logger.MaxRetries(w.retryAttempts), logger.Err(err))

			if attempt == w.retryAttempts {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.retryDelay):
			}
			continue
		}
		w.connected = true
		return nil
	}
	w.log.Error("store connect attempts exhausted",
		logger.Component("storage"), logger.MaxRetries(w.retryAttempts), logger.Err(lastErr))
	return ErrReconnectExhausted
}

// Run executes the storage worker's startup connect and steady-state
// loop until the staging buffer signals shutdown or a (re)connect is
// cut short by ctx cancellation; both are a clean exit and return nil.
// Cancelling ctx does not by itself unblock a wait on the staging
// buffer. It returns ErrReconnectExhausted if the store becomes
// permanently unreachable, which the orchestrator treats as fatal.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.connectWithBackoff(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer w.store.Close()

	for {
		if !w.connected {
			if err := w.connectWithBackoff(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}

		current, fromRetry, err := w.next(ctx)
		if err != nil {
			if errors.Is(err, buffer.ErrShutdown) {
				w.log.Info("storage worker exiting: buffer shut down", logger.Component("storage"))
				return nil
			}
			return err
		}

		w.metrics.QueueDepth("storage_retry", w.retry.Len())

		if insertErr := w.insert(ctx, current); insertErr != nil {
			w.connected = false
			w.metrics.StorageInsert(false)
			w.log.Warn("storage insert failed, connection considered lost",
				logger.Component("storage"), logger.SensorID(current.SensorID), logger.Err(insertErr))

			if !fromRetry {
				if dropped := w.retry.Push(current); dropped {
					w.log.Warn("retry queue full, dropped oldest pending reading",
						logger.Component("storage"), logger.Capacity(w.retry.Capacity()))
					w.metrics.ReadingsDropped("retry_queue_full", 1)
				}
			}
			// fromRetry: leave at head, retried again next iteration.
			continue
		}

		w.metrics.StorageInsert(true)
		if fromRetry {
			w.retry.Dequeue()
		}
	}
}

// next chooses the source for this iteration: the retry queue head if
// non-empty, else the next reading from the staging buffer.
func (w *Worker) next(ctx context.Context) (sensor.Reading, bool, error) {
	if r, ok := w.retry.Peek(); ok {
		return r, true, nil
	}
	r, err := w.staging.Remove()
	if err != nil {
		return sensor.Reading{}, false, err
	}
	return r, false, nil
}

func (w *Worker) insert(ctx context.Context, r sensor.Reading) error {
	ctx, span := tracer.Start(ctx, "storage.insert", trace.WithAttributes())
	defer span.End()

	if err := w.store.Insert(ctx, r); err != nil {
		return gatewayerrors.Wrap(gatewayerrors.DbInsert, "insert reading", err)
	}
	return nil
}
