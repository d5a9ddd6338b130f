package orchestrator

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensorgateway/gateway/internal/config"
	"github.com/sensorgateway/gateway/internal/logger"
	"github.com/sensorgateway/gateway/internal/metrics"
	"github.com/sensorgateway/gateway/internal/sensor"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Server: config.Server{
			Port:                0,
			TCPBacklog:          10,
			MaxConnections:      10,
			MaxConnectionsPerIP: 5,
			SensorTimeoutSec:    5,
			SelectTimeoutSec:    1,
		},
		Buffer:    config.Buffer{SBufferSize: 4},
		Analytics: config.Analytics{TempTooHotThreshold: 30.0, TempTooColdThreshold: 15.0},
		Storage: config.Storage{
			DBConnectRetryAttempts: 3,
			DBConnectRetryDelaySec: 1,
			RetryQueueCapacity:     4,
			Driver:                 "sqlite",
			DSN:                    ":memory:",
		},
		RoomMap: config.RoomMap{MapFileName: filepath.Join(t.TempDir(), "missing.map")},
		Logging: config.Logging{Level: "INFO", Format: "text", Output: "stdout"},
	}
	return cfg
}

func TestOrchestratorIngestsAndShutsDownCleanly(t *testing.T) {
	o, err := New(testConfig(t), logger.With(), metrics.NoOp{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- o.Run(ctx) }()

	addr := o.ListenAddr()
	require.NotEmpty(t, addr)
	assert.Equal(t, StateRunning, o.State())

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write(sensor.Encode(5, 22.0))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(o.AnalyticsSnapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	conn.Close()
	cancel()

	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not shut down after context cancellation")
	}

	assert.Equal(t, StateStopped, o.State())
}

func TestOrchestratorRejectsUnknownStorageDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = "mongodb"

	_, err := New(cfg, logger.With(), metrics.NoOp{})
	assert.Error(t, err)
}

func TestOrchestratorToleratesSecondShutdownSignal(t *testing.T) {
	o, err := New(testConfig(t), logger.With(), metrics.NoOp{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- o.Run(ctx) }()

	_ = o.ListenAddr()

	// A second cancellation of an already-cancelled context must not
	// panic or otherwise disrupt shutdown.
	cancel()
	cancel()

	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not shut down")
	}
}
