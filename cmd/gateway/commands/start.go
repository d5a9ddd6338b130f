package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sensorgateway/gateway/internal/config"
	"github.com/sensorgateway/gateway/internal/controlsocket"
	"github.com/sensorgateway/gateway/internal/logger"
	"github.com/sensorgateway/gateway/internal/metrics"
	metricsprom "github.com/sensorgateway/gateway/internal/metrics/prometheus"
	"github.com/sensorgateway/gateway/internal/orchestrator"
	"github.com/sensorgateway/gateway/internal/sysstats"
)

var startCmd = &cobra.Command{
	Use:   "start [port]",
	Short: "Start the sensor data gateway",
	Long: `Start the sensor data gateway, listening for sensor connections on
the given TCP port. The port may also be set via the config file's
server.port tunable; a port given on the command line takes precedence.

Examples:
  gateway start 9000
  gateway start --config /etc/gateway/config.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	var cliPort int
	if len(args) == 1 {
		cliPort, err = strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", args[0], err)
		}
	}
	if err := config.ResolvePort(cfg, cliPort); err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.With()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector, metricsServer := buildMetrics(cfg)
	if metricsServer != nil {
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server error", logger.Err(err))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
		log.Info("metrics enabled", logger.Component("gateway"), "address", cfg.Metrics.Address)
	} else {
		log.Info("metrics disabled", logger.Component("gateway"))
	}

	orch, err := orchestrator.New(cfg, log, metricsCollector)
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	if cfg.ControlSocket.Enabled {
		ctlSrv := controlsocket.NewServer(orch, log.With(logger.Component("controlsocket")))
		go func() {
			if err := ctlSrv.Serve(ctx, cfg.ControlSocket.Address); err != nil {
				log.Warn("control socket stopped", logger.Err(err))
			}
		}()
		defer ctlSrv.Stop()
		log.Info("control socket enabled", logger.Component("gateway"), "address", cfg.ControlSocket.Address)
	}

	sampler, err := sysstats.New(sysstats.DefaultInterval, log.With(logger.Component("sysstats")), metricsCollector)
	if err != nil {
		log.Warn("system stats sampler unavailable", logger.Err(err))
	} else {
		go sampler.Run(ctx)
	}

	log.Info("gateway starting", logger.Component("gateway"), "port", cfg.Server.Port)

	runDone := make(chan error, 1)
	go func() { runDone <- orch.Run(ctx) }()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info("gateway running, press Ctrl+C to stop", logger.Component("gateway"))

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		log.Info("shutdown signal received, initiating graceful shutdown", logger.Component("gateway"))
		cancel()

		if err := <-runDone; err != nil {
			log.Error("gateway shutdown error", logger.Err(err))
			return err
		}
		log.Info("gateway stopped gracefully", logger.Component("gateway"))

	case err := <-runDone:
		signal.Stop(sigChan)
		if err != nil {
			log.Error("gateway terminated with error", logger.Err(err))
			return err
		}
		log.Info("gateway stopped", logger.Component("gateway"))
	}

	return nil
}

// buildMetrics constructs the metrics collector and, when enabled, an
// HTTP server exposing it on /metrics. The server is returned
// unstarted so the caller can control its lifecycle.
func buildMetrics(cfg *config.Config) (metrics.Collector, *http.Server) {
	if !cfg.Metrics.Enabled {
		return metrics.NoOp{}, nil
	}

	reg := prometheus.NewRegistry()
	collector := metricsprom.New(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    cfg.Metrics.Address,
		Handler: mux,
	}
	return collector, server
}
