package commands

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sensorgateway/gateway/internal/sensor"
)

var (
	simTarget   string
	simSensors  int
	simRate     float64
	simDuration time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive a running gateway with synthetic sensor traffic",
	Long: `simulate opens N TCP connections to a target gateway and writes
synthetic 10-byte sensor packets at a configured rate. It is a test and
demonstration tool, not part of the gateway process itself.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simTarget, "target", "127.0.0.1:9000", "gateway address to connect to (host:port)")
	simulateCmd.Flags().IntVar(&simSensors, "sensors", 5, "number of simulated sensor connections")
	simulateCmd.Flags().Float64Var(&simRate, "rate", 1.0, "packets per second, per sensor")
	simulateCmd.Flags().DurationVar(&simDuration, "duration", 0, "how long to run before stopping (0 = until interrupted)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simSensors <= 0 {
		return fmt.Errorf("--sensors must be positive, got %d", simSensors)
	}
	if simRate <= 0 {
		return fmt.Errorf("--rate must be positive, got %f", simRate)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if simDuration > 0 {
		var durationCancel context.CancelFunc
		ctx, durationCancel = context.WithTimeout(ctx, simDuration)
		defer durationCancel()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	var wg sync.WaitGroup
	for i := 0; i < simSensors; i++ {
		sensorID := uint16(i + 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			simulateSensor(ctx, sensorID)
		}()
	}

	fmt.Printf("simulating %d sensors against %s at %.2f packets/sec each\n", simSensors, simTarget, simRate)
	wg.Wait()
	return nil
}

func simulateSensor(ctx context.Context, sensorID uint16) {
	conn, err := net.Dial("tcp", simTarget)
	if err != nil {
		fmt.Printf("sensor %d: failed to connect: %v\n", sensorID, err)
		return
	}
	defer conn.Close()

	interval := time.Duration(float64(time.Second) / simRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(int64(sensorID)))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			value := 10.0 + rng.Float64()*25.0
			if _, err := conn.Write(sensor.Encode(sensorID, value)); err != nil {
				fmt.Printf("sensor %d: write failed: %v\n", sensorID, err)
				return
			}
		}
	}
}
