// Package ingest implements the connection manager (C3): the TCP
// ingest front end that accepts sensor connections, enforces
// admission caps and idle timeouts, decodes wire packets, and forwards
// readings to the analytics and storage staging buffers.
package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sensorgateway/gateway/internal/buffer"
	"github.com/sensorgateway/gateway/internal/logger"
	"github.com/sensorgateway/gateway/internal/metrics"
	"github.com/sensorgateway/gateway/internal/sensor"
)

// DefaultIdleTimeout and DefaultBacklog mirror spec.md §6's
// SENSOR_TIMEOUT_SEC and TCP_BACKLOG defaults.
const (
	DefaultIdleTimeout = 5 * time.Second
	DefaultBacklog     = 10
)

// Server is the connection manager (C3). Unlike the spec's prose,
// which describes a single supervisory thread multiplexing connections
// with select/poll/epoll, Server uses goroutine-per-connection: each
// accepted socket gets its own goroutine blocked in a deadline-bounded
// read, which is the idiomatic Go equivalent of a readiness-multiplexed
// event loop (see DESIGN.md Open Question decision #5). Admission
// control and idle-timeout enforcement are otherwise exactly as
// specified.
type Server struct {
	registry    *Registry
	analytics   *buffer.Staging
	storage     *buffer.Staging
	idleTimeout time.Duration
	backlog     int

	log     *slog.Logger
	metrics metrics.Collector

	mu       sync.RWMutex
	listener net.Listener

	listenerReady chan struct{}
	readyOnce     sync.Once

	shutdownOnce sync.Once
	shutdown     chan struct{}
	wg           sync.WaitGroup
}

// NewServer constructs a connection manager forwarding every accepted
// reading to both analytics and storage staging buffers.
func NewServer(registry *Registry, analyticsBuf, storageBuf *buffer.Staging, idleTimeout time.Duration, backlog int, log *slog.Logger, metricsCollector metrics.Collector) *Server {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	if metricsCollector == nil {
		metricsCollector = metrics.NoOp{}
	}
	if log == nil {
		log = logger.With()
	}
	return &Server{
		registry:    registry,
		analytics:   analyticsBuf,
		storage:     storageBuf,
		idleTimeout: idleTimeout,
		backlog:     backlog,
		log:           log,
		metrics:       metricsCollector,
		shutdown:      make(chan struct{}),
		listenerReady: make(chan struct{}),
	}
}

// Serve binds addr and accepts connections until ctx is cancelled or
// Stop is called, then waits for every in-flight connection goroutine
// to exit before returning. The TCP_BACKLOG tunable is accepted for
// parity with spec.md §6 but is not passed to the kernel: the standard
// library's net.Listen does not expose a listen() backlog parameter,
// and the OS default (net.core.somaxconn) is what Go programs use in
// practice.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lc := reuseAddrListenConfig()
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.listenerReady) })

	s.log.Info("ingest server listening", logger.Component("ingest"), slog.String("address", addr), logger.Capacity(s.backlog))

	go func() {
		select {
		case <-ctx.Done():
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				s.wg.Wait()
				return nil
			default:
				s.log.Warn("accept error", logger.Component("ingest"), logger.Err(err))
				continue
			}
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		host, portStr, splitErr := net.SplitHostPort(conn.RemoteAddr().String())
		if splitErr != nil {
			host = conn.RemoteAddr().String()
		}
		port, _ := strconv.Atoi(portStr)

		rec, admitErr := s.registry.Admit(conn, host, port)
		if admitErr != nil {
			reason := "max_connections"
			if errors.Is(admitErr, ErrTooManyConnectionsPerIP) {
				reason = "max_connections_per_ip"
			}
			s.metrics.ConnectionsRejected(reason)
			s.log.Warn("connection rejected", logger.Component("ingest"), logger.ClientIP(host), logger.Err(admitErr))
			_ = conn.Close()
			continue
		}

		s.metrics.ConnectionsActive(s.registry.ActiveConnectionCount())

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(rec)
		}()
	}
}

// Stop initiates shutdown and blocks until every connection goroutine
// has exited.
func (s *Server) Stop() {
	s.initiateShutdown()
	s.wg.Wait()
}

// initiateShutdown closes the listener then force-closes every live
// connection, matching spec.md §4.2's "close the listener, then close
// all client sockets" shutdown order. Safe to call more than once.
func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		s.mu.RLock()
		l := s.listener
		s.mu.RUnlock()
		if l != nil {
			_ = l.Close()
		}

		s.registry.CloseAll()
	})
}

// Addr blocks until the listener is bound and returns its address.
// Used by tests and by callers that bind to port 0 and need to learn
// the OS-assigned port.
func (s *Server) Addr() string {
	<-s.listenerReady
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ActiveConnectionCount exposes the registry's connection count for
// the control socket.
func (s *Server) ActiveConnectionCount() int {
	return s.registry.ActiveConnectionCount()
}

// FormatSnapshot exposes the registry's connection snapshot for the
// control socket.
func (s *Server) FormatSnapshot() string {
	return s.registry.FormatSnapshot()
}

func (s *Server) handleConnection(rec *ClientRecord) {
	connLog := s.log.With(
		logger.Component("ingest"),
		logger.ClientIP(rec.IP),
		logger.ClientPort(rec.Port),
		logger.ConnectionID(rec.CorrelationID),
	)
	connLog.Debug("connection accepted")

	defer func() {
		_ = rec.conn.Close()
		s.registry.Remove(rec.ID)
		s.metrics.ConnectionsActive(s.registry.ActiveConnectionCount())
		connLog.Debug("connection closed")
	}()

	packet := make([]byte, sensor.PacketSize)
	for {
		if err := rec.conn.SetReadDeadline(time.Now().Add(s.idleTimeout)); err != nil {
			connLog.Warn("failed to set read deadline", logger.Err(err))
		}

		n, err := io.ReadFull(rec.conn, packet)
		if err != nil {
			s.logReadFailure(connLog, n, err)
			return
		}

		sensorID, value, err := sensor.Decode(packet)
		if err != nil {
			connLog.Warn("protocol violation: malformed packet", logger.Err(err))
			s.metrics.ReadingsDropped("protocol_violation", 1)
			return
		}
		if sensorID == sensor.InvalidID {
			connLog.Warn("reading carries invalid sensor id", logger.SensorID(sensorID))
		}

		s.registry.Touch(rec.ID)
		if changed := s.registry.SetSensorID(rec.ID, sensorID); changed {
			connLog.Warn("sensor id changed mid-connection", logger.SensorID(sensorID))
		}

		reading := sensor.New(sensorID, value, time.Now().Unix())
		s.forward(connLog, reading)
	}
}

// logReadFailure classifies a failed read the way spec.md §4.2
// expects: clean EOF is an orderly disconnect, a short read is a
// protocol violation, a deadline expiry is an idle timeout, anything
// else is a plain I/O error. A short read also counts as a dropped
// reading, since the partial packet is discarded.
func (s *Server) logReadFailure(log *slog.Logger, n int, err error) {
	switch {
	case errors.Is(err, io.EOF):
		log.Info("connection closed by peer")
	case errors.Is(err, io.ErrUnexpectedEOF):
		log.Warn("protocol violation: short read", logger.BytesRead(n))
		s.metrics.ReadingsDropped("short_read", 1)
	case isTimeout(err):
		log.Info("idle timeout, disconnecting sensor")
	default:
		log.Warn("read error", logger.Err(err))
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (s *Server) forward(log *slog.Logger, r sensor.Reading) {
	if err := s.analytics.Insert(r); err != nil && !errors.Is(err, buffer.ErrShutdown) {
		log.Warn("failed to forward reading to analytics buffer", logger.Err(err))
	}
	if err := s.storage.Insert(r); err != nil && !errors.Is(err, buffer.ErrShutdown) {
		log.Warn("failed to forward reading to storage buffer", logger.Err(err))
	}
	s.metrics.ReadingsIngested(1)
}
