// Package controlsocket implements the control socket collaborator
// from spec.md §6: a local line-protocol TCP listener exposing two
// read-only operations, active_connection_count() and
// format_connection_snapshot(), backed by the ingest connection
// registry.
package controlsocket

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/sensorgateway/gateway/internal/logger"
)

// DefaultAddress is the loopback address the control socket binds to
// when not overridden by configuration.
const DefaultAddress = "127.0.0.1:7070"

// StatsProvider is the core-facing surface the control socket calls
// through to. *ingest.Server and *orchestrator.Orchestrator both
// satisfy it.
type StatsProvider interface {
	ActiveConnectionCount() int
	FormatSnapshot() string
}

// Server is the control socket listener. Each accepted connection is
// handled as a single request/response: one command line in, one
// response, then close.
type Server struct {
	provider StatsProvider
	log      *slog.Logger

	mu       sync.RWMutex
	listener net.Listener

	shutdownOnce sync.Once
	shutdown     chan struct{}
	wg           sync.WaitGroup
}

// NewServer constructs a control socket server over provider.
func NewServer(provider StatsProvider, log *slog.Logger) *Server {
	if log == nil {
		log = logger.With()
	}
	return &Server{
		provider: provider,
		log:      log,
		shutdown: make(chan struct{}),
	}
}

// Serve binds addr and answers status/stats requests until ctx is
// cancelled or Stop is called.
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.Info("control socket listening", logger.Component("controlsocket"), slog.String("address", addr))

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
				s.log.Warn("control socket accept error", logger.Component("controlsocket"), logger.Err(err))
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

// Stop initiates shutdown and waits for in-flight requests to finish.
func (s *Server) Stop() {
	s.initiateShutdown()
	s.wg.Wait()
}

func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		s.mu.RLock()
		l := s.listener
		s.mu.RUnlock()
		if l != nil {
			_ = l.Close()
		}
	})
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	cmd := strings.TrimSpace(scanner.Text())

	switch cmd {
	case "status":
		fmt.Fprintf(conn, "active_connections=%d\n", s.provider.ActiveConnectionCount())
	case "stats":
		fmt.Fprint(conn, s.provider.FormatSnapshot())
	default:
		fmt.Fprintf(conn, "error: unknown command %q\n", cmd)
	}
}
