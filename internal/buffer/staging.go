// Package buffer implements the gateway's bounded staging buffer: a
// single-producer/single-consumer FIFO with blocking insert/remove and
// cooperative shutdown, decoupling ingestion from the downstream
// analytics and storage workers.
package buffer

import (
	"errors"
	"sync"

	"github.com/sensorgateway/gateway/internal/sensor"
)

// ErrShutdown is returned by Insert and Remove once the buffer has
// been shut down and, for Remove, fully drained.
var ErrShutdown = errors.New("buffer: shut down")

// DefaultCapacity is the default staging buffer capacity (B in the
// spec), used when the orchestrator does not override it via config.
const DefaultCapacity = 15

// Staging is a bounded circular FIFO of sensor.Reading shared between
// exactly one producer and one consumer. It is safe to call Insert
// from one goroutine and Remove from another concurrently; calling
// Insert from multiple goroutines (or Remove from multiple goroutines)
// is not supported, matching the spec's single-producer/single-consumer
// contract.
type Staging struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	items    []sensor.Reading
	head     int
	tail     int
	count    int
	shutdown bool
}

// NewStaging constructs a Staging buffer with the given capacity. A
// non-positive capacity is rejected in favor of DefaultCapacity.
func NewStaging(capacity int) *Staging {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Staging{
		items: make([]sensor.Reading, capacity),
	}
	s.notFull = sync.NewCond(&s.mu)
	s.notEmpty = sync.NewCond(&s.mu)
	return s
}

// Capacity returns the buffer's fixed capacity (B).
func (s *Staging) Capacity() int {
	return len(s.items)
}

// Insert enqueues a reading, blocking while the buffer is full. It
// returns ErrShutdown without enqueueing if shutdown has been
// asserted, either before or while blocking.
func (s *Staging) Insert(r sensor.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return ErrShutdown
	}
	for s.count == len(s.items) {
		s.notFull.Wait()
		if s.shutdown {
			return ErrShutdown
		}
	}

	s.items[s.head] = r
	s.head = (s.head + 1) % len(s.items)
	s.count++
	s.notEmpty.Signal()
	return nil
}

// Remove dequeues the oldest reading, blocking while the buffer is
// empty. Once shutdown has been asserted, Remove continues to drain
// any pending readings in FIFO order; it only returns ErrShutdown once
// the buffer is both shut down and empty.
func (s *Staging) Remove() (sensor.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.count == 0 {
		if s.shutdown {
			return sensor.Reading{}, ErrShutdown
		}
		s.notEmpty.Wait()
	}

	r := s.items[s.tail]
	s.items[s.tail] = sensor.Reading{}
	s.tail = (s.tail + 1) % len(s.items)
	s.count--
	s.notFull.Signal()
	return r, nil
}

// Len reports the current occupancy, for metrics and control-socket
// snapshots.
func (s *Staging) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// SignalShutdown asserts the shutdown flag and wakes every waiter on
// both conditions. Idempotent: calling it more than once is harmless.
func (s *Staging) SignalShutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	s.notFull.Broadcast()
	s.notEmpty.Broadcast()
}

// ShuttingDown reports whether shutdown has been asserted.
func (s *Staging) ShuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}
