package ingest

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTooManyConnections is returned by Registry.Admit when the total
// connection cap (MAX_CONNECTIONS) has been reached.
var ErrTooManyConnections = errors.New("ingest: max connections reached")

// ErrTooManyConnectionsPerIP is returned by Registry.Admit when the
// per-IP connection cap (MAX_CONNECTIONS_PER_IP) has been reached.
var ErrTooManyConnectionsPerIP = errors.New("ingest: per-ip connection cap reached")

// ClientRecord tracks a single live sensor connection. It is created
// on accept and mutated only through Registry methods, which take the
// registry lock for every access - including reads from the owning
// connection's own goroutine, per spec.md's "all field access ... is
// also done under the lock" requirement.
type ClientRecord struct {
	ID   string
	IP   string
	Port int

	// CorrelationID is a per-connection uuid used only to tie together
	// log lines for a single connection; it plays no part in admission
	// or lookup, which key off ID (the remote address).
	CorrelationID string

	SensorID    *uint16
	ConnectedAt int64
	LastActive  int64

	conn net.Conn
}

// Registry is the shared, mutex-guarded table of active ClientRecords.
// It is the single point of contention between the per-connection
// goroutines (which mutate their own record) and the control socket's
// stats-query entry points (which only read a snapshot).
type Registry struct {
	mu             sync.Mutex
	maxConnections int
	maxPerIP       int
	byID           map[string]*ClientRecord
}

// NewRegistry constructs a Registry enforcing the given total and
// per-IP connection caps.
func NewRegistry(maxConnections, maxPerIP int) *Registry {
	return &Registry{
		maxConnections: maxConnections,
		maxPerIP:       maxPerIP,
		byID:           make(map[string]*ClientRecord),
	}
}

// Admit runs the admission algorithm from spec.md §4.2 step 2-3: reject
// if the total or per-IP cap would be exceeded, otherwise register a
// new ClientRecord for conn.
func (r *Registry) Admit(conn net.Conn, ip string, port int) (*ClientRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.byID) >= r.maxConnections {
		return nil, ErrTooManyConnections
	}

	perIP := 0
	for _, rec := range r.byID {
		if rec.IP == ip {
			perIP++
		}
	}
	if perIP >= r.maxPerIP {
		return nil, ErrTooManyConnectionsPerIP
	}

	now := time.Now().Unix()
	rec := &ClientRecord{
		ID:            conn.RemoteAddr().String(),
		IP:            ip,
		Port:          port,
		CorrelationID: uuid.NewString(),
		ConnectedAt:   now,
		LastActive:    now,
		conn:          conn,
	}
	r.byID[rec.ID] = rec
	return rec, nil
}

// Remove deletes the record for id, if present. Idempotent.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// Touch updates a record's LastActive to now, used after every
// successfully read packet to reset the idle-timeout clock.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byID[id]; ok {
		rec.LastActive = time.Now().Unix()
	}
}

// SetSensorID records sensorID on the client's record. The first call
// for a given id just sets it (returns changed=false). A later call
// with a different sensor id updates it and returns changed=true, so
// the caller can log the identity-update warning required by spec.md
// §4.2 step 4 (Open Question decision #3: treated as an update, not a
// protocol violation).
func (r *Registry) SetSensorID(id string, sensorID uint16) (changed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok {
		return false
	}
	if rec.SensorID == nil {
		v := sensorID
		rec.SensorID = &v
		return false
	}
	if *rec.SensorID == sensorID {
		return false
	}
	*rec.SensorID = sensorID
	return true
}

// ActiveConnectionCount implements the control socket's
// active_connection_count() operation.
func (r *Registry) ActiveConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// FormatSnapshot implements the control socket's
// format_connection_snapshot() operation: a human-readable dump of
// every live connection, taken under the registry lock.
func (r *Registry) FormatSnapshot() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "active_connections=%d\n", len(r.byID))
	for _, rec := range r.byID {
		sensorID := "none"
		if rec.SensorID != nil {
			sensorID = strconv.Itoa(int(*rec.SensorID))
		}
		fmt.Fprintf(&b, "%s sensor_id=%s connected_at=%d last_active=%d\n",
			rec.ID, sensorID, rec.ConnectedAt, rec.LastActive)
	}
	return b.String()
}

// CloseAll force-closes every live connection's socket, used during
// shutdown after the listener has stopped accepting new clients.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.byID {
		_ = rec.conn.Close()
	}
}
