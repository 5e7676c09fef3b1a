// Package metrics provides lightweight, lock-free counters for tracking
// the remote sessions opened by an rdb registry.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks session, stream and allocator statistics.
type Collector struct {
	sessionsActive atomic.Int64
	sessionsTotal  atomic.Int64
	breaks         atomic.Int64
	bytesIn        atomic.Int64
	bytesOut       atomic.Int64
	portConflicts  atomic.Int64
	errorsTotal    atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastSession  time.Time
	lastPeer     string
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionOpened records a peer attaching to a new session.
func (c *Collector) SessionOpened(peer string) {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
	c.mu.Lock()
	c.lastSession = time.Now()
	c.lastPeer = peer
	c.mu.Unlock()
}

// SessionClosed decrements the active session counter.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// ActiveSessions returns the number of sessions not yet closed.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalSessions returns the lifetime session count.
func (c *Collector) TotalSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// Break records one break request that entered an interactive loop.
func (c *Collector) Break() {
	if c == nil {
		return
	}
	c.breaks.Add(1)
}

// Breaks returns the number of break requests served.
func (c *Collector) Breaks() int64 {
	if c == nil {
		return 0
	}
	return c.breaks.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from the peer.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the peer.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Allocator metrics ────────────────────────────────────────────────

// PortConflict records a candidate port skipped during allocation.
func (c *Collector) PortConflict() {
	if c == nil {
		return
	}
	c.portConflicts.Add(1)
}

// PortConflicts returns the number of candidates skipped so far.
func (c *Collector) PortConflicts() int64 {
	if c == nil {
		return 0
	}
	return c.portConflicts.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	SessionsActive   int64  `json:"sessions_active"`
	SessionsTotal    int64  `json:"sessions_total"`
	Breaks           int64  `json:"breaks"`
	BytesIn          int64  `json:"bytes_in"`
	BytesOut         int64  `json:"bytes_out"`
	PortConflicts    int64  `json:"port_conflicts"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastSession      string `json:"last_session,omitempty"`
	LastPeer         string `json:"last_peer,omitempty"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:         time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsActive: c.sessionsActive.Load(),
		SessionsTotal:  c.sessionsTotal.Load(),
		Breaks:         c.breaks.Load(),
		BytesIn:        c.bytesIn.Load(),
		BytesOut:       c.bytesOut.Load(),
		PortConflicts:  c.portConflicts.Load(),
		ErrorsTotal:    c.errorsTotal.Load(),
		LastPeer:       c.lastPeer,
	}
	if !c.lastSession.IsZero() {
		s.LastSession = c.lastSession.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
