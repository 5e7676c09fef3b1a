// Package errors provides domain-specific error types for rdb.
//
// These types carry structured context (host, port, operation) so the
// allocator can tell port contention from real faults and callers can
// report the scanned range when a session could not be opened.
package errors

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrPortExhausted   = errors.New("no available port")
	ErrSessionClosed   = errors.New("session is closed")
	ErrCircuitOpen     = errors.New("session construction circuit is open")
	ErrTracingDisabled = errors.New("tracing is disabled")
)

// ── Structured error types ───────────────────────────────────────────

// BindError records a failed bind of one candidate port.
type BindError struct {
	Host        string
	Port        int
	Err         error
	Recoverable bool // address in use or invalid port: try the next one
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", net.JoinHostPort(e.Host, fmt.Sprint(e.Port)), e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// ExhaustedError is returned when every port of a search window failed
// with a recoverable bind error.
type ExhaustedError struct {
	Host  string
	First int
	Last  int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("no available port on %s in range %d-%d", e.Host, e.First, e.Last)
}

// Is makes errors.Is(err, ErrPortExhausted) match.
func (e *ExhaustedError) Is(target error) bool { return target == ErrPortExhausted }

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // operation: "listen", "accept", "read", "write"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRecoverableBind reports whether err is a bind failure the port scan
// should skip over.
func IsRecoverableBind(err error) bool {
	var be *BindError
	return errors.As(err, &be) && be.Recoverable
}

// IsDisconnect reports whether err means the remote peer went away:
// EOF, a closed connection, a reset, or a broken pipe.
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	return false
}

// IsRetryable reports whether err is a NetworkError worth retrying,
// such as a refused dial while the host has not opened its session.
func IsRetryable(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Retryable
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Timeout() || opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use rdb/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
