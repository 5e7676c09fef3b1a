package retry

import (
	"fmt"
	"sync"
	"time"

	ncerr "rdb/internal/errors"
)

// ── Circuit breaker state ────────────────────────────────────────────

// State represents the circuit breaker's operational state.
type State int

const (
	// StateClosed is normal operation: calls pass through.
	StateClosed State = iota
	// StateOpen means recent calls kept failing and are short-circuited.
	StateOpen
	// StateHalfOpen lets probe calls through to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ── Configuration ────────────────────────────────────────────────────

// CircuitBreakerConfig configures a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before opening
	// the circuit (default 3).
	MaxFailures int
	// ResetTimeout is how long the circuit stays open before moving to
	// half-open (default 30s).
	ResetTimeout time.Duration
	// HalfOpenMax is the number of consecutive successes in half-open
	// state required to close the circuit (default 1).
	HalfOpenMax int
	// Ignore reports errors that neither count as failures nor reset
	// the failure count, e.g. a caller cancelling its own context.
	Ignore func(error) bool
	// OnStateChange is called whenever the state transitions.  It runs
	// under the lock, so keep it fast.
	OnStateChange func(from, to State)
}

// DefaultCircuitBreakerConfig returns the settings used for session
// construction.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:  3,
		ResetTimeout: 30 * time.Second,
		HalfOpenMax:  1,
	}
}

// OpenError is returned while the circuit is open.  It matches
// [ncerr.ErrCircuitOpen] and the failure that opened the circuit.
type OpenError struct {
	Failures int
	RetryIn  time.Duration
	Last     error
}

func (e *OpenError) Error() string {
	msg := fmt.Sprintf("circuit open: %d consecutive failures, retry in %v",
		e.Failures, e.RetryIn.Truncate(time.Second))
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *OpenError) Unwrap() []error {
	if e.Last == nil {
		return []error{ncerr.ErrCircuitOpen}
	}
	return []error{ncerr.ErrCircuitOpen, e.Last}
}

// ── CircuitBreaker ───────────────────────────────────────────────────

// CircuitBreaker stops repeating an operation that keeps failing, such
// as scanning an exhausted port window on every break, by tracking
// consecutive failures and short-circuiting once a threshold is crossed.
type CircuitBreaker struct {
	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	maxFailures   int
	resetTimeout  time.Duration
	halfOpenMax   int
	lastFailure   time.Time
	lastErr       error
	ignore        func(error) bool
	onStateChange func(from, to State)

	now func() time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(cfg *CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg == nil {
		cfg = def
	}
	maxF := cfg.MaxFailures
	if maxF <= 0 {
		maxF = def.MaxFailures
	}
	rt := cfg.ResetTimeout
	if rt <= 0 {
		rt = def.ResetTimeout
	}
	hom := cfg.HalfOpenMax
	if hom <= 0 {
		hom = def.HalfOpenMax
	}
	return &CircuitBreaker{
		state:         StateClosed,
		maxFailures:   maxF,
		resetTimeout:  rt,
		halfOpenMax:   hom,
		ignore:        cfg.Ignore,
		onStateChange: cfg.OnStateChange,
		now:           time.Now,
	}
}

// Execute runs fn through the circuit breaker.  When the circuit is
// open, fn is not called and an [*OpenError] is returned immediately.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}
	err := fn()
	cb.afterRequest(err)
	return err
}

// CurrentState returns the current circuit breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset forces the circuit breaker back to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.successes = 0
	cb.lastErr = nil
	cb.transition(StateClosed)
}

// ── internal ─────────────────────────────────────────────────────────

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}
	elapsed := cb.now().Sub(cb.lastFailure)
	if elapsed > cb.resetTimeout {
		cb.successes = 0
		cb.transition(StateHalfOpen)
		return nil
	}
	return &OpenError{
		Failures: cb.failures,
		RetryIn:  cb.resetTimeout - elapsed,
		Last:     cb.lastErr,
	}
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && cb.ignore != nil && cb.ignore(err) {
		return
	}

	if err != nil {
		cb.failures++
		cb.successes = 0
		cb.lastFailure = cb.now()
		cb.lastErr = err

		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.transition(StateOpen)
		}
		return
	}

	cb.successes++
	switch cb.state {
	case StateHalfOpen:
		if cb.successes >= cb.halfOpenMax {
			cb.failures = 0
			cb.lastErr = nil
			cb.transition(StateClosed)
		}
	case StateClosed:
		cb.failures = 0
		cb.lastErr = nil
	}
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}
