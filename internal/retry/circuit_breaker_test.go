package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	ncerr "rdb/internal/errors"
)

// fakeClock lets tests move past the reset timeout without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg *CircuitBreakerConfig) (*CircuitBreaker, *fakeClock) {
	cb := NewCircuitBreaker(cfg)
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cb.now = clk.now
	return cb, clk
}

var errExhausted = &ncerr.ExhaustedError{Host: "127.0.0.1", First: 8899, Last: 8998}

func TestCircuitBreaker_NormalOperation(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	err := cb.Execute(func() error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected closed, got %s", cb.CurrentState())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(nil)

	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return errExhausted }) //nolint:errcheck
	}

	if cb.CurrentState() != StateOpen {
		t.Errorf("expected open after 3 failures, got %s", cb.CurrentState())
	}
	if cb.Failures() != 3 {
		t.Errorf("expected 3 failures, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_RejectsWhenOpen(t *testing.T) {
	cb, clk := newTestBreaker(&CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Minute})

	cb.Execute(func() error { return errExhausted }) //nolint:errcheck
	clk.advance(15 * time.Second)

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})

	if called {
		t.Error("fn should not have been called when circuit is open")
	}
	if !errors.Is(err, ncerr.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if !errors.Is(err, ncerr.ErrPortExhausted) {
		t.Errorf("open error should carry the last failure: %v", err)
	}
	var oe *OpenError
	if !errors.As(err, &oe) {
		t.Fatalf("expected *OpenError, got %T", err)
	}
	if oe.RetryIn != 45*time.Second {
		t.Errorf("RetryIn = %v, want 45s", oe.RetryIn)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clk := newTestBreaker(&CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: 10 * time.Second,
		HalfOpenMax:  2,
	})

	cb.Execute(func() error { return errExhausted }) //nolint:errcheck
	if cb.CurrentState() != StateOpen {
		t.Fatalf("expected open, got %s", cb.CurrentState())
	}

	clk.advance(11 * time.Second)

	// First success moves to half-open, but 2 required to close.
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.CurrentState() != StateHalfOpen {
		t.Errorf("expected half-open after first success, got %s", cb.CurrentState())
	}

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected closed after 2 successes, got %s", cb.CurrentState())
	}
}

func TestCircuitBreaker_HalfOpenFailure(t *testing.T) {
	cb, clk := newTestBreaker(&CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: 10 * time.Second})

	cb.Execute(func() error { return errExhausted }) //nolint:errcheck
	clk.advance(11 * time.Second)

	// Half-open probe fails → back to Open.
	cb.Execute(func() error { return fmt.Errorf("still exhausted") }) //nolint:errcheck
	if cb.CurrentState() != StateOpen {
		t.Errorf("expected open after half-open failure, got %s", cb.CurrentState())
	}
}

func TestCircuitBreaker_IgnoredErrors(t *testing.T) {
	cb, _ := newTestBreaker(&CircuitBreakerConfig{
		MaxFailures: 1,
		Ignore:      func(err error) bool { return errors.Is(err, context.Canceled) },
	})

	err := cb.Execute(func() error { return context.Canceled })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error should pass through, got %v", err)
	}
	if cb.CurrentState() != StateClosed || cb.Failures() != 0 {
		t.Errorf("cancellation counted as failure: state=%s failures=%d", cb.CurrentState(), cb.Failures())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(&CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})

	cb.Execute(func() error { return errExhausted }) //nolint:errcheck
	if cb.CurrentState() != StateOpen {
		t.Fatalf("expected open, got %s", cb.CurrentState())
	}

	cb.Reset()
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected closed after reset, got %s", cb.CurrentState())
	}
	if cb.Failures() != 0 {
		t.Errorf("expected 0 failures after reset, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_StateChange(t *testing.T) {
	var transitions []string
	cb, clk := newTestBreaker(&CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: 10 * time.Second,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, fmt.Sprintf("%s→%s", from, to))
		},
	})

	cb.Execute(func() error { return errExhausted }) //nolint:errcheck
	clk.advance(time.Minute)
	cb.Execute(func() error { return nil }) //nolint:errcheck

	want := []string{"closed→open", "open→half-open", "half-open→closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestCircuitBreaker_NilConfig(t *testing.T) {
	cb := NewCircuitBreaker(nil)
	if cb.maxFailures != 3 || cb.resetTimeout != 30*time.Second || cb.halfOpenMax != 1 {
		t.Errorf("unexpected defaults: %d %v %d", cb.maxFailures, cb.resetTimeout, cb.halfOpenMax)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(nil)

	cb.Execute(func() error { return errExhausted }) //nolint:errcheck
	cb.Execute(func() error { return errExhausted }) //nolint:errcheck
	cb.Execute(func() error { return nil })          //nolint:errcheck

	if cb.Failures() != 0 {
		t.Errorf("expected 0 failures after success, got %d", cb.Failures())
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected closed, got %s", cb.CurrentState())
	}
}

func TestOpenError_Message(t *testing.T) {
	err := &OpenError{Failures: 3, RetryIn: 12500 * time.Millisecond}
	if got, want := err.Error(), "circuit open: 3 consecutive failures, retry in 12s"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ncerr.ErrCircuitOpen) {
		t.Error("OpenError should match ErrCircuitOpen")
	}
}
