package core

import (
	"context"
	"errors"
	"os"
	"time"

	"rdb/debugger"
	ncerr "rdb/internal/errors"
	"rdb/util"
)

// ListenMode is a small headless host program: it runs a counter
// workload and breaks into a remote session every Every iterations, so
// the whole debugger can be exercised with nothing but telnet.
type ListenMode struct {
	Registry   *debugger.Registry
	Every      int
	Iterations int // 0 runs until ctx is cancelled
	Interval   time.Duration
	Logger     *util.Logger

	// Stdin is only inspected for a terminal; nil means os.Stdin.
	Stdin *os.File
}

func (m *ListenMode) stdin() *os.File {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

// workload is the state the demo exposes through watches.
type workload struct {
	iteration int
	total     int
	fib       [2]int
	recent    []int
}

func (w *workload) step() {
	w.iteration++
	if w.fib == [2]int{} {
		w.fib = [2]int{0, 1}
	}
	w.fib = [2]int{w.fib[1], w.fib[0] + w.fib[1]}
	w.total += w.fib[0]
	w.recent = append(w.recent, w.fib[0])
	if len(w.recent) > 5 {
		w.recent = w.recent[1:]
	}
}

// Run executes the workload until Iterations is reached or ctx is
// cancelled.  Cancelling ctx also tears down a waiting or live session.
func (m *ListenMode) Run(ctx context.Context) error {
	every := m.Every
	if every < 1 {
		every = 1
	}

	stop := context.AfterFunc(ctx, func() { m.Registry.Shutdown() }) //nolint:errcheck
	defer stop()
	defer m.Registry.Shutdown() //nolint:errcheck

	if !isTerminal(int(m.stdin().Fd())) {
		cfg := m.Registry.Config()
		m.Logger.Info("stdin is not a terminal; attach with: rdb %s %d", cfg.Host, cfg.FirstPort())
	}

	var w workload
	m.Registry.Watch("iteration", func() any { return w.iteration })
	m.Registry.Watch("total", func() any { return w.total })
	m.Registry.Watch("fib", func() any { return w.fib[0] })
	m.Registry.Watch("recent", func() any { return append([]int(nil), w.recent...) })

	for m.Iterations == 0 || w.iteration < m.Iterations {
		if ctx.Err() != nil {
			return nil
		}
		w.step()
		m.Logger.Debug("iteration %d total %d", w.iteration, w.total)

		if w.iteration%every == 0 {
			if done := m.breakHere(ctx); done {
				return nil
			}
		}

		if m.Interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(m.Interval):
			}
		}
	}
	m.Logger.Verbose("workload finished after %d iterations", w.iteration)
	return nil
}

// breakHere reports whether the workload should stop.
func (m *ListenMode) breakHere(ctx context.Context) bool {
	err := m.Registry.SetTrace(ctx, nil)
	switch {
	case err == nil, errors.Is(err, ncerr.ErrTracingDisabled):
		return false
	case ctx.Err() != nil, errors.Is(err, ncerr.ErrSessionClosed):
		return true
	}
	m.Logger.Warn("break skipped: %v", err)
	return false
}
