// Package debugger is the entry point for host programs: a Registry owns
// the current remote session for the life of the process, and Break
// pauses the calling goroutine until a peer connected over TCP tells it
// to continue.
//
//	debugger.Watch("queue", func() any { return q.Len() })
//	debugger.Break() // telnet 127.0.0.1 8899
package debugger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"rdb/config"
	"rdb/internal/capability"
	ncerr "rdb/internal/errors"
	"rdb/internal/metrics"
	"rdb/internal/port"
	"rdb/internal/retry"
	"rdb/internal/session"
	"rdb/internal/stdio"
	"rdb/util"
)

// Frame is the execution context handed to the engine at a break.
type Frame = capability.Frame

// Engine is the interactive-loop collaborator driven over the session.
type Engine = capability.Engine

// Outcome reports how an interactive loop ended.
type Outcome = capability.Outcome

// Outcomes.
const (
	OutcomeNone       = capability.OutcomeNone
	OutcomeContinue   = capability.OutcomeContinue
	OutcomeQuit       = capability.OutcomeQuit
	OutcomeDisconnect = capability.OutcomeDisconnect
)

// EngineFactory builds the engine for a new session.  stopTracing must
// be called when the engine is told to quit.
type EngineFactory func(stopTracing func()) Engine

// Option configures a Registry.
type Option func(*Registry)

// WithOutput sets the sink for banner and status lines.
func WithOutput(w io.Writer) Option {
	return func(r *Registry) { r.out = w }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *util.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithInteractive replaces the process stdin/stdout pair as the
// interactive channel sessions redirect.
func WithInteractive(in io.Reader, out io.Writer) Option {
	return func(r *Registry) { r.channels = stdio.New(in, out) }
}

// WithMetrics shares a collector with the caller.
func WithMetrics(m *metrics.Collector) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithEngine replaces the built-in console.
func WithEngine(f EngineFactory) Option {
	return func(r *Registry) { r.newEngine = f }
}

// Registry owns the current session slot.  A live session is reused by
// every break; a closed one is replaced on the next break.
type Registry struct {
	cfg       *config.Config
	out       io.Writer
	channels  *stdio.Channels
	logger    *util.Logger
	log       *util.Logger
	metrics   *metrics.Collector
	allocator *port.Allocator
	breaker   *retry.CircuitBreaker
	newEngine EngineFactory

	mu      sync.Mutex // guards current; held while a session is built
	current *session.Session

	tracing atomic.Bool

	wmu     sync.RWMutex
	watches map[string]func() any

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Registry.  A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) *Registry {
	if cfg == nil {
		cfg = config.Default()
	}
	r := &Registry{
		cfg:      cfg,
		out:      os.Stdout,
		channels: stdio.Std(),
		metrics:  metrics.New(),
		watches:  make(map[string]func() any),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.logger.Named("debugger")
	r.allocator = port.NewAllocator(r.logger, r.metrics)
	r.breaker = retry.NewCircuitBreaker(&retry.CircuitBreakerConfig{
		MaxFailures:  config.DefaultBreakerFailures,
		ResetTimeout: config.DefaultBreakerReset,
		Ignore:       isCancel,
		OnStateChange: func(from, to retry.State) {
			r.log.Verbose("session breaker %s → %s", from, to)
		},
	})
	if r.newEngine == nil {
		r.newEngine = func(stop func()) Engine {
			return capability.NewConsole(capability.ConsoleConfig{
				Metrics:     r.metrics,
				Logger:      r.logger,
				StopTracing: stop,
			})
		}
	}
	r.tracing.Store(true)
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Session returns the active session, or builds a new one and blocks
// until a peer connects.  The slot only changes once a replacement is
// connected; after a failed build it still holds the closed session.
func (r *Registry) Session(ctx context.Context) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil && r.current.Active() {
		return r.current, nil
	}
	if r.ctx.Err() != nil {
		return nil, ncerr.ErrSessionClosed
	}

	ctx, stop := r.bind(ctx)
	defer stop()

	var s *session.Session
	err := r.breaker.Execute(func() error {
		var err error
		s, err = session.New(ctx, session.Options{
			Host:       r.cfg.Host,
			Port:       r.cfg.Port,
			Window:     r.cfg.Window,
			Skew:       r.cfg.Skew,
			Out:        r.out,
			Channels:   r.channels,
			RedirectOS: r.cfg.RedirectStdio,
			Engine:     r.newEngine(r.DisableTracing),
			Allocator:  r.allocator,
			Logger:     r.logger,
			Metrics:    r.metrics,
		})
		return err
	})
	if err != nil {
		if r.ctx.Err() != nil && isCancel(err) {
			return nil, ncerr.ErrSessionClosed
		}
		return nil, err
	}
	r.current = s
	return s, nil
}

// bind derives a context that is also cancelled by Shutdown.
func (r *Registry) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(r.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Current returns the session in the slot, which may be closed, or nil.
func (r *Registry) Current() *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SetTrace pauses at frame, or at the caller when frame is nil, and runs
// the interactive loop until the peer continues, quits or hangs up.  It
// returns ErrTracingDisabled after a quit.
func (r *Registry) SetTrace(ctx context.Context, frame *Frame) error {
	return r.setTrace(ctx, frame, 2)
}

// Break is the zero-argument "break here" call.  Errors are reported on
// the output sink rather than returned.
func (r *Registry) Break() {
	r.breakAt(3)
}

func (r *Registry) breakAt(skip int) {
	err := r.setTrace(context.Background(), nil, skip)
	if err != nil && !errors.Is(err, ncerr.ErrTracingDisabled) {
		fmt.Fprintf(r.out, "[%s] %v\n", session.Name, err)
	}
}

func (r *Registry) setTrace(ctx context.Context, frame *Frame, skip int) error {
	if !r.tracing.Load() {
		return ncerr.ErrTracingDisabled
	}

	var f Frame
	if frame != nil {
		f = *frame
	} else {
		f = capability.Caller(skip)
	}
	if f.Locals == nil {
		f.Locals = r.snapshot()
	}

	s, err := r.Session(ctx)
	if err != nil {
		r.log.Warn("no session: %v", err)
		return err
	}
	outcome := s.Interact(ctx, f)
	r.log.Verbose("break at %s ended: %s", f, outcome)
	return nil
}

// Watch exposes fn's value as name in the locals of every break.
func (r *Registry) Watch(name string, fn func() any) {
	r.wmu.Lock()
	r.watches[name] = fn
	r.wmu.Unlock()
}

// Unwatch removes a watched value.
func (r *Registry) Unwatch(name string) {
	r.wmu.Lock()
	delete(r.watches, name)
	r.wmu.Unlock()
}

// Watches returns the watched names in sorted order.
func (r *Registry) Watches() []string {
	r.wmu.RLock()
	defer r.wmu.RUnlock()
	names := make([]string, 0, len(r.watches))
	for name := range r.watches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) snapshot() map[string]any {
	r.wmu.RLock()
	defer r.wmu.RUnlock()
	locals := make(map[string]any, len(r.watches))
	for name, fn := range r.watches {
		locals[name] = fn()
	}
	return locals
}

// EnableTracing re-arms Break after a quit.
func (r *Registry) EnableTracing() { r.tracing.Store(true) }

// DisableTracing makes Break return immediately.
func (r *Registry) DisableTracing() { r.tracing.Store(false) }

// Tracing reports whether Break opens sessions.
func (r *Registry) Tracing() bool { return r.tracing.Load() }

// Interactive returns the current interactive input and output.
func (r *Registry) Interactive() (io.Reader, io.Writer) {
	h := r.channels.Current()
	return h.In, h.Out
}

// Metrics returns the registry's collector.
func (r *Registry) Metrics() *metrics.Collector { return r.metrics }

// Config returns the configuration sessions are built from.
func (r *Registry) Config() *config.Config { return r.cfg }

// Shutdown unblocks a session waiting for its peer, closes the current
// session and refuses new ones.  The closed session stays in the slot.
func (r *Registry) Shutdown() error {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	return r.current.Close()
}
