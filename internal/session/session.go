// Package session owns the lifecycle of one remote debugging session:
// allocate a port, listen with a backlog of one, accept a single peer,
// redirect the interactive channel to it, run the engine loop, and put
// everything back on close.
package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"rdb/internal/capability"
	ncerr "rdb/internal/errors"
	"rdb/internal/metrics"
	"rdb/internal/port"
	"rdb/internal/stdio"
	"rdb/util"
)

// Name prefixes every status line.
const Name = "Remote Debugger"

// backlog is fixed: only one peer is ever accepted.
const backlog = 1

// farewellTimeout bounds the "ended" line written to a peer that may
// have stopped reading.
const farewellTimeout = 500 * time.Millisecond

// Options configures a new Session.
type Options struct {
	Host   string
	Port   int
	Window int
	Skew   int

	// Out receives the banner and status lines (default os.Stdout).
	Out io.Writer
	// Channels is the interactive channel to redirect (default the
	// process stdin/stdout pair).
	Channels *stdio.Channels
	// RedirectOS also swaps os.Stdin/os.Stdout with the peer socket.
	RedirectOS bool

	// Engine drives the prompt.  Defaults to a fresh Console.
	Engine    capability.Engine
	Allocator *port.Allocator
	Logger    *util.Logger
	Metrics   *metrics.Collector
}

// Session is one accept-to-close lifetime of a remote peer.
type Session struct {
	host  string
	port  int
	ident string

	out      io.Writer
	channels *stdio.Channels
	prev     stdio.Handles
	prevOS   stdio.Files
	osFile   *os.File

	ln     net.Listener
	conn   net.Conn
	stream *Stream
	remote string

	engine  capability.Engine
	logger  *util.Logger
	metrics *metrics.Collector

	mu      sync.Mutex // guards active, outcome and teardown
	active  bool
	outcome capability.Outcome

	loop sync.Mutex // one interactive loop at a time
}

// New allocates a port, prints the banner, and blocks until a peer
// connects or ctx is cancelled.  On error nothing has been redirected
// and every acquired socket is released.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Channels == nil {
		opts.Channels = stdio.Std()
	}
	if opts.Allocator == nil {
		opts.Allocator = port.NewAllocator(opts.Logger, opts.Metrics)
	}
	if opts.Engine == nil {
		opts.Engine = capability.NewConsole(capability.ConsoleConfig{
			Metrics: opts.Metrics,
			Logger:  opts.Logger,
		})
	}

	s := &Session{
		host:     opts.Host,
		out:      opts.Out,
		channels: opts.Channels,
		prev:     opts.Channels.Current(),
		engine:   opts.Engine,
		logger:   opts.Logger.Named("session"),
		metrics:  opts.Metrics,
	}

	sock, p, err := opts.Allocator.Allocate(opts.Host, opts.Port, opts.Window, opts.Skew)
	if err != nil {
		s.metrics.RecordError(err.Error())
		return nil, err
	}
	s.port = p
	s.ident = fmt.Sprintf("[%s:%d]", Name, p)

	ln, err := sock.Listen(backlog)
	if err != nil {
		s.metrics.RecordError(err.Error())
		return nil, err
	}
	s.ln = ln

	s.status("%s Ready to be connected: telnet %s %d", s.ident, s.host, s.port)
	s.status("%s Type 'help' for help.", s.ident)
	s.status("%s Type 'exit' in session to end it, 'continue' to resume.", s.ident)
	s.status("%s Waiting for client...", s.ident)

	conn, err := s.accept(ctx)
	if err != nil {
		ln.Close()
		s.metrics.RecordError(err.Error())
		return nil, err
	}
	s.conn = conn
	s.remote = util.PeerString(conn.RemoteAddr())
	s.stream = NewStream(conn, s.metrics)

	started := fmt.Sprintf("%s Now in session with %s.", s.ident, s.remote)
	s.status("%s", started)
	fmt.Fprintln(s.stream, started)

	if opts.RedirectOS {
		s.redirectOS()
	}
	s.channels.Redirect(stdio.Handles{In: s.stream, Out: s.stream})
	s.active = true
	s.metrics.SessionOpened(s.remote)
	s.logger.Verbose("peer %s attached on %s", s.remote, s.Addr())

	return s, nil
}

// accept waits for exactly one peer.  Cancelling ctx closes the
// listener to unblock Accept.
func (s *Session) accept(ctx context.Context) (net.Conn, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.ln.Close()
		case <-done:
		}
	}()

	conn, err := s.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ncerr.Wrap("accept", s.Addr(), err)
	}
	return conn, nil
}

func (s *Session) redirectOS() {
	tc, ok := s.conn.(*net.TCPConn)
	if !ok {
		return
	}
	f, err := tc.File()
	if err != nil {
		s.logger.Warn("cannot redirect process stdio: %v", err)
		return
	}
	s.osFile = f
	s.prevOS = stdio.RedirectOS(f)
}

func (s *Session) status(format string, args ...any) {
	fmt.Fprintf(s.out, format+"\n", args...)
}

// Host returns the bind host.
func (s *Session) Host() string { return s.host }

// Port returns the port the session listens on.
func (s *Session) Port() int { return s.port }

// Addr returns "host:port" of the listener.
func (s *Session) Addr() string { return util.FormatAddr(s.host, s.port) }

// Ident returns the "[Remote Debugger:port]" prefix.
func (s *Session) Ident() string { return s.ident }

// RemoteAddr returns the peer as "ip:port".
func (s *Session) RemoteAddr() string { return s.remote }

// Stream returns the peer stream installed on the interactive channel.
func (s *Session) Stream() *Stream { return s.stream }

// Active reports whether Close has not yet run.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Outcome reports how the session ended, or OutcomeNone while active.
func (s *Session) Outcome() capability.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

func (s *Session) setOutcome(o capability.Outcome) {
	s.mu.Lock()
	if s.outcome == capability.OutcomeNone {
		s.outcome = o
	}
	s.mu.Unlock()
}

// Interact hands the stream to the engine for frame and returns how the
// loop ended.  A peer hangup or stream error closes the session exactly
// like an explicit quit would, and is not reported as an error.
func (s *Session) Interact(ctx context.Context, frame capability.Frame) capability.Outcome {
	s.loop.Lock()
	defer s.loop.Unlock()

	if !s.Active() {
		return s.Outcome()
	}
	s.metrics.Break()

	err := s.engine.Interact(ctx, s.stream, frame, s)
	if err != nil {
		if ncerr.IsDisconnect(err) {
			s.logger.Verbose("peer %s went away: %v", s.remote, err)
		} else {
			s.logger.Warn("session with %s failed: %v", s.remote, err)
			s.metrics.RecordError(err.Error())
		}
		s.setOutcome(capability.OutcomeDisconnect)
		s.Close() //nolint:errcheck
	}
	return s.Outcome()
}

// OnContinue implements [capability.Hooks].
func (s *Session) OnContinue() error {
	err := s.Close()
	s.setOutcome(capability.OutcomeContinue)
	s.engine.SetContinue()
	return err
}

// OnQuit implements [capability.Hooks].
func (s *Session) OnQuit() error {
	err := s.Close()
	s.setOutcome(capability.OutcomeQuit)
	s.engine.SetQuit()
	return err
}

// Close restores the interactive channel, then releases the stream,
// the peer connection and the listener, in that order.  Only the first
// call does anything.
func (s *Session) Close() error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}

	s.channels.Restore(s.prev)
	if s.osFile != nil {
		stdio.RestoreOS(s.prevOS)
	}

	ended := fmt.Sprintf("%s Session with %s ended.", s.ident, s.remote)
	s.conn.SetWriteDeadline(time.Now().Add(farewellTimeout)) //nolint:errcheck
	fmt.Fprintln(s.stream, ended) // best effort: the peer may be gone

	var errs []error
	for _, c := range []io.Closer{s.stream, s.osFile, s.conn, s.ln} {
		if isNil(c) {
			continue
		}
		if err := c.Close(); err != nil && !ncerr.IsDisconnect(err) {
			errs = append(errs, err)
		}
	}
	s.active = false
	s.mu.Unlock()

	s.metrics.SessionClosed()
	s.status("%s", ended)
	s.logger.Verbose("closed %s", s.Addr())
	return ncerr.Join(errs...)
}

// isNil catches typed nil pointers stored in the io.Closer list.
func isNil(c io.Closer) bool {
	switch v := c.(type) {
	case nil:
		return true
	case *Stream:
		return v == nil
	case *os.File:
		return v == nil
	}
	return c == nil
}
