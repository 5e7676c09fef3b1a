package core

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	ncerr "rdb/internal/errors"
	"rdb/internal/retry"
	"rdb/internal/transport"
	"rdb/util"
)

// AttachMode is the telnet-class client: it dials a debugger session,
// waiting with backoff while the host has not reached its break, then
// relays the terminal to it until the session ends.
type AttachMode struct {
	Dialer  transport.Dialer
	Address string
	Backoff *retry.Backoff
	Logger  *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
}

func (m *AttachMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *AttachMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run attaches to the session and returns once it has ended.  The
// transport is closed when Run returns.
func (m *AttachMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	conn, err := m.dial(ctx)
	if err != nil {
		return fmt.Errorf("attach to %s: %w", m.Address, err)
	}
	defer conn.Close()

	m.Logger.Verbose("attached to %s", conn.RemoteAddr())

	return util.BidirectionalCopy(ctx, conn, m.stdin(), m.stdout())
}

func (m *AttachMode) dial(ctx context.Context) (net.Conn, error) {
	b := retry.DefaultBackoff()
	if m.Backoff != nil {
		copied := *m.Backoff
		b = &copied
	}
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		m.Logger.Verbose("no session at %s yet (attempt %d): %v; retrying in %v",
			m.Address, attempt, err, wait.Truncate(time.Millisecond))
	}

	var conn net.Conn
	err := b.Do(ctx, func(int) error {
		c, err := m.Dialer.Dial(ctx, "tcp", m.Address)
		if err != nil {
			if ncerr.IsRetryable(err) {
				return err
			}
			return retry.Permanent(err)
		}
		conn = c
		return nil
	})
	return conn, err
}
