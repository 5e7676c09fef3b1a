package transport

import (
	"context"
	"net"
	"time"

	ncerr "rdb/internal/errors"
)

// TCPDialer establishes plain TCP connections to a debugger session.
type TCPDialer struct {
	Timeout   time.Duration
	KeepAlive time.Duration // 0 uses the net package default
}

// Dial connects to address over TCP.  Failures are returned as
// [*ncerr.NetworkError]; a refused connection is marked retryable
// because the host may not have reached its break yet.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}

	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		ne := ncerr.Wrap("dial", address, err)
		if ctx.Err() != nil {
			ne.Retryable = false
		}
		return nil, ne
	}
	return conn, nil
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }
