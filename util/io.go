package util

import (
	"context"
	"errors"
	"io"
	"net"
)

// DefaultBufSize is the standard buffer size for network I/O (32 KiB).
const DefaultBufSize = 32 * 1024

// BidirectionalCopy shuffles data between a network connection and an
// arbitrary reader/writer pair (typically the attach client's terminal)
// until the connection is done or the context is cancelled.  Both
// directions borrow their buffers from [BufPool].
//
// The call returns once the network → writer direction has finished.
// A reader blocked on a terminal cannot be interrupted, so the
// reader → network goroutine is left to exit on its next read.
func BidirectionalCopy(ctx context.Context, conn net.Conn, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	downErr := make(chan error, 1)
	upErr := make(chan error, 1)

	// network → writer
	go func() {
		_, err := pooledCopy(w, conn)
		downErr <- err
		cancel()
	}()

	// reader → network
	go func() {
		_, err := pooledCopy(conn, r)
		// Half-close so the session sees EOF (an implicit disconnect)
		// while its last status lines can still drain to us.
		if tc, ok := conn.(*net.TCPConn); ok {
			tc.CloseWrite() //nolint:errcheck
		}
		upErr <- err
		// A clean EOF on the local side must not cut off output the
		// session is still sending.
		if err != nil {
			cancel()
		}
	}()

	<-ctx.Done()
	conn.Close() // unblock any pending reads/writes
	errs := []error{<-downErr}
	select {
	case err := <-upErr:
		errs = append(errs, err)
	default:
	}

	for _, err := range errs {
		if err != nil && !isHarmless(err) {
			return err
		}
	}
	return nil
}

func pooledCopy(dst io.Writer, src io.Reader) (int64, error) {
	buf := GetBuf()
	defer PutBuf(buf)
	return io.CopyBuffer(dst, src, *buf)
}

// isHarmless returns true for errors that are expected during shutdown.
func isHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
