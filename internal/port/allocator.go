// Package port finds a bindable TCP port for a remote debugging session.
//
// Allocation binds without listening: the caller owns the returned
// [Socket] and decides the backlog when it calls [Socket.Listen].
package port

import (
	"fmt"

	ncerr "rdb/internal/errors"
	"rdb/internal/metrics"
	"rdb/util"
)

// maxPort is the highest valid TCP port number.
const maxPort = 65535

// Socket is a TCP socket bound to a local address but not yet listening.
// Exactly one of Listen or Close should be called on it.
type Socket struct {
	host string
	port int
	sys  sysSocket
}

// Host returns the address the socket is bound to.
func (s *Socket) Host() string { return s.host }

// Port returns the bound port.  When port 0 was requested this is the
// port the kernel picked.
func (s *Socket) Port() int { return s.port }

// Addr returns "host:port".
func (s *Socket) Addr() string { return util.FormatAddr(s.host, s.port) }

// bindFunc binds one candidate.  Swapped out in tests.
type bindFunc func(host string, port int) (*Socket, error)

// Allocator scans a window of ports for one it can bind.
type Allocator struct {
	logger  *util.Logger
	metrics *metrics.Collector
	bind    bindFunc
}

// NewAllocator returns an Allocator.  Both arguments may be nil.
func NewAllocator(logger *util.Logger, m *metrics.Collector) *Allocator {
	return &Allocator{logger: logger.Named("port"), metrics: m, bind: bindTCP}
}

// Allocate tries start+skew, start+skew+1, … for window candidates and
// returns the first socket it can bind together with its port.
//
// Candidates failing with "address in use" or an invalid port are
// skipped.  Any other bind failure aborts the scan and is returned as
// is.  When every candidate is skipped the result is an
// [ncerr.ExhaustedError] naming the scanned range.
func (a *Allocator) Allocate(host string, start, window, skew int) (*Socket, int, error) {
	if window < 1 {
		return nil, 0, &ncerr.ConfigError{
			Field:   "window",
			Value:   window,
			Message: "must be at least 1",
		}
	}

	first := start + skew
	for i := 0; i < window; i++ {
		candidate := start + i + skew

		sock, err := a.bind(host, candidate)
		if err == nil {
			a.logger.Verbose("bound %s", sock.Addr())
			return sock, sock.Port(), nil
		}
		if ncerr.IsRecoverableBind(err) {
			a.metrics.PortConflict()
			a.logger.Debug("skipping %d: %v", candidate, err)
			continue
		}
		return nil, 0, err
	}

	return nil, 0, &ncerr.ExhaustedError{Host: host, First: first, Last: first + window - 1}
}

// Allocate is a convenience wrapper around a throwaway [Allocator].
func Allocate(host string, start, window, skew int) (*Socket, int, error) {
	return NewAllocator(nil, nil).Allocate(host, start, window, skew)
}

func invalidPort(host string, port int) error {
	return &ncerr.BindError{
		Host:        host,
		Port:        port,
		Err:         fmt.Errorf("port %d out of range 0-%d", port, maxPort),
		Recoverable: true,
	}
}
