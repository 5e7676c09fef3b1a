//go:build !unix

package port

import (
	"errors"
	"net"
	"strings"
	"syscall"

	ncerr "rdb/internal/errors"
	"rdb/util"
)

// Without the unix socket calls bind and listen cannot be separated, so
// the listener is opened at bind time and handed over by Listen.
type sysSocket struct {
	ln net.Listener
}

func bindTCP(host string, port int) (*Socket, error) {
	if port < 0 || port > maxPort {
		return nil, invalidPort(host, port)
	}

	ln, err := net.Listen("tcp", util.FormatAddr(host, port))
	if err != nil {
		return nil, &ncerr.BindError{Host: host, Port: port, Err: err, Recoverable: addrInUse(err)}
	}
	bound := ln.Addr().(*net.TCPAddr).Port
	return &Socket{host: host, port: bound, sys: sysSocket{ln: ln}}, nil
}

// Listen returns the listener opened at bind time; backlog is left to
// the platform.
func (s *Socket) Listen(backlog int) (net.Listener, error) {
	if s.sys.ln == nil {
		return nil, net.ErrClosed
	}
	ln := s.sys.ln
	s.sys.ln = nil
	return ln, nil
}

// Close releases a socket that was never handed to Listen.
func (s *Socket) Close() error {
	if s.sys.ln == nil {
		return nil
	}
	err := s.sys.ln.Close()
	s.sys.ln = nil
	return err
}

// addrInUse matches EADDRINUSE and the Windows WSAEADDRINUSE text.
func addrInUse(err error) bool {
	if errors.Is(err, syscall.EADDRINUSE) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "only one usage")
}
