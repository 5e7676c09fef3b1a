//go:build unix

package port

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"

	ncerr "rdb/internal/errors"
)

type sysSocket struct {
	fd int
}

// bindTCP creates a TCP socket and binds it to host:port without
// calling listen.  The bind is exclusive.
func bindTCP(host string, port int) (*Socket, error) {
	if port < 0 || port > maxPort {
		return nil, invalidPort(host, port)
	}

	sa, family, err := sockaddr(host, port)
	if err != nil {
		return nil, &ncerr.BindError{Host: host, Port: port, Err: err}
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, &ncerr.BindError{Host: host, Port: port, Err: os.NewSyscallError("socket", err)}
	}
	unix.CloseOnExec(fd)

	// No SO_REUSEADDR: on Linux it lets two sockets that are bound but
	// not listening share a port.  A port still in TIME_WAIT fails with
	// EADDRINUSE and the scan moves on.
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd) //nolint:errcheck
		return nil, &ncerr.BindError{
			Host:        host,
			Port:        port,
			Err:         os.NewSyscallError("bind", err),
			Recoverable: err == unix.EADDRINUSE || err == unix.EINVAL,
		}
	}

	bound := port
	if port == 0 {
		if lsa, err := unix.Getsockname(fd); err == nil {
			switch v := lsa.(type) {
			case *unix.SockaddrInet4:
				bound = v.Port
			case *unix.SockaddrInet6:
				bound = v.Port
			}
		}
	}

	return &Socket{host: host, port: bound, sys: sysSocket{fd: fd}}, nil
}

// Listen starts listening with the given backlog and hands the socket
// to the Go runtime poller.  The Socket is consumed either way.
func (s *Socket) Listen(backlog int) (net.Listener, error) {
	if s.sys.fd < 0 {
		return nil, net.ErrClosed
	}
	fd := s.sys.fd
	s.sys.fd = -1

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd) //nolint:errcheck
		return nil, ncerr.Wrap("listen", s.Addr(), os.NewSyscallError("listen", err))
	}

	// FileListener dups the descriptor; the original is closed with f.
	f := os.NewFile(uintptr(fd), "rdb:"+s.Addr())
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, ncerr.Wrap("listen", s.Addr(), err)
	}
	return ln, nil
}

// Close releases a socket that was never handed to Listen.
func (s *Socket) Close() error {
	if s.sys.fd < 0 {
		return nil
	}
	err := unix.Close(s.sys.fd)
	s.sys.fd = -1
	return err
}

func sockaddr(host string, port int) (unix.Sockaddr, int, error) {
	ip := net.IPv4zero
	if host != "" {
		ip = net.ParseIP(host)
		if ip == nil {
			ia, err := net.ResolveIPAddr("ip", host)
			if err != nil {
				return nil, 0, fmt.Errorf("resolve %q: %w", host, err)
			}
			ip = ia.IP
		}
	}

	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET, nil
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	return sa, unix.AF_INET6, nil
}
