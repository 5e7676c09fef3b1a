package session

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"rdb/internal/metrics"
)

// Stream is the bidirectional text stream over the peer connection that
// replaces the interactive channel for the session's duration.  Reads
// are buffered so a prompt can consume whole lines; writes go straight
// to the connection.
type Stream struct {
	conn    net.Conn
	r       *bufio.Reader
	metrics *metrics.Collector

	wmu    sync.Mutex
	closed atomic.Bool
}

// NewStream wraps conn.  m may be nil.
func NewStream(conn net.Conn, m *metrics.Collector) *Stream {
	return &Stream{conn: conn, r: bufio.NewReader(conn), metrics: m}
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	n, err := s.r.Read(p)
	s.metrics.BytesReceived(int64(n))
	return n, err
}

// ReadLine returns the next line without its CR/LF terminator.  A final
// unterminated line is returned before io.EOF.
func (s *Stream) ReadLine() (string, error) {
	if s.closed.Load() {
		return "", io.ErrClosedPipe
	}
	line, err := s.r.ReadString('\n')
	s.metrics.BytesReceived(int64(len(line)))
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Write implements io.Writer.
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	n, err := s.conn.Write(p)
	s.metrics.BytesSent(int64(n))
	return n, err
}

// Close detaches the stream.  The connection itself is closed by the
// session, after the stream.
func (s *Stream) Close() error {
	s.closed.Store(true)
	return nil
}
