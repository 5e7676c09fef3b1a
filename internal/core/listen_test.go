package core

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"rdb/config"
	"rdb/debugger"
	"rdb/util"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestListenMode(t *testing.T, every, iterations int) (*ListenMode, *syncBuffer) {
	t.Helper()
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Port = port
	cfg.Window = 8

	out := &syncBuffer{}
	reg := debugger.New(cfg,
		debugger.WithOutput(out),
		debugger.WithInteractive(strings.NewReader(""), &bytes.Buffer{}),
	)
	return &ListenMode{
		Registry:   reg,
		Every:      every,
		Iterations: iterations,
		Logger:     util.NewLogger(0),
	}, out
}

var readyLine = regexp.MustCompile(`Ready to be connected: telnet (\S+) (\d+)`)

// dialSession connects to the nth session announced on out.  A port
// left in TIME_WAIT by the previous session is skipped, so the address
// is taken from the banner.
func dialSession(t *testing.T, out *syncBuffer, nth int) (net.Conn, *bufio.Reader) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if m := readyLine.FindAllStringSubmatch(out.String(), -1); len(m) >= nth {
			addr := net.JoinHostPort(m[nth-1][1], m[nth-1][2])
			conn, err := net.DialTimeout("tcp", addr, time.Second)
			if err != nil {
				t.Fatalf("dial %s: %v", addr, err)
			}
			conn.SetDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck
			return conn, bufio.NewReader(conn)
		}
		if time.Now().After(deadline) {
			t.Fatalf("session %d never announced: %q", nth, out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readPrompt(t *testing.T, br *bufio.Reader) string {
	t.Helper()
	var sb strings.Builder
	for !strings.HasSuffix(sb.String(), "(rdb) ") {
		b, err := br.ReadByte()
		if err != nil {
			t.Fatalf("read: %v (got %q)", err, sb.String())
		}
		sb.WriteByte(b)
	}
	return sb.String()
}

// TestListenMode_BreaksAndResumes drives two breaks of the demo
// workload: the first is continued, the second quits.
func TestListenMode_BreaksAndResumes(t *testing.T) {
	mode, out := newTestListenMode(t, 2, 6)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- mode.Run(ctx) }()

	// First break at iteration 2.
	conn, br := dialSession(t, out, 1)
	first := readPrompt(t, br)
	if !strings.Contains(first, "ListenMode") {
		t.Errorf("frame should name the workload loop: %q", first)
	}
	conn.Write([]byte("p iteration\n")) //nolint:errcheck
	if got := readPrompt(t, br); !strings.Contains(got, "2\n") {
		t.Errorf("iteration at first break: %q", got)
	}
	conn.Write([]byte("continue\n")) //nolint:errcheck
	conn.Close()

	// Second break at iteration 4.
	conn, br = dialSession(t, out, 2)
	readPrompt(t, br)
	conn.Write([]byte("p total\n")) //nolint:errcheck
	if got := readPrompt(t, br); !strings.Contains(got, "7\n") {
		t.Errorf("total after four steps should be 1+1+2+3: %q", got)
	}
	conn.Write([]byte("quit\n")) //nolint:errcheck
	conn.Close()

	// Tracing is off, so iteration 6 runs through.
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("workload did not finish after quit")
	}
	if n := strings.Count(out.String(), "Waiting for client"); n != 2 {
		t.Errorf("expected 2 sessions, banner seen %d times", n)
	}
}

// TestListenMode_CancelWhileWaiting verifies that cancelling the
// context releases a session blocked in accept.
func TestListenMode_CancelWhileWaiting(t *testing.T) {
	mode, out := newTestListenMode(t, 1, 0)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- mode.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "Waiting for client") {
		if time.Now().After(deadline) {
			t.Fatal("session never started waiting")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWorkload_Step(t *testing.T) {
	var w workload
	for i := 0; i < 7; i++ {
		w.step()
	}
	// fib: 1 1 2 3 5 8 13
	if w.iteration != 7 || w.fib[0] != 13 || w.total != 33 {
		t.Errorf("got iteration=%d fib=%d total=%d", w.iteration, w.fib[0], w.total)
	}
	if len(w.recent) != 5 || w.recent[0] != 2 || w.recent[4] != 13 {
		t.Errorf("recent = %v", w.recent)
	}
}
