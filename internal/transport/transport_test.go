package transport

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	ncerr "rdb/internal/errors"
)

// TestTCPDialer_Connect verifies that TCPDialer can reach a local
// session and read its greeting.
func TestTCPDialer_Connect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("[Remote Debugger:8899] Now in session with 127.0.0.1:5.\n")) //nolint:errcheck
	}()

	d := &TCPDialer{Timeout: 2 * time.Second}
	conn, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); got != "[Remote Debugger:8899] Now in session with 127.0.0.1:5.\n" {
		t.Errorf("got %q", got)
	}
}

// TestTCPDialer_RefusedIsRetryable verifies that dialing a port nobody
// listens on yet is reported as retryable.
func TestTCPDialer_RefusedIsRetryable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	d := &TCPDialer{Timeout: 2 * time.Second}
	_, err = d.Dial(context.Background(), "tcp", addr)
	if err == nil {
		t.Fatal("expected error")
	}
	var ne *ncerr.NetworkError
	if !ncerr.As(err, &ne) {
		t.Fatalf("error %T is not a NetworkError", err)
	}
	if ne.Op != "dial" || ne.Addr != addr {
		t.Errorf("got op=%q addr=%q", ne.Op, ne.Addr)
	}
	if !ncerr.IsRetryable(err) {
		t.Errorf("refused dial should be retryable: %v", err)
	}
}

// TestTCPDialer_ContextCancel verifies that a cancelled context stops
// the dial and is not retried.
func TestTCPDialer_ContextCancel(t *testing.T) {
	d := &TCPDialer{Timeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dial(ctx, "tcp", "127.0.0.1:1")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if ncerr.IsRetryable(err) {
		t.Error("cancelled dial should not be retryable")
	}
}

// TestTCPDialer_Close verifies Close is a no-op and returns nil.
func TestTCPDialer_Close(t *testing.T) {
	d := &TCPDialer{}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
