package core

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"rdb/internal/transport"
	"rdb/util"
)

// TestProbePorts verifies open/closed detection and result ordering.
func TestProbePorts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	open := ln.Addr().(*net.TCPAddr).Port

	closed, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}

	d := &transport.TCPDialer{}
	results := ProbePorts(context.Background(), "127.0.0.1", []int{closed, open}, time.Second, d.Dial)

	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Port != closed || results[0].Open {
		t.Errorf("results[0] = %+v, want closed %d", results[0], closed)
	}
	if results[1].Port != open || !results[1].Open {
		t.Errorf("results[1] = %+v, want open %d", results[1], open)
	}
}

// TestProbeMode_Run verifies the report lists only open ports.
func TestProbeMode_Run(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port

	out := &bytes.Buffer{}
	mode := &ProbeMode{
		Dialer:  &transport.TCPDialer{},
		Host:    "127.0.0.1",
		Ports:   []int{port},
		Timeout: time.Second,
		Logger:  util.NewLogger(0),
		Out:     out,
	}
	if err := mode.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "127.0.0.1 ") || !strings.Contains(out.String(), " open") {
		t.Errorf("output = %q", out.String())
	}
}

func TestProbeMode_NoPorts(t *testing.T) {
	mode := &ProbeMode{Dialer: &transport.TCPDialer{}, Logger: util.NewLogger(0)}
	if err := mode.Run(context.Background()); err == nil {
		t.Fatal("expected error for empty port list")
	}
}
