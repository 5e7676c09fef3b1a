package core

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"rdb/config"
	"rdb/internal/transport"
	"rdb/util"
)

// DialFunc establishes a network connection.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// ProbeResult records whether a single candidate port has a listener.
type ProbeResult struct {
	Port int
	Open bool
	Err  error
}

// ProbeMode checks which ports of the debugger's search window have a
// listener, which tells an operator where a waiting session is.  A
// probe connects and disconnects at once; a session still waiting for
// its peer takes that as a hangup and lets the host resume.
type ProbeMode struct {
	Dialer  transport.Dialer
	Host    string
	Ports   []int
	Timeout time.Duration
	Logger  *util.Logger
	Verbose int

	// Out defaults to os.Stdout.
	Out io.Writer
}

// Run probes all configured ports and reports the open ones.  The
// underlying transport is closed when Run returns.
func (m *ProbeMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	if len(m.Ports) == 0 {
		return fmt.Errorf("no ports to probe")
	}
	out := m.Out
	if out == nil {
		out = os.Stdout
	}

	timeout := m.Timeout
	if timeout == 0 {
		timeout = config.DefaultConnTimeout
	}

	m.Logger.Verbose("probing %s - %d port(s)", m.Host, len(m.Ports))

	results := ProbePorts(ctx, m.Host, m.Ports, timeout, m.Dialer.Dial)

	open := 0
	for _, r := range results {
		if r.Open {
			open++
			fmt.Fprintf(out, "%s %d open\n", m.Host, r.Port)
		} else if m.Verbose >= 2 {
			m.Logger.Verbose("%s %d closed - %v", m.Host, r.Port, r.Err)
		}
	}

	if open == 0 {
		m.Logger.Info("no session listening on %s %d-%d", m.Host, m.Ports[0], m.Ports[len(m.Ports)-1])
	}
	return nil
}

// ProbePorts probes every port concurrently and returns results in the
// same order as the input slice.
func ProbePorts(ctx context.Context, host string, ports []int, timeout time.Duration, dial DialFunc) []ProbeResult {
	results := make([]ProbeResult, len(ports))
	sem := make(chan struct{}, config.DefaultMaxConcurrentProbes)
	var wg sync.WaitGroup

	for i, port := range ports {
		wg.Add(1)
		go func(idx, p int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			addr := util.FormatAddr(host, p)
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			conn, err := dial(probeCtx, "tcp", addr)
			if err != nil {
				results[idx] = ProbeResult{Port: p, Err: err}
				return
			}
			conn.Close()
			results[idx] = ProbeResult{Port: p, Open: true}
		}(i, port)
	}

	wg.Wait()
	return results
}
