package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultHost only accepts peers from the local machine.
	DefaultHost = "127.0.0.1"

	// DefaultPort is the first candidate port.
	DefaultPort = 8899

	// DefaultWindow is how many consecutive ports are tried.
	DefaultWindow = 100

	// DefaultSkew shifts the window without changing the base port.
	DefaultSkew = 0

	// DefaultBreakerFailures is how many construction failures in a row
	// open the registry's circuit breaker.
	DefaultBreakerFailures = 3

	// DefaultBreakerReset is how long the breaker stays open.
	DefaultBreakerReset = 30 * time.Second

	// DefaultConnTimeout is the per-attempt dial timeout for attach and
	// probe.
	DefaultConnTimeout = 3 * time.Second

	// DefaultMaxConcurrentProbes limits simultaneous probe goroutines.
	DefaultMaxConcurrentProbes = 100

	// DefaultMaxAttachAttempts is how often attach redials while the
	// host has not opened its session yet.
	DefaultMaxAttachAttempts = 20

	// DefaultMaxAttachBackoff caps the wait between attach attempts.
	DefaultMaxAttachBackoff = 5 * time.Second

	// DefaultEvery is the demo program's break interval in iterations.
	DefaultEvery = 5

	// DefaultInterval is the demo program's pause between iterations.
	DefaultInterval = time.Second
)
