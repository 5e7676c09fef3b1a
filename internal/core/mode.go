// Package core is the orchestration layer behind the rdb binary.  It
// composes the debugger registry, transports and retry policies into
// complete operational modes and provides a builder that selects the
// right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	port/stdio  →  session  →  debugger  →  core  →  cmd (CLI)
//	                           transport  ↗
package core

import (
	"context"

	"golang.org/x/term"
)

// Mode represents a complete operational mode of rdb (demo host,
// attach, or probe).  Each mode owns its full lifecycle from start to
// teardown.
type Mode interface {
	Run(ctx context.Context) error
}

// isTerminal is swapped in tests.
var isTerminal = term.IsTerminal
