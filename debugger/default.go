package debugger

import (
	"context"
	"fmt"
	"os"
	"sync"

	"rdb/config"
	"rdb/util"
)

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry, configured from $RDB_CONFIG
// and the RDB_* environment on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		cfg, err := config.Load("")
		if err != nil {
			fmt.Fprintf(os.Stderr, "rdb: %v (using defaults)\n", err)
			cfg = config.Default()
		}
		defaultReg = New(cfg, WithLogger(util.NewLogger(cfg.Verbose)))
	})
	return defaultReg
}

// Break pauses the caller on the default registry.
func Break() {
	Default().breakAt(3)
}

// SetTrace pauses at frame on the default registry.
func SetTrace(ctx context.Context, frame *Frame) error {
	return Default().setTrace(ctx, frame, 2)
}

// Watch registers a watched value on the default registry.
func Watch(name string, fn func() any) {
	Default().Watch(name, fn)
}
