package core

import (
	"os"

	"rdb/config"
	"rdb/debugger"
	"rdb/internal/retry"
	"rdb/internal/transport"
	"rdb/util"
)

// Build constructs the appropriate Mode from the given configuration.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case cfg.Listen:
		return buildListen(cfg, logger), nil
	case cfg.ZeroIO:
		return buildProbe(cfg, logger), nil
	default:
		return buildAttach(cfg, logger), nil
	}
}

// ── mode builders ────────────────────────────────────────────────────

func buildListen(cfg *config.Config, logger *util.Logger) Mode {
	return &ListenMode{
		Registry:   debugger.New(cfg, debugger.WithLogger(logger)),
		Every:      cfg.Every,
		Iterations: cfg.Iterations,
		Interval:   cfg.Interval,
		Logger:     logger,
	}
}

func buildAttach(cfg *config.Config, logger *util.Logger) Mode {
	b := retry.DefaultBackoff()
	b.MaxAttempts = config.DefaultMaxAttachAttempts
	b.MaxDelay = config.DefaultMaxAttachBackoff

	return &AttachMode{
		Dialer:  buildDialer(cfg),
		Address: util.FormatAddr(cfg.Host, cfg.FirstPort()),
		Backoff: b,
		Logger:  logger,
	}
}

func buildProbe(cfg *config.Config, logger *util.Logger) Mode {
	ports := make([]int, 0, cfg.Window)
	for p := cfg.FirstPort(); p <= cfg.LastPort(); p++ {
		ports = append(ports, p)
	}

	return &ProbeMode{
		Dialer:  buildDialer(cfg),
		Host:    cfg.Host,
		Ports:   ports,
		Timeout: cfg.Timeout,
		Logger:  logger,
		Out:     os.Stdout,
		Verbose: cfg.Verbose,
	}
}

// ── shared helpers ───────────────────────────────────────────────────

func buildDialer(cfg *config.Config) transport.Dialer {
	return &transport.TCPDialer{Timeout: cfg.Timeout}
}
