package database

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/splax/installer/internal/domain"
)

const defaultProbeTimeout = 5 * time.Second

// Prober checks that a descriptor yields a working connection. Each probe uses
// its own handle and closes it, so probes never alter shared connection state
// and may run concurrently.
type Prober struct {
	open    Opener
	timeout time.Duration
	logger  *slog.Logger
}

// NewProber constructs a Prober. A nil opener selects the built-in drivers.
func NewProber(open Opener, timeout time.Duration, logger *slog.Logger) *Prober {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	if open == nil {
		open = ProbeOpener(timeout)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Prober{open: open, timeout: timeout, logger: logger}
}

// Probe reports whether a connection handshake with desc completes.
// Every failure is reported as false; the cause is only logged.
func (p *Prober) Probe(ctx context.Context, desc domain.ConnectionDescriptor) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	db, err := p.open(ctx, desc)
	if err != nil {
		p.logger.Warn("database probe failed", "stage", "open", "connection", desc, "error", err)
		return false
	}
	defer func() {
		if err := db.Close(); err != nil {
			p.logger.Debug("close probe handle", "error", err)
		}
	}()
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		p.logger.Warn("database probe failed", "stage", "ping", "connection", desc, "error", err)
		return false
	}
	p.logger.Info("database probe succeeded", "connection", desc)
	return true
}
