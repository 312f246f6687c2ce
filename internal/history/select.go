package history

import (
	"context"
	"log/slog"
	"time"
)

const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"

	pingTimeout = 5 * time.Second
)

// Status describes which backend a Store ended up on.
type Status struct {
	// Configured is the backend named in configuration.
	Configured string
	// Active is the backend actually in use.
	Active string
	// Durable reports whether Active persists across restarts.
	Durable bool
	// Reason explains a fallback; empty when Active == Configured.
	Reason string
}

// Degraded reports whether the configured backend was replaced.
func (s Status) Degraded() bool {
	return s.Active != s.Configured
}

// SelectBackend decides, once at startup, which backend to run on. durable is
// the configured durable backend (nil when it could not be constructed, with
// buildErr explaining why). A durable backend that fails its ping is replaced
// by a fresh MemoryBackend; the degradation is logged and returned.
func SelectBackend(ctx context.Context, configured string, durable Backend, buildErr error, logger *slog.Logger) (Backend, Status) {
	if logger == nil {
		logger = slog.Default()
	}
	if configured == "" || configured == BackendMemory {
		return NewMemoryBackend(), Status{Configured: BackendMemory, Active: BackendMemory}
	}

	fallback := func(reason string) (Backend, Status) {
		logger.Warn("history: durable backend unavailable, using memory", "backend", configured, "reason", reason)
		return NewMemoryBackend(), Status{Configured: configured, Active: BackendMemory, Reason: reason}
	}

	if buildErr != nil {
		return fallback(buildErr.Error())
	}
	if durable == nil {
		return fallback("backend not constructed")
	}
	if p, ok := durable.(Pinger); ok {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := p.Ping(pctx); err != nil {
			return fallback(err.Error())
		}
	}
	logger.Info("history: backend ready", "backend", configured)
	return durable, Status{Configured: configured, Active: configured, Durable: true}
}
