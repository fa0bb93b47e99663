package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/calconnect/internal/logging"
)

// AuditEvent describes a user-initiated change or tool call.
type AuditEvent struct {
	Action   string
	UserID   string
	AppType  string
	Duration time.Duration
	Err      error
}

// AuditLogger writes audit events. User identifiers are hashed unless
// IncludePII is configured.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger. A nil logger uses slog.Default().
func NewAuditLogger(logger *slog.Logger, cfg AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{logger: logger, includePII: cfg.IncludePII, enabled: cfg.Enabled}
}

// Log records ev. Safe to call on a nil receiver.
func (a *AuditLogger) Log(ctx context.Context, ev AuditEvent) {
	if a == nil || !a.enabled {
		return
	}
	attrs := []any{
		slog.String("action", ev.Action),
		slog.Duration(logging.KeyDuration, ev.Duration),
		slog.Bool("success", ev.Err == nil),
	}
	if a.includePII {
		attrs = append(attrs, slog.String("user", ev.UserID))
	} else {
		attrs = append(attrs, logging.UserHash(ev.UserID))
	}
	if ev.AppType != "" {
		attrs = append(attrs, logging.AppType(ev.AppType))
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID))
	}
	if ev.Err != nil {
		attrs = append(attrs, logging.Err(ev.Err))
		a.logger.WarnContext(ctx, "audit", attrs...)
		return
	}
	a.logger.InfoContext(ctx, "audit", attrs...)
}
