// Package audit provides structured audit logging and Prometheus metrics for
// authorization decisions.
package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/agentid-labs/a2a-authd/internal/ctxkeys"
)

// Logger provides OpenTelemetry-compatible structured audit logging.
type Logger struct {
	slogger *slog.Logger

	mu       sync.RWMutex
	sampling SamplingConfig
}

// NewLogger creates an audit logger with the given sampling configuration.
func NewLogger(slogger *slog.Logger, sampling SamplingConfig) *Logger {
	return &Logger{slogger: slogger, sampling: sampling}
}

// SetSampling replaces the sampling configuration. Safe to call while
// requests are being logged; used by config hot reload.
func (l *Logger) SetSampling(sampling SamplingConfig) {
	l.mu.Lock()
	l.sampling = sampling
	l.mu.Unlock()
}

// LogRequest logs an audit entry from the request context.
// Uses OTel semantic convention field names.
func (l *Logger) LogRequest(ctx context.Context) {
	entry, ok := ctxkeys.AuditEntryFrom(ctx)
	if !ok {
		return
	}

	l.mu.RLock()
	sampling := l.sampling
	l.mu.RUnlock()

	if !sampling.ShouldLog(entry.Status) {
		return
	}

	attrs := []slog.Attr{
		slog.String("trace_id", entry.TraceID),
		slog.Group("attributes",
			slog.String("a2a.operation", entry.Operation),
			slog.String("a2a.requester_credential", entry.RequesterCredential),
			slog.String("a2a.grantor_credential", entry.GrantorCredential),
			slog.String("a2a.action", entry.Action),
			slog.String("a2a.authorization_id", entry.AuthorizationID),
			slog.String("a2a.status", entry.Status),
			slog.String("a2a.reason", entry.Reason),
			slog.String("a2a.auth.scheme", entry.AuthScheme),
			slog.String("a2a.auth.subject", entry.AuthSubject),
			slog.String("client.address", entry.ClientIP),
			slog.Time("a2a.start_time", entry.StartTime),
		),
	}

	l.slogger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}
