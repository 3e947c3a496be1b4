// Package ctxkeys defines context keys for passing data through the request pipeline.
// All context keys are unexported to prevent collisions. Use the With*/From accessor pairs.
package ctxkeys

import (
	"context"
	"time"
)

// ── Key types (unexported, collision-proof) ──

type authInfoKey struct{}
type auditEntryKey struct{}

// ── Data types ──

// AuthInfo holds authentication information extracted by the security middleware.
type AuthInfo struct {
	Mode            string // "passthrough" or "jwt"
	Subject         string // authenticated caller identifier (client_id, email, etc.)
	Scheme          string // "bearer", "apikey"
	SubjectVerified bool   // true only when the token was cryptographically verified
}

// AuditEntry holds audit log data accumulated during request processing.
type AuditEntry struct {
	TraceID             string
	Operation           string // "check", "create", "respond", "revoke", "list", "get"
	RequesterCredential string
	GrantorCredential   string
	Action              string // requested A2A action, check operation only
	AuthorizationID     string
	Status              string // "granted", "denied", "ok", "blocked", "error"
	Reason              string
	ClientIP            string
	AuthScheme          string
	AuthSubject         string
	StartTime           time.Time
}

// ── Getter/Setter (With*/From pattern) ──

// WithAuthInfo stores AuthInfo in the context.
func WithAuthInfo(ctx context.Context, info AuthInfo) context.Context {
	return context.WithValue(ctx, authInfoKey{}, info)
}

// AuthInfoFrom retrieves AuthInfo from the context.
func AuthInfoFrom(ctx context.Context) (AuthInfo, bool) {
	info, ok := ctx.Value(authInfoKey{}).(AuthInfo)
	return info, ok
}

// WithAuditEntry stores an AuditEntry pointer in the context.
func WithAuditEntry(ctx context.Context, entry *AuditEntry) context.Context {
	return context.WithValue(ctx, auditEntryKey{}, entry)
}

// AuditEntryFrom retrieves the AuditEntry pointer from the context.
func AuditEntryFrom(ctx context.Context) (*AuditEntry, bool) {
	entry, ok := ctx.Value(auditEntryKey{}).(*AuditEntry)
	return entry, ok
}
