package config

import "reflect"

// Change describes a single configuration field that differs between two configs.
type Change struct {
	Field      string      // dot-separated field path (e.g., "security.rate_limit.public.per_minute")
	OldValue   interface{} // previous value
	NewValue   interface{} // new value
	Reloadable bool        // whether this change can be applied without restart
}

// Diff compares two Config values and returns a list of changes.
// Each change is annotated with whether it is reloadable at runtime.
func Diff(old, new *Config) []Change {
	var changes []Change

	// ── Non-reloadable: listen ──
	diffField(&changes, "listen.host", old.Listen.Host, new.Listen.Host, false)
	diffField(&changes, "listen.port", old.Listen.Port, new.Listen.Port, false)
	diffField(&changes, "listen.max_connections", old.Listen.MaxConnections, new.Listen.MaxConnections, false)
	diffField(&changes, "listen.global_rate_limit", old.Listen.GlobalRateLimit, new.Listen.GlobalRateLimit, false)
	diffField(&changes, "listen.tls.cert_file", old.Listen.TLS.CertFile, new.Listen.TLS.CertFile, false)
	diffField(&changes, "listen.tls.key_file", old.Listen.TLS.KeyFile, new.Listen.TLS.KeyFile, false)
	diffField(&changes, "listen.trusted_proxies", old.Listen.TrustedProxies, new.Listen.TrustedProxies, false)

	// ── Non-reloadable: backing stores ──
	diffField(&changes, "database.path", old.Database.Path, new.Database.Path, false)
	diffField(&changes, "redis.enabled", old.Redis.Enabled, new.Redis.Enabled, false)
	diffField(&changes, "redis.addr", old.Redis.Addr, new.Redis.Addr, false)
	diffField(&changes, "redis.db", old.Redis.DB, new.Redis.DB, false)
	diffField(&changes, "redis.timeout", old.Redis.Timeout.Duration, new.Redis.Timeout.Duration, false)

	// ── Reloadable: security ──
	diffField(&changes, "security.auth.mode", old.Security.Auth.Mode, new.Security.Auth.Mode, true)
	diffField(&changes, "security.auth.allow_unauthenticated", old.Security.Auth.AllowUnauthenticated, new.Security.Auth.AllowUnauthenticated, true)
	diffField(&changes, "security.auth.jwt.issuer", old.Security.Auth.JWT.Issuer, new.Security.Auth.JWT.Issuer, true)
	diffField(&changes, "security.auth.jwt.audience", old.Security.Auth.JWT.Audience, new.Security.Auth.JWT.Audience, true)
	diffField(&changes, "security.auth.jwt.jwks_url", old.Security.Auth.JWT.JWKSURL, new.Security.Auth.JWT.JWKSURL, true)
	diffField(&changes, "security.rate_limit.enabled", old.Security.RateLimit.Enabled, new.Security.RateLimit.Enabled, true)
	diffField(&changes, "security.rate_limit.public.per_minute", old.Security.RateLimit.Public.PerMinute, new.Security.RateLimit.Public.PerMinute, true)
	diffField(&changes, "security.rate_limit.public.sweep_interval", old.Security.RateLimit.Public.SweepInterval.Duration, new.Security.RateLimit.Public.SweepInterval.Duration, true)
	diffField(&changes, "security.fail_closed", old.Security.FailClosed, new.Security.FailClosed, true)

	// ── Reloadable: logging ──
	diffField(&changes, "logging.level", old.Logging.Level, new.Logging.Level, true)
	diffField(&changes, "logging.format", old.Logging.Format, new.Logging.Format, true)
	diffField(&changes, "logging.audit.sampling_rate", old.Logging.Audit.SamplingRate, new.Logging.Audit.SamplingRate, true)
	diffField(&changes, "logging.audit.error_sampling_rate", old.Logging.Audit.ErrorSamplingRate, new.Logging.Audit.ErrorSamplingRate, true)

	// ── Non-reloadable: health, shutdown ──
	diffField(&changes, "health.liveness_path", old.Health.LivenessPath, new.Health.LivenessPath, false)
	diffField(&changes, "health.readiness_path", old.Health.ReadinessPath, new.Health.ReadinessPath, false)
	diffField(&changes, "shutdown.timeout", old.Shutdown.Timeout.Duration, new.Shutdown.Timeout.Duration, false)

	return changes
}

// diffField appends a Change if old != new using reflect.DeepEqual for comparison.
func diffField(changes *[]Change, field string, oldVal, newVal interface{}, reloadable bool) {
	if !reflect.DeepEqual(oldVal, newVal) {
		*changes = append(*changes, Change{
			Field:      field,
			OldValue:   oldVal,
			NewValue:   newVal,
			Reloadable: reloadable,
		})
	}
}
