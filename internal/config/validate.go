package config

import (
	"fmt"
	"os"
	"strings"
)

// Validate checks the configuration for errors. It collects ALL errors
// rather than stopping at the first one, returning them as a joined message.
func Validate(cfg *Config) error {
	var errs []string

	// ── Ports ──
	if cfg.Listen.Port < 1 || cfg.Listen.Port > 65535 {
		errs = append(errs, fmt.Sprintf("listen.port must be 1-65535 (got %d)", cfg.Listen.Port))
	}

	// ── Connection limits ──
	if cfg.Listen.MaxConnections < 1 {
		errs = append(errs, fmt.Sprintf("listen.max_connections must be positive (got %d)", cfg.Listen.MaxConnections))
	}
	if cfg.Listen.GlobalRateLimit < 1 {
		errs = append(errs, fmt.Sprintf("listen.global_rate_limit must be positive (got %d)", cfg.Listen.GlobalRateLimit))
	}

	// ── Database ──
	if cfg.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// ── Redis ──
	if cfg.Redis.Enabled {
		if cfg.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required when redis.enabled is true")
		}
		if cfg.Redis.Timeout.Duration < 0 {
			errs = append(errs, "redis.timeout must be positive")
		}
	}

	// ── Auth mode ──
	switch cfg.Security.Auth.Mode {
	case "passthrough":
	case "jwt":
		if cfg.Security.Auth.JWT.JWKSURL == "" {
			errs = append(errs, "security.auth.jwt.jwks_url is required in jwt mode")
		}
		if cfg.Security.Auth.JWT.Issuer == "" {
			errs = append(errs, "security.auth.jwt.issuer is required in jwt mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("security.auth.mode must be one of: passthrough, jwt (got %q)", cfg.Security.Auth.Mode))
	}

	// ── Public throttle ──
	if cfg.Security.RateLimit.Public.PerMinute < 1 {
		errs = append(errs, fmt.Sprintf("security.rate_limit.public.per_minute must be positive (got %d)", cfg.Security.RateLimit.Public.PerMinute))
	}

	// ── TLS files ──
	if cfg.Listen.TLS.CertFile != "" {
		if _, err := os.Stat(cfg.Listen.TLS.CertFile); err != nil {
			errs = append(errs, fmt.Sprintf("listen.tls.cert_file: %v", err))
		}
	}
	if cfg.Listen.TLS.KeyFile != "" {
		if _, err := os.Stat(cfg.Listen.TLS.KeyFile); err != nil {
			errs = append(errs, fmt.Sprintf("listen.tls.key_file: %v", err))
		}
	}

	// ── Sampling rates ──
	if cfg.Logging.Audit.SamplingRate < 0 || cfg.Logging.Audit.SamplingRate > 1.0 {
		errs = append(errs, fmt.Sprintf("logging.audit.sampling_rate must be between 0.0 and 1.0 (got %f)", cfg.Logging.Audit.SamplingRate))
	}
	if cfg.Logging.Audit.ErrorSamplingRate < 0 || cfg.Logging.Audit.ErrorSamplingRate > 1.0 {
		errs = append(errs, fmt.Sprintf("logging.audit.error_sampling_rate must be between 0.0 and 1.0 (got %f)", cfg.Logging.Audit.ErrorSamplingRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
