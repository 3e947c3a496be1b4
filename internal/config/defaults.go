package config

import "time"

// ApplyDefaults fills zero-valued fields with the service defaults.
// It is called after YAML parsing and before validation.
func ApplyDefaults(cfg *Config) {
	// ── Listen ──
	if cfg.Listen.Host == "" {
		cfg.Listen.Host = "0.0.0.0"
	}
	if cfg.Listen.Port == 0 {
		cfg.Listen.Port = 8420
	}
	if cfg.Listen.MaxConnections == 0 {
		cfg.Listen.MaxConnections = 1000
	}
	if cfg.Listen.GlobalRateLimit == 0 {
		cfg.Listen.GlobalRateLimit = 5000
	}
	if cfg.Listen.TrustedProxies == nil {
		cfg.Listen.TrustedProxies = []string{}
	}

	// ── Database ──
	if cfg.Database.Path == "" {
		cfg.Database.Path = "a2a-authd.db"
	}

	// ── Redis ──
	// redis.enabled defaults to false (zero value): in-memory counters.
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Redis.Timeout.Duration == 0 {
		cfg.Redis.Timeout.Duration = 500 * time.Millisecond
	}

	// ── Security ──
	if cfg.Security.Auth.Mode == "" {
		cfg.Security.Auth.Mode = "passthrough"
	}
	if cfg.Security.RateLimit.Public.PerMinute == 0 {
		cfg.Security.RateLimit.Public.PerMinute = 120
	}
	if cfg.Security.RateLimit.Public.SweepInterval.Duration == 0 {
		cfg.Security.RateLimit.Public.SweepInterval.Duration = 5 * time.Minute
	}
	// security.fail_closed defaults to false: availability over strict
	// enforcement, per the documented policy.

	// ── Health ──
	if cfg.Health.LivenessPath == "" {
		cfg.Health.LivenessPath = "/healthz"
	}
	if cfg.Health.ReadinessPath == "" {
		cfg.Health.ReadinessPath = "/readyz"
	}

	// ── Logging ──
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Logging.Audit.SamplingRate == 0 {
		cfg.Logging.Audit.SamplingRate = 1.0
	}
	if cfg.Logging.Audit.ErrorSamplingRate == 0 {
		cfg.Logging.Audit.ErrorSamplingRate = 1.0
	}

	// ── Shutdown ──
	if cfg.Shutdown.Timeout.Duration == 0 {
		cfg.Shutdown.Timeout.Duration = 30 * time.Second
	}

	// ── Reload ──
	if cfg.Reload.Debounce.Duration == 0 {
		cfg.Reload.Debounce.Duration = 2 * time.Second
	}
}
