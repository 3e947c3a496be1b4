// Package config handles YAML configuration parsing, defaults, and validation
// for the a2a-authd authorization service.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a2a-authd.
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Security SecurityConfig `yaml:"security"`
	Health   HealthConfig   `yaml:"health"`
	Logging  LoggingConfig  `yaml:"logging"`
	Shutdown ShutdownConfig `yaml:"shutdown"`
	Reload   ReloadConfig   `yaml:"reload"`
}

// ListenConfig defines the listener address and connection limits.
type ListenConfig struct {
	Host            string    `yaml:"host"`
	Port            int       `yaml:"port"`
	MaxConnections  int       `yaml:"max_connections"`
	GlobalRateLimit int       `yaml:"global_rate_limit"`
	TrustedProxies  []string  `yaml:"trusted_proxies"`
	TLS             TLSConfig `yaml:"tls"`
}

// TLSConfig holds optional TLS certificate paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig locates the SQLite authorization database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig configures the distributed rate-limit backend. When disabled,
// counters are kept in process memory, which is correct for a single
// instance only.
type RedisConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Timeout  Duration `yaml:"timeout"` // per-operation bound; fail-open depends on it
}

// SecurityConfig is the top-level security configuration.
type SecurityConfig struct {
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	// FailClosed makes malformed constraint data deny instead of the default
	// fail-open (allow and log). A per-deployment policy switch.
	FailClosed bool `yaml:"fail_closed"`
}

// AuthConfig defines how API callers authenticate.
type AuthConfig struct {
	Mode                 string    `yaml:"mode"` // "passthrough" or "jwt"
	AllowUnauthenticated bool      `yaml:"allow_unauthenticated"`
	JWT                  JWTConfig `yaml:"jwt"`
}

// JWTConfig holds JWT validation parameters for jwt mode.
type JWTConfig struct {
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
	JWKSURL  string `yaml:"jwks_url"`
}

// RateLimitConfig defines request throttling on public endpoints.
type RateLimitConfig struct {
	Enabled bool             `yaml:"enabled"`
	Public  PublicRateConfig `yaml:"public"`
}

// PublicRateConfig is the per-client-IP fixed-window throttle.
type PublicRateConfig struct {
	PerMinute     int      `yaml:"per_minute"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// HealthConfig defines health check endpoint paths.
type HealthConfig struct {
	LivenessPath  string `yaml:"liveness_path"`
	ReadinessPath string `yaml:"readiness_path"`
}

// LoggingConfig defines log output format and audit sampling.
type LoggingConfig struct {
	Level  string      `yaml:"level"`
	Format string      `yaml:"format"`
	Output string      `yaml:"output"`
	Audit  AuditConfig `yaml:"audit"`
}

// AuditConfig controls audit log sampling rates.
type AuditConfig struct {
	SamplingRate      float64 `yaml:"sampling_rate"`
	ErrorSamplingRate float64 `yaml:"error_sampling_rate"`
}

// ShutdownConfig defines the graceful shutdown timeout.
type ShutdownConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// ReloadConfig controls config hot-reload behavior (SIGHUP and file watching).
type ReloadConfig struct {
	Enabled   bool     `yaml:"enabled"`
	WatchFile bool     `yaml:"watch_file"`
	Debounce  Duration `yaml:"debounce"`
}

// Duration is a time.Duration that supports YAML string parsing (e.g., "60s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler for Duration, parsing strings like "60s" or "5m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Load reads, parses, applies defaults, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
