package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authd.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMinimalConfig(t *testing.T) {
	path := writeConfig(t, `database:
  path: authd.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Defaults filled in
	if cfg.Listen.Port != 8420 {
		t.Errorf("port = %d, want default 8420", cfg.Listen.Port)
	}
	if cfg.Security.Auth.Mode != "passthrough" {
		t.Errorf("auth mode = %q, want default passthrough", cfg.Security.Auth.Mode)
	}
	if cfg.Security.RateLimit.Public.PerMinute != 120 {
		t.Errorf("per_minute = %d, want default 120", cfg.Security.RateLimit.Public.PerMinute)
	}
	if cfg.Logging.Audit.SamplingRate != 1.0 {
		t.Errorf("sampling_rate = %f, want default 1.0", cfg.Logging.Audit.SamplingRate)
	}
	if cfg.Shutdown.Timeout.Duration != 30*time.Second {
		t.Errorf("shutdown timeout = %v, want default 30s", cfg.Shutdown.Timeout.Duration)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `listen:
  host: 127.0.0.1
  port: 9000
  global_rate_limit: 100

database:
  path: /tmp/authd.db

redis:
  enabled: true
  addr: redis.internal:6379
  timeout: 250ms

security:
  auth:
    mode: jwt
    jwt:
      issuer: https://auth.example.com
      audience: a2a-authd
      jwks_url: https://auth.example.com/jwks.json
  rate_limit:
    enabled: true
    public:
      per_minute: 60
      sweep_interval: 10m
  fail_closed: true

logging:
  level: debug
  audit:
    sampling_rate: 0.5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Listen.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Listen.Port)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis.internal:6379" {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.Redis.Timeout.Duration != 250*time.Millisecond {
		t.Errorf("redis timeout = %v, want 250ms", cfg.Redis.Timeout.Duration)
	}
	if cfg.Security.Auth.Mode != "jwt" {
		t.Errorf("auth mode = %q, want jwt", cfg.Security.Auth.Mode)
	}
	if !cfg.Security.FailClosed {
		t.Error("fail_closed = false, want true")
	}
	if cfg.Security.RateLimit.Public.SweepInterval.Duration != 10*time.Minute {
		t.Errorf("sweep_interval = %v, want 10m", cfg.Security.RateLimit.Public.SweepInterval.Duration)
	}
	if cfg.Logging.Audit.SamplingRate != 0.5 {
		t.Errorf("sampling_rate = %f, want 0.5", cfg.Logging.Audit.SamplingRate)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("nonexistent.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "listen: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDurationUnmarshal(t *testing.T) {
	path := writeConfig(t, `database:
  path: authd.db
shutdown:
  timeout: 45s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Shutdown.Timeout.Duration != 45*time.Second {
		t.Errorf("timeout = %v, want 45s", cfg.Shutdown.Timeout.Duration)
	}
}

func TestDurationUnmarshalInvalid(t *testing.T) {
	path := writeConfig(t, `database:
  path: authd.db
shutdown:
  timeout: soon
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Listen.Port = 0
	cfg.Database.Path = ""
	cfg.Security.Auth.Mode = "kerberos"
	cfg.Logging.Audit.SamplingRate = 3.0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}

	msg := err.Error()
	for _, want := range []string{
		"listen.port",
		"database.path",
		"security.auth.mode",
		"logging.audit.sampling_rate",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q:\n%s", want, msg)
		}
	}
}

func TestValidateJWTRequirements(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Security.Auth.Mode = "jwt"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors for jwt mode without issuer/jwks_url")
	}
	msg := err.Error()
	if !strings.Contains(msg, "jwks_url") || !strings.Contains(msg, "issuer") {
		t.Errorf("error message missing jwt requirements:\n%s", msg)
	}
}

func TestValidateRedisRequirements(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = ""

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "redis.addr") {
		t.Errorf("expected redis.addr error, got: %v", err)
	}
}

func TestProfilesValidate(t *testing.T) {
	for name, yaml := range map[string]string{"dev": DevProfile(), "prod": ProdProfile()} {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, yaml)
			if _, err := Load(path); err != nil {
				t.Errorf("%s profile does not validate: %v", name, err)
			}
		})
	}
}
