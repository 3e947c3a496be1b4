// Package security implements the HTTP security middleware pipeline.
//
// Layer 1 (Pre-Auth): GlobalRateLimiter, IPThrottle
// Layer 2 (Post-Auth): AuthMiddleware
package security

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/agentid-labs/a2a-authd/internal/ratelimit"
)

// Middleware is a security processing step in the pipeline.
type Middleware interface {
	Process(next http.Handler) http.Handler
	Name() string
}

// PipelineConfig holds config needed for the pipeline.
type PipelineConfig struct {
	Auth            AuthPipelineConfig
	Throttle        ThrottlePipelineConfig
	GlobalRateLimit int
	TrustedProxies  []string
	Logger          *slog.Logger
}

// AuthPipelineConfig holds authentication configuration.
type AuthPipelineConfig struct {
	Mode                 string // "passthrough" or "jwt"
	AllowUnauthenticated bool
	// JWT fields for jwt mode
	Issuer   string
	Audience string
	JWKSURL  string
}

// ThrottlePipelineConfig holds per-client-IP throttle configuration.
type ThrottlePipelineConfig struct {
	Enabled   bool
	PerMinute int
	Store     ratelimit.Store
	OnLimit   func()
}

// BuildPipeline constructs the ordered security middleware chain.
// Layer 1 (Pre-Auth): GlobalRateLimiter, IPThrottle
// Layer 2 (Post-Auth): AuthMiddleware
func BuildPipeline(cfg PipelineConfig) []Middleware {
	var mws []Middleware

	// Layer 1: Pre-Auth
	if cfg.GlobalRateLimit > 0 {
		mws = append(mws, NewGlobalRateLimiter(cfg.GlobalRateLimit))
	}

	if cfg.Throttle.Enabled && cfg.Throttle.PerMinute > 0 && cfg.Throttle.Store != nil {
		mws = append(mws, NewIPThrottle(
			cfg.Throttle.Store,
			cfg.Throttle.PerMinute,
			time.Minute,
			cfg.Logger,
			cfg.Throttle.OnLimit,
		))
	}

	// Layer 2: Post-Auth
	mws = append(mws, NewAuthMiddleware(cfg.Auth))

	return mws
}

// ApplyPipeline wraps a handler with all middleware in order.
// Apply in reverse order so first middleware executes first.
func ApplyPipeline(handler http.Handler, middlewares []Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i].Process(handler)
	}
	return handler
}
