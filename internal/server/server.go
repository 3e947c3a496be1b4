// Package server integrates all components into the a2a-authd HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentid-labs/a2a-authd/internal/audit"
	"github.com/agentid-labs/a2a-authd/internal/authz"
	"github.com/agentid-labs/a2a-authd/internal/config"
	"github.com/agentid-labs/a2a-authd/internal/health"
	"github.com/agentid-labs/a2a-authd/internal/ratelimit"
	"github.com/agentid-labs/a2a-authd/internal/security"
	"github.com/agentid-labs/a2a-authd/internal/store"
)

// Server is the main a2a-authd HTTP server assembling all components.
type Server struct {
	cfg           *config.Config
	mu            sync.Mutex
	httpServer    *http.Server
	listener      net.Listener // if non-nil, Start uses this instead of creating one
	store         *store.Store
	matcher       *authz.Matcher
	memStore      *ratelimit.MemoryStore // non-nil when counters are in-process
	redisClient   *redis.Client          // non-nil when counters are in Redis
	rlStore       ratelimit.Store
	healthHandler *health.Handler
	auditLogger   *audit.Logger
	metrics       *audit.Metrics
	logger        *slog.Logger
	version       string
}

// New creates a new Server from configuration.
func New(cfg *config.Config, version string) (*Server, error) {
	logger := buildLogger(cfg)

	metrics := audit.NewMetrics()
	metrics.SetBuildInfo(version)

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	srv := &Server{
		cfg:     cfg,
		store:   st,
		metrics: metrics,
		logger:  logger,
		version: version,
	}

	// Rate-limit counter backend. Redis makes counters shared across
	// instances; the in-process store is for single-instance deployments.
	if cfg.Redis.Enabled {
		srv.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		srv.rlStore = ratelimit.NewRedisStore(
			srv.redisClient,
			cfg.Redis.Timeout.Duration,
			logger,
			metrics.RecordLimiterError,
		)
		logger.Info("rate limit backend: redis", "addr", cfg.Redis.Addr)
	} else {
		srv.memStore = ratelimit.NewMemoryStore(cfg.Security.RateLimit.Public.SweepInterval.Duration)
		srv.rlStore = srv.memStore
		logger.Info("rate limit backend: memory")
	}

	permLimiter := ratelimit.NewPermissionLimiter(srv.rlStore)
	evaluator := authz.NewEvaluator(permLimiter, cfg.Security.FailClosed, logger)
	srv.matcher = authz.NewMatcher(evaluator, authz.SystemClock{}, logger)

	srv.auditLogger = audit.NewLogger(logger, audit.SamplingConfig{
		Rate:      cfg.Logging.Audit.SamplingRate,
		ErrorRate: cfg.Logging.Audit.ErrorSamplingRate,
	})

	srv.healthHandler = health.NewHandler(st, version,
		cfg.Health.LivenessPath, cfg.Health.ReadinessPath)

	return srv, nil
}

// Start begins listening and serving. It blocks until the context is canceled
// or an unrecoverable error occurs.
func (s *Server) Start(ctx context.Context) error {
	handler := s.handler()

	listenAddr := fmt.Sprintf("%s:%d", s.cfg.Listen.Host, s.cfg.Listen.Port)

	// Use injected listener or create one
	ln := s.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", listenAddr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", listenAddr, err)
		}

		if s.cfg.Listen.MaxConnections > 0 {
			ln = newLimitedListener(ln, s.cfg.Listen.MaxConnections)
		}
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", listenAddr)
		if s.cfg.Listen.TLS.CertFile != "" && s.cfg.Listen.TLS.KeyFile != "" {
			errCh <- srv.ServeTLS(ln, s.cfg.Listen.TLS.CertFile, s.cfg.Listen.TLS.KeyFile)
		} else {
			errCh <- srv.Serve(ln)
		}
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Shutdown.Timeout.Duration)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

// Shutdown performs graceful shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	hs := s.httpServer
	s.mu.Unlock()

	if hs != nil {
		if err := hs.Shutdown(ctx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
	}

	if s.memStore != nil {
		s.memStore.Stop()
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Warn("closing redis client", "error", err)
		}
	}

	if err := s.store.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}

	return nil
}

// handler builds the complete HTTP handler with security pipeline and routing.
func (s *Server) handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/a2a/authorizations/check", s.handleCheck)
	api.HandleFunc("POST /api/a2a/authorizations", s.handleCreate)
	api.HandleFunc("GET /api/a2a/authorizations", s.handleList)
	api.HandleFunc("GET /api/a2a/authorizations/{id}", s.handleGet)
	api.HandleFunc("POST /api/a2a/authorizations/{id}", s.handleRespond)
	api.HandleFunc("PATCH /api/a2a/authorizations/{id}", s.handleUpdate)

	pipelineCfg := s.buildPipelineConfig()
	middlewares := security.BuildPipeline(pipelineCfg)
	securedAPI := security.ApplyPipeline(api, middlewares)

	// Health and metrics endpoints bypass security
	mux := http.NewServeMux()
	mux.Handle(s.cfg.Health.LivenessPath, s.healthHandler)
	mux.Handle(s.cfg.Health.ReadinessPath, s.healthHandler)
	mux.HandleFunc("/metrics", s.metrics.Handler())
	mux.Handle("/", securedAPI)

	return mux
}

// buildPipelineConfig constructs the security PipelineConfig from server config.
func (s *Server) buildPipelineConfig() security.PipelineConfig {
	return security.PipelineConfig{
		Auth: security.AuthPipelineConfig{
			Mode:                 s.cfg.Security.Auth.Mode,
			AllowUnauthenticated: s.cfg.Security.Auth.AllowUnauthenticated,
			Issuer:               s.cfg.Security.Auth.JWT.Issuer,
			Audience:             s.cfg.Security.Auth.JWT.Audience,
			JWKSURL:              s.cfg.Security.Auth.JWT.JWKSURL,
		},
		Throttle: security.ThrottlePipelineConfig{
			Enabled:   s.cfg.Security.RateLimit.Enabled,
			PerMinute: s.cfg.Security.RateLimit.Public.PerMinute,
			Store:     s.rlStore,
			OnLimit:   func() { s.metrics.RecordRateLimitHit("ip") },
		},
		GlobalRateLimit: s.cfg.Listen.GlobalRateLimit,
		TrustedProxies:  s.cfg.Listen.TrustedProxies,
		Logger:          s.logger,
	}
}

// OnConfigReload implements config.Reloadable so hot reloads reach the audit
// sampling settings without a restart.
func (s *Server) OnConfigReload(cfg *config.Config) error {
	s.auditLogger.SetSampling(audit.SamplingConfig{
		Rate:      cfg.Logging.Audit.SamplingRate,
		ErrorRate: cfg.Logging.Audit.ErrorSamplingRate,
	})
	s.metrics.RecordConfigReload(true)
	s.metrics.SetConfigReloadTime(time.Now())
	return nil
}

// Logger exposes the server's logger for the command layer.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// buildLogger creates an slog.Logger based on configuration.
func buildLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var output *os.File
	switch cfg.Logging.Output {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	var handler slog.Handler
	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	return slog.New(handler)
}

// ── LimitedListener ──

// limitedListener wraps a net.Listener to limit maximum concurrent connections.
type limitedListener struct {
	net.Listener
	sem chan struct{}
}

// newLimitedListener creates a listener that limits concurrent connections.
func newLimitedListener(l net.Listener, maxConns int) net.Listener {
	return &limitedListener{
		Listener: l,
		sem:      make(chan struct{}, maxConns),
	}
}

// Accept waits for and returns the next connection, blocking if at limit.
func (l *limitedListener) Accept() (net.Conn, error) {
	l.sem <- struct{}{}
	c, err := l.Listener.Accept()
	if err != nil {
		<-l.sem
		return nil, err
	}
	return &limitedConn{Conn: c, sem: l.sem}, nil
}

// limitedConn wraps a net.Conn to release the semaphore slot on close.
type limitedConn struct {
	net.Conn
	sem    chan struct{}
	closed sync.Once
}

// Close releases the connection and frees the semaphore slot.
func (c *limitedConn) Close() error {
	err := c.Conn.Close()
	c.closed.Do(func() { <-c.sem })
	return err
}
