package security

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/agentid-labs/a2a-authd/internal/errors"
	"github.com/agentid-labs/a2a-authd/internal/ratelimit"
)

// IPThrottle enforces a fixed-window request quota per client IP on the
// public API. The counter store is shared with the permission-level
// limiter, so a Redis-backed deployment throttles across instances.
type IPThrottle struct {
	store   ratelimit.Store
	limit   int
	window  time.Duration
	logger  *slog.Logger
	onLimit func()
}

// NewIPThrottle creates an IPThrottle. onLimit, when non-nil, is invoked
// once per rejected request.
func NewIPThrottle(store ratelimit.Store, limit int, window time.Duration, logger *slog.Logger, onLimit func()) *IPThrottle {
	if logger == nil {
		logger = slog.Default()
	}
	return &IPThrottle{
		store:   store,
		limit:   limit,
		window:  window,
		logger:  logger,
		onLimit: onLimit,
	}
}

// Process returns an http.Handler that enforces the per-IP quota.
func (t *IPThrottle) Process(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + ThrottleKey(r)

		res, err := t.store.Check(r.Context(), key, t.limit, t.window)
		if err != nil {
			// Backend trouble is not the caller's fault. The store
			// already logged the details; admit the request.
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(t.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			retryAfter := int(time.Until(res.ResetAt).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			t.logger.Info("client throttled",
				slog.String("client", key),
				slog.Int("limit", t.limit),
			)
			if t.onLimit != nil {
				t.onLimit()
			}
			apierrors.WriteHTTPError(w, apierrors.ErrRateLimited)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Name returns the middleware name.
func (t *IPThrottle) Name() string {
	return "ip_throttle"
}
