package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Window sizes tracked per constrained permission.
const (
	MinuteWindow = time.Minute
	DayWindow    = 24 * time.Hour
)

// Limits holds the configured quota for a permission scope.
// A zero field means that window is unlimited.
type Limits struct {
	PerMinute int
	PerDay    int
}

// Names of the per-permission windows, used in PermissionResult.FailedWindow.
const (
	WindowMinute = "minute"
	WindowDay    = "day"
)

// PermissionResult reports the combined two-window decision.
// MinuteRemaining and DayRemaining are -1 for windows with no configured limit.
// FailedWindow names the window that denied the request, empty when allowed.
type PermissionResult struct {
	Allowed         bool
	Reason          string
	FailedWindow    string
	MinuteRemaining int
	DayRemaining    int
}

// Remaining returns the most restrictive remaining quota across the windows
// that were checked, or -1 when neither was.
func (r PermissionResult) Remaining() int {
	switch {
	case r.MinuteRemaining >= 0 && r.DayRemaining >= 0:
		return min(r.MinuteRemaining, r.DayRemaining)
	case r.MinuteRemaining >= 0:
		return r.MinuteRemaining
	case r.DayRemaining >= 0:
		return r.DayRemaining
	default:
		return -1
	}
}

// PermissionLimiter tracks one-minute and one-day windows per scope key.
// Both windows are evaluated before either counter advances, so a denial on
// one window never consumes quota from the other.
type PermissionLimiter struct {
	store Store
}

// NewPermissionLimiter creates a PermissionLimiter over the given store.
func NewPermissionLimiter(store Store) *PermissionLimiter {
	return &PermissionLimiter{store: store}
}

// ScopeKey composes the counter partition key for a subject and permission
// pair (credential + permission, or authorization id + action).
func ScopeKey(subject, permission string) string {
	return subject + ":" + permission
}

// Check evaluates both configured windows for scope and, only if every one of
// them has quota, consumes one unit from each. No configured limits means
// always allowed with no state created.
func (l *PermissionLimiter) Check(ctx context.Context, scope string, limits Limits) (PermissionResult, error) {
	res := PermissionResult{Allowed: true, MinuteRemaining: -1, DayRemaining: -1}
	if limits.PerMinute <= 0 && limits.PerDay <= 0 {
		return res, nil
	}

	minuteKey := scope + ":minute"
	dayKey := scope + ":day"

	if limits.PerMinute > 0 {
		peek, err := l.store.Peek(ctx, minuteKey, limits.PerMinute, MinuteWindow)
		if err != nil {
			return res, err
		}
		res.MinuteRemaining = peek.Remaining
		if !peek.Allowed {
			res.Allowed = false
			res.FailedWindow = WindowMinute
			res.Reason = fmt.Sprintf("rate limit exceeded: %d requests per minute", limits.PerMinute)
			return res, nil
		}
	}

	if limits.PerDay > 0 {
		peek, err := l.store.Peek(ctx, dayKey, limits.PerDay, DayWindow)
		if err != nil {
			return res, err
		}
		res.DayRemaining = peek.Remaining
		if !peek.Allowed {
			res.Allowed = false
			res.FailedWindow = WindowDay
			res.Reason = fmt.Sprintf("rate limit exceeded: %d requests per day", limits.PerDay)
			return res, nil
		}
	}

	// Both windows have quota: consume from each.
	if limits.PerMinute > 0 {
		checked, err := l.store.Check(ctx, minuteKey, limits.PerMinute, MinuteWindow)
		if err != nil {
			return res, err
		}
		res.MinuteRemaining = checked.Remaining
	}
	if limits.PerDay > 0 {
		checked, err := l.store.Check(ctx, dayKey, limits.PerDay, DayWindow)
		if err != nil {
			return res, err
		}
		res.DayRemaining = checked.Remaining
	}
	return res, nil
}
