package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T) (*PermissionLimiter, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(time.Hour)
	t.Cleanup(store.Stop)
	return NewPermissionLimiter(store), store
}

func TestScopeKey(t *testing.T) {
	if got := ScopeKey("auth_1", "data.read"); got != "auth_1:data.read" {
		t.Errorf("ScopeKey = %q, want %q", got, "auth_1:data.read")
	}
}

func TestPermissionLimiterNoLimits(t *testing.T) {
	l, store := newTestLimiter(t)

	res, err := l.Check(context.Background(), "s", Limits{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed {
		t.Fatal("expected allowed with no limits")
	}
	if res.MinuteRemaining != -1 || res.DayRemaining != -1 {
		t.Errorf("remaining = (%d, %d), want (-1, -1)", res.MinuteRemaining, res.DayRemaining)
	}
	if res.Remaining() != -1 {
		t.Errorf("Remaining() = %d, want -1", res.Remaining())
	}

	store.mu.Lock()
	n := len(store.entries)
	store.mu.Unlock()
	if n != 0 {
		t.Errorf("expected no counter state, got %d entries", n)
	}
}

func TestPermissionLimiterMinuteWindow(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	limits := Limits{PerMinute: 2}

	for i := 0; i < 2; i++ {
		res, err := l.Check(ctx, "s", limits)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Allowed {
			t.Fatalf("check %d: expected allowed", i+1)
		}
	}

	res, err := l.Check(ctx, "s", limits)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Fatal("third check: expected denied")
	}
	if res.FailedWindow != WindowMinute {
		t.Errorf("failed window = %q, want %q", res.FailedWindow, WindowMinute)
	}
	if res.Reason != "rate limit exceeded: 2 requests per minute" {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestPermissionLimiterDayWindow(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	limits := Limits{PerDay: 1}

	res, err := l.Check(ctx, "s", limits)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed {
		t.Fatal("first check: expected allowed")
	}
	if res.MinuteRemaining != -1 {
		t.Errorf("minute remaining = %d, want -1 when unconfigured", res.MinuteRemaining)
	}

	res, err = l.Check(ctx, "s", limits)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Fatal("second check: expected denied")
	}
	if res.FailedWindow != WindowDay {
		t.Errorf("failed window = %q, want %q", res.FailedWindow, WindowDay)
	}
	if res.Reason != "rate limit exceeded: 1 requests per day" {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestPermissionLimiterMinuteDenialSparesDayQuota(t *testing.T) {
	l, store := newTestLimiter(t)
	ctx := context.Background()
	limits := Limits{PerMinute: 1, PerDay: 10}

	res, err := l.Check(ctx, "s", limits)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed {
		t.Fatal("first check: expected allowed")
	}

	// Minute window exhausted: the day counter must not advance.
	res, err = l.Check(ctx, "s", limits)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed || res.FailedWindow != WindowMinute {
		t.Fatalf("expected minute-window denial, got allowed=%v window=%q", res.Allowed, res.FailedWindow)
	}

	dayPeek, err := store.Peek(ctx, "s:day", 10, DayWindow)
	if err != nil {
		t.Fatal(err)
	}
	if dayPeek.Remaining != 9 {
		t.Errorf("day quota after minute denial = %d, want 9 (one consumed by the grant only)", dayPeek.Remaining)
	}
}

func TestPermissionLimiterRemaining(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	res, err := l.Check(ctx, "s", Limits{PerMinute: 5, PerDay: 3})
	if err != nil {
		t.Fatal(err)
	}
	if res.MinuteRemaining != 4 || res.DayRemaining != 2 {
		t.Errorf("remaining = (%d, %d), want (4, 2)", res.MinuteRemaining, res.DayRemaining)
	}
	if res.Remaining() != 2 {
		t.Errorf("Remaining() = %d, want the tighter window's 2", res.Remaining())
	}
}

func TestPermissionLimiterScopesAreIsolated(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	limits := Limits{PerMinute: 1}

	if res, _ := l.Check(ctx, "auth_1:data.read", limits); !res.Allowed {
		t.Fatal("first scope: expected allowed")
	}
	if res, _ := l.Check(ctx, "auth_2:data.read", limits); !res.Allowed {
		t.Fatal("second scope should have its own quota")
	}
	if res, _ := l.Check(ctx, "auth_1:data.write", limits); !res.Allowed {
		t.Fatal("different action should have its own quota")
	}
}

// failingStore errors on every call.
type failingStore struct{}

func (failingStore) Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	return Result{}, errors.New("down")
}

func (failingStore) Peek(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	return Result{}, errors.New("down")
}

func TestPermissionLimiterPropagatesBackendError(t *testing.T) {
	l := NewPermissionLimiter(failingStore{})

	_, err := l.Check(context.Background(), "s", Limits{PerMinute: 1})
	if err == nil {
		t.Fatal("expected backend error to propagate")
	}
}
