package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window is one fixed-window counter. It resets wholesale when resetAt passes,
// which permits up to 2x the limit across a window boundary — an accepted
// approximation for the in-process path.
type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore is a mutex-guarded fixed-window counter map. It is correct
// within a single process only; multi-instance deployments should use
// RedisStore. Entries past their reset time are removed by a periodic sweep
// to bound memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*window
	now     func() time.Time
	cancel  context.CancelFunc
}

// NewMemoryStore creates a MemoryStore and starts its sweep goroutine.
// Call Stop to release it.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &MemoryStore{
		entries: make(map[string]*window),
		now:     time.Now,
		cancel:  cancel,
	}
	go s.sweep(ctx, sweepInterval)
	return s
}

// Check increments the counter at key if quota remains and reports the result.
func (s *MemoryStore) Check(_ context.Context, key string, limit int, windowDur time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.entry(key, windowDur)
	if w.count >= limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: w.resetAt}, nil
	}
	w.count++
	return Result{Allowed: true, Remaining: limit - w.count, ResetAt: w.resetAt}, nil
}

// Peek reports what Check would decide without consuming quota.
func (s *MemoryStore) Peek(_ context.Context, key string, limit int, windowDur time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.entry(key, windowDur)
	if w.count >= limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: w.resetAt}, nil
	}
	return Result{Allowed: true, Remaining: limit - w.count, ResetAt: w.resetAt}, nil
}

// Stop stops the sweep goroutine.
func (s *MemoryStore) Stop() {
	s.cancel()
}

// entry returns the live window for key, creating or resetting it as needed.
// Caller must hold s.mu.
func (s *MemoryStore) entry(key string, windowDur time.Duration) *window {
	now := s.now()
	w, ok := s.entries[key]
	if !ok {
		w = &window{resetAt: now.Add(windowDur)}
		s.entries[key] = w
		return w
	}
	if !now.Before(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(windowDur)
	}
	return w
}

// sweep periodically removes expired windows.
func (s *MemoryStore) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			for key, w := range s.entries {
				if !now.Before(w.resetAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
