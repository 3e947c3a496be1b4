package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agentid-labs/a2a-authd/internal/ratelimit"
)

func TestBuildPipelineOrder(t *testing.T) {
	store := ratelimit.NewMemoryStore(time.Minute)
	defer store.Stop()

	mws := BuildPipeline(PipelineConfig{
		Auth:            AuthPipelineConfig{Mode: "passthrough"},
		Throttle:        ThrottlePipelineConfig{Enabled: true, PerMinute: 100, Store: store},
		GlobalRateLimit: 5000,
	})

	want := []string{"global_rate_limiter", "ip_throttle", "auth"}
	if len(mws) != len(want) {
		t.Fatalf("expected %d middlewares, got %d", len(want), len(mws))
	}
	for i, name := range want {
		if mws[i].Name() != name {
			t.Errorf("middleware %d: expected %q, got %q", i, name, mws[i].Name())
		}
	}
}

func TestBuildPipelineDisabledLayers(t *testing.T) {
	mws := BuildPipeline(PipelineConfig{
		Auth:     AuthPipelineConfig{Mode: "passthrough"},
		Throttle: ThrottlePipelineConfig{Enabled: false},
	})

	if len(mws) != 1 {
		t.Fatalf("expected only auth middleware, got %d", len(mws))
	}
	if mws[0].Name() != "auth" {
		t.Errorf("expected auth, got %q", mws[0].Name())
	}
}

func TestApplyPipelineExecutionOrder(t *testing.T) {
	var order []string

	mk := func(name string) Middleware {
		return namedMiddleware{name: name, record: &order}
	}

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	})

	h := ApplyPipeline(final, []Middleware{mk("first"), mk("second")})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	want := []string{"first", "second", "handler"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

type namedMiddleware struct {
	name   string
	record *[]string
}

func (m namedMiddleware) Process(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*m.record = append(*m.record, m.name)
		next.ServeHTTP(w, r)
	})
}

func (m namedMiddleware) Name() string { return m.name }

func TestGlobalRateLimiterBlocks(t *testing.T) {
	g := NewGlobalRateLimiter(60) // 1 rps, burst 1

	handler := g.Process(passHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("second request: expected 503, got %d", rec.Code)
	}
}
