package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"outbound-caller/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/time/rate"
)

type fakeSlots struct {
	mu       sync.Mutex
	limit    int
	held     int
	err      error
	keys     []string
	released int
}

func (f *fakeSlots) Acquire(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	if f.err != nil {
		return false, f.err
	}
	if f.held >= f.limit {
		return false, nil
	}
	f.held++
	return true, nil
}

func (f *fakeSlots) Release(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held--
	f.released++
	return nil
}

func okHandler(c *gin.Context) { c.Status(http.StatusNoContent) }

func TestConcurrencyLimit_RejectsWhenFull(t *testing.T) {
	gin.SetMode(gin.TestMode)
	slots := &fakeSlots{limit: 1, held: 1}
	r := gin.New()
	r.POST("/calls/outbound", ConcurrencyLimit(slots, ActiveCallsKey("ST_trunk")), okHandler)

	w := do(r, http.MethodPost, "/calls/outbound", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if slots.keys[0] != "calls:active:ST_trunk" {
		t.Fatalf("unexpected key %q", slots.keys[0])
	}
	if slots.released != 0 {
		t.Fatalf("nothing to release when rejected")
	}
}

func TestConcurrencyLimit_ReleasesAfterRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	slots := &fakeSlots{limit: 1}
	r := gin.New()
	r.POST("/calls/outbound", ConcurrencyLimit(slots, "k"), okHandler)

	for i := 0; i < 3; i++ {
		if w := do(r, http.MethodPost, "/calls/outbound", ""); w.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, w.Code)
		}
	}
	if slots.held != 0 || slots.released != 3 {
		t.Fatalf("held=%d released=%d", slots.held, slots.released)
	}
}

func TestConcurrencyLimit_FailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	slots := &fakeSlots{err: errors.New("redis down")}
	r := gin.New()
	r.POST("/calls/outbound", ConcurrencyLimit(slots, "k"), okHandler)

	if w := do(r, http.MethodPost, "/calls/outbound", ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected request to pass, got %d", w.Code)
	}
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewIPRateLimiter(RateLimitConfig{Rate: rate.Limit(0.001), Burst: 2})
	defer rl.Stop()

	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/x", okHandler)

	for i := 0; i < 2; i++ {
		if w := do(r, http.MethodGet, "/x", ""); w.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, w.Code)
		}
	}
	w := do(r, http.MethodGet, "/x", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestIPRateLimiter_SweepDropsIdleEntries(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{MaxAge: time.Minute})
	defer rl.Stop()

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")
	if n := rl.sweep(time.Now()); n != 0 {
		t.Fatalf("fresh entries swept: %d", n)
	}
	if n := rl.sweep(time.Now().Add(2 * time.Minute)); n != 2 {
		t.Fatalf("expected 2 swept, got %d", n)
	}
	rl.Stop() // second stop is a no-op
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	r := gin.New()
	r.Use(Metrics(metrics.NewHTTP(reg)))
	r.GET("/calls/:room_name", okHandler)

	do(r, http.MethodGet, "/calls/outbound-a", "")
	do(r, http.MethodGet, "/calls/outbound-b", "")
	do(r, http.MethodGet, "/nope", "")

	// One series for the route template, one for unmatched.
	n, err := testutil.GatherAndCount(reg, "http_requests_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 series, got %d", n)
	}
}
