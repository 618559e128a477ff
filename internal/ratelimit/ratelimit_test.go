package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/xbookmarks/api/internal/handler"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	l := NewLimiter([]Rule{{Method: "GET", Path: "/api/link-preview", Limit: limit, Window: window}})
	clock := newFakeClock()
	l.SetClock(clock)
	return l, clock
}

func TestAllow_UnmatchedRouteIsFree(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	for i := 0; i < 5; i++ {
		res, ok := l.Allow("1.2.3.4", "GET", "/api/tweets")
		if !ok {
			t.Fatalf("request %d: unmatched route should always be allowed", i)
		}
		if res.Limit != 0 {
			t.Errorf("expected empty result for unmatched route, got %+v", res)
		}
	}
	if l.Len() != 0 {
		t.Errorf("unmatched routes should not create buckets, got %d", l.Len())
	}
}

func TestAllow_BurstThenDeny(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		res, ok := l.Allow("1.2.3.4", "GET", "/api/link-preview")
		if !ok {
			t.Fatalf("request %d should be allowed", i)
		}
		if want := 3 - i - 1; res.Remaining != want {
			t.Errorf("request %d: remaining = %d, want %d", i, res.Remaining, want)
		}
	}

	res, ok := l.Allow("1.2.3.4", "GET", "/api/link-preview")
	if ok {
		t.Fatal("fourth request should be denied")
	}
	if res.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", res.Remaining)
	}
	// One token refills every 20s at 3/min.
	if res.RetryIn != 20*time.Second {
		t.Errorf("retry in = %s, want 20s", res.RetryIn)
	}
}

func TestAllow_Refill(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	l.Allow("1.2.3.4", "GET", "/api/link-preview")
	l.Allow("1.2.3.4", "GET", "/api/link-preview")
	if _, ok := l.Allow("1.2.3.4", "GET", "/api/link-preview"); ok {
		t.Fatal("expected denial after burst")
	}

	clock.Advance(30 * time.Second)
	if _, ok := l.Allow("1.2.3.4", "GET", "/api/link-preview"); !ok {
		t.Fatal("expected one token after half a window")
	}
	if _, ok := l.Allow("1.2.3.4", "GET", "/api/link-preview"); ok {
		t.Fatal("expected denial once the refilled token is spent")
	}
}

func TestAllow_PerIP(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	if _, ok := l.Allow("1.1.1.1", "GET", "/api/link-preview"); !ok {
		t.Fatal("first IP should be allowed")
	}
	if _, ok := l.Allow("2.2.2.2", "GET", "/api/link-preview"); !ok {
		t.Fatal("second IP has its own bucket")
	}
	if _, ok := l.Allow("1.1.1.1", "GET", "/api/link-preview"); ok {
		t.Fatal("first IP should now be limited")
	}
}

func TestCleanup(t *testing.T) {
	l, clock := newTestLimiter(5, time.Minute)

	l.Allow("1.1.1.1", "GET", "/api/link-preview")
	clock.Advance(30 * time.Second)
	l.Allow("2.2.2.2", "GET", "/api/link-preview")

	clock.Advance(30 * time.Second)
	l.Cleanup()
	if l.Len() != 1 {
		t.Fatalf("expected 1 bucket after cleanup, got %d", l.Len())
	}

	clock.Advance(time.Minute)
	l.Cleanup()
	if l.Len() != 0 {
		t.Fatalf("expected no buckets, got %d", l.Len())
	}
}

func TestMiddleware(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(l)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/link-preview?url=https://example.com", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Errorf("X-RateLimit-Limit = %q, want 1", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}

	var body handler.ApiErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Code != handler.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Error.Code, handler.ErrCodeRateLimited)
	}
}

func TestMiddleware_NilLimiter(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	rec := httptest.NewRecorder()
	Middleware(nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/link-preview", nil))
	if !called {
		t.Fatal("nil limiter should pass requests through")
	}
}
