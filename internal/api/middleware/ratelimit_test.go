package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakeClock is a settable time source
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter(config RateLimitConfig) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(config)
	rl.now = clock.now
	return rl, clock
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(ip string) *http.Request {
	req := httptest.NewRequest("POST", "/api/v1/user/login", nil)
	req.RemoteAddr = ip + ":12345"
	return req
}

func TestRateLimiter_Basic(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{Rate: 1, Burst: 3})
	handler := rl.Middleware(okHandler())

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, requestFrom("192.0.2.1"))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
		if limit := rr.Header().Get("X-RateLimit-Limit"); limit != "3" {
			t.Errorf("expected X-RateLimit-Limit: 3, got %s", limit)
		}
		if remaining := rr.Header().Get("X-RateLimit-Remaining"); remaining != strconv.Itoa(2-i) {
			t.Errorf("request %d: expected X-RateLimit-Remaining %d, got %s", i+1, 2-i, remaining)
		}
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestFrom("192.0.2.1"))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if retryAfter := rr.Header().Get("Retry-After"); retryAfter != "1" {
		t.Errorf("expected Retry-After: 1, got %q", retryAfter)
	}

	// one token refills per second
	clock.t = clock.t.Add(time.Second)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, requestFrom("192.0.2.1"))
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 after refill, got %d", rr.Code)
	}
}

func TestRateLimiter_RejectedRequestsDoNotConsume(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{Rate: 1, Burst: 1})
	handler := rl.Middleware(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1"))
	for i := 0; i < 5; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1"))
	}

	clock.t = clock.t.Add(time.Second)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestFrom("192.0.2.1"))
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 once the bucket refilled, got %d", rr.Code)
	}
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl, _ := newTestLimiter(RateLimitConfig{Rate: 0.1, Burst: 1})
	handler := rl.Middleware(okHandler())

	for _, ip := range []string{"192.0.2.1", "192.0.2.2"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, requestFrom(ip))
		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", ip, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestFrom("192.0.2.1"))
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for repeated client, got %d", rr.Code)
	}
	if retryAfter := rr.Header().Get("Retry-After"); retryAfter != "10" {
		t.Errorf("expected Retry-After: 10, got %q", retryAfter)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{Idle: time.Minute})
	handler := rl.Middleware(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1"))
	clock.t = clock.t.Add(30 * time.Second)
	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.2"))

	clock.t = clock.t.Add(45 * time.Second)
	if removed := rl.Cleanup(); removed != 1 {
		t.Errorf("expected 1 idle client removed, got %d", removed)
	}
	if _, ok := rl.clients["192.0.2.2"]; !ok {
		t.Error("recently seen client should be kept")
	}
}

func TestRateLimiter_DefaultConfig(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{})

	if rl.burst != 5 {
		t.Errorf("expected default burst 5, got %d", rl.burst)
	}
	if float64(rl.limit) != 0.2 {
		t.Errorf("expected default rate 0.2, got %v", rl.limit)
	}
	if rl.idle != 10*time.Minute {
		t.Errorf("expected default idle 10m, got %v", rl.idle)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/v1/snippet/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/snippet/"+id, nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/v1/snippet/{id}", "404"))
	if got != 3 {
		t.Errorf("expected 3 requests counted under the route pattern, got %v", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Errorf("expected one histogram series, got %d", n)
	}
}
