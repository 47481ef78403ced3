package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/integrationhub/pkg/actor"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
)

func withActor(r *http.Request, id string) *http.Request {
	ctx := actor.WithActor(r.Context(), actor.Actor{ID: id, Role: rbac.TopConsoleRole})
	return r.WithContext(ctx)
}

func TestRateLimiter_Allow(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Minute,
		BurstSize:         2,
	}
	limiter := NewRateLimiter(config)

	allowedCount := 0
	for i := 0; i < config.RequestsPerWindow+config.BurstSize+5; i++ {
		if limiter.Allow("test-user") {
			allowedCount++
		}
	}

	expected := config.RequestsPerWindow + config.BurstSize
	if allowedCount != expected {
		t.Errorf("Allowed %d requests, want %d", allowedCount, expected)
	}

	if !limiter.Allow("other-user") {
		t.Error("Keys should not share a bucket")
	}
}

func TestRateLimiter_Remaining(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Minute,
		BurstSize:         2,
	}
	limiter := NewRateLimiter(config)

	initial := limiter.Remaining("test-user")
	if initial != 12 {
		t.Errorf("Initial remaining = %d, want 12", initial)
	}

	limiter.Allow("test-user")
	if remaining := limiter.Remaining("test-user"); remaining != initial-1 {
		t.Errorf("After using 1 token, remaining = %d, want %d", remaining, initial-1)
	}
}

func TestRateLimiter_TokenRefill(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         0,
	}
	limiter := NewRateLimiter(config)

	for i := 0; i < config.RequestsPerWindow; i++ {
		limiter.Allow("refill-test")
	}
	if limiter.Allow("refill-test") {
		t.Error("Should deny request after exhausting tokens")
	}

	time.Sleep(300 * time.Millisecond)

	if !limiter.Allow("refill-test") {
		t.Error("Should allow request after partial refill")
	}
}

func TestRateLimiter_IdleBucketsExpire(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    50 * time.Millisecond,
		BurstSize:         2,
	}
	limiter := NewRateLimiter(config)

	for _, key := range []string{"user1", "user2", "user3"} {
		limiter.Allow(key)
	}
	if n := limiter.Tracked(); n != 3 {
		t.Errorf("Expected 3 buckets, got %d", n)
	}

	time.Sleep(250 * time.Millisecond)

	if n := limiter.Tracked(); n != 0 {
		t.Errorf("Expected 0 buckets after expiry, got %d", n)
	}
}

func TestRateLimiter_Concurrency(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 100,
		WindowDuration:    time.Minute,
		BurstSize:         10,
	}
	limiter := NewRateLimiter(config)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if limiter.Allow("concurrent-user") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if maxAllowed := config.RequestsPerWindow + config.BurstSize; allowed > maxAllowed {
		t.Errorf("Allowed %d requests with concurrency, should not exceed %d", allowed, maxAllowed)
	}
}

func TestNewRateLimiter_NilConfig(t *testing.T) {
	limiter := NewRateLimiter(nil)
	if limiter.config == nil {
		t.Fatal("NewRateLimiter should have default config")
	}
	if limiter.config.RequestsPerWindow != DefaultRateLimitConfig().RequestsPerWindow {
		t.Error("nil config should fall back to the default limits")
	}
}

func TestPerUserRateLimitConfig(t *testing.T) {
	if PerUserRateLimitConfig().RequestsPerWindow <= DefaultRateLimitConfig().RequestsPerWindow {
		t.Error("User rate limit should be higher than default")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expectedIP string
	}{
		{
			name:       "X-Forwarded-For header",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1"},
			remoteAddr: "10.0.0.1:12345",
			expectedIP: "192.168.1.1",
		},
		{
			name:       "X-Forwarded-For chain uses first hop",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1, 10.1.1.1"},
			remoteAddr: "10.0.0.1:12345",
			expectedIP: "192.168.1.1",
		},
		{
			name:       "X-Real-IP header",
			headers:    map[string]string{"X-Real-IP": "192.168.1.2"},
			remoteAddr: "10.0.0.1:12345",
			expectedIP: "192.168.1.2",
		},
		{
			name:       "RemoteAddr fallback strips port",
			remoteAddr: "10.0.0.1:12345",
			expectedIP: "10.0.0.1",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "10.0.0.1",
			expectedIP: "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			if ip := getClientIP(req); ip != tt.expectedIP {
				t.Errorf("getClientIP() = %v, want %v", ip, tt.expectedIP)
			}
		})
	}
}

func TestRateLimitKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:1000"

	key, authenticated := rateLimitKey(req)
	if key != "ip:10.0.0.9" || authenticated {
		t.Errorf("anonymous key = %q (%v)", key, authenticated)
	}

	key, authenticated = rateLimitKey(withActor(req, "u-1"))
	if key != "user:u-1" || !authenticated {
		t.Errorf("session key = %q (%v)", key, authenticated)
	}
}

func TestRateLimitMiddleware_Handler(t *testing.T) {
	tight := &RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute, BurstSize: 1}
	m := NewRateLimitMiddlewareWithConfig(&RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute}, tight)

	calls := 0
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		if user != "" {
			req = withActor(req, user)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 4; i++ {
		rec := send("")
		if rec.Code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i+1, rec.Code)
		}
		for _, h := range []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"} {
			if rec.Header().Get(h) == "" {
				t.Errorf("%s header should be set", h)
			}
		}
	}

	rec := send("")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if calls != 4 {
		t.Errorf("handler called %d times, want 4", calls)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if !strings.Contains(rec.Body.String(), "rate limit exceeded") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	// a session on the same address has its own budget
	if rec := send("u-1"); rec.Code != http.StatusOK {
		t.Errorf("session request: expected 200, got %d", rec.Code)
	} else if rec.Header().Get("X-RateLimit-Limit") != fmt.Sprintf("%d", 100) {
		t.Errorf("session limit header = %q", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimitConfig_ZeroWindowIsUnlimited(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1})
	for i := 0; i < 50; i++ {
		if !limiter.Allow("k") {
			t.Fatalf("request %d denied with no window", i)
		}
	}
}
