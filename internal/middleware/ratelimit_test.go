package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limit int, period time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(limit, period)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiterWindow(t *testing.T) {
	rl, clock := newTestLimiter(3, time.Minute)

	for i := range 3 {
		if ok, _ := rl.Allow("login|10.0.0.1"); !ok {
			t.Fatalf("hit %d rejected", i+1)
		}
	}
	clock.advance(20 * time.Second)
	ok, wait := rl.Allow("login|10.0.0.1")
	if ok {
		t.Fatal("4th hit inside the window was allowed")
	}
	if wait != 40*time.Second {
		t.Errorf("wait = %v, want 40s", wait)
	}

	if ok, _ := rl.Allow("login|10.0.0.2"); !ok {
		t.Error("a different key shares the exhausted window")
	}

	clock.advance(40 * time.Second)
	if ok, _ := rl.Allow("login|10.0.0.1"); !ok {
		t.Error("hit after the window ended was rejected")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, clock := newTestLimiter(5, time.Minute)

	rl.Allow("old")
	clock.advance(2 * time.Minute)
	rl.Allow("fresh")

	if n := rl.Cleanup(); n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
	if _, ok := rl.windows["old"]; ok {
		t.Error("ended window kept")
	}
	if _, ok := rl.windows["fresh"]; !ok {
		t.Error("live window dropped")
	}
}

func TestLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(2, 30*time.Second)
	h := rl.Limit(NewIPResolver().ClientIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := range 2 {
		if rec := send("192.0.2.7"); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: status %d", i+1, rec.Code)
		}
	}
	rec := send("192.0.2.7")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q, want 30", got)
	}
	if rec := send("192.0.2.8"); rec.Code != http.StatusNoContent {
		t.Errorf("other client limited: %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	proxies := NewIPResolver(netip.MustParsePrefix("10.0.0.0/8"), netip.MustParsePrefix("fd00::/8"))
	tests := []struct {
		name    string
		ips     *IPResolver
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", proxies, nil, "203.0.113.5:1234", "203.0.113.5"},
		{"remote without port", proxies, nil, "203.0.113.5", "203.0.113.5"},
		{"untrusted peer spoofs real ip", proxies, map[string]string{"X-Real-IP": "198.51.100.9"}, "203.0.113.5:80", "203.0.113.5"},
		{"untrusted peer spoofs forwarded", proxies, map[string]string{"X-Forwarded-For": "198.51.100.1"}, "203.0.113.5:80", "203.0.113.5"},
		{"no proxies configured", nil, map[string]string{"X-Real-IP": "198.51.100.9"}, "10.0.0.1:80", "10.0.0.1"},
		{"real ip behind proxy", proxies, map[string]string{"X-Real-IP": "198.51.100.9", "X-Forwarded-For": "198.51.100.1"}, "10.0.0.1:80", "198.51.100.9"},
		{"forwarded chain", proxies, map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"}, "10.0.0.1:80", "198.51.100.1"},
		{"forged left hop ignored", proxies, map[string]string{"X-Forwarded-For": "1.2.3.4, 198.51.100.1"}, "10.0.0.1:80", "198.51.100.1"},
		{"bad hop stops the walk", proxies, map[string]string{"X-Forwarded-For": "198.51.100.1, junk, 10.0.0.3"}, "10.0.0.1:80", "10.0.0.3"},
		{"proxy without headers", proxies, nil, "10.0.0.1:80", "10.0.0.1"},
		{"ipv6 proxy", proxies, map[string]string{"X-Forwarded-For": "2001:db8::1"}, "[fd00::1]:443", "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := tt.ips.ClientIP(req); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
