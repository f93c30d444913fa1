package middleware

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func limitedHandler(bypass []string) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	stop := make(chan struct{})
	close(stop) // sweeping is exercised directly in TestIPLimiterSweep
	return Chain(ok, RateLimiter(1, 1, time.Minute, log.New(io.Discard, "", 0), bypass, stop))
}

func hit(h http.Handler, target, remote string) int {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiterPerIPBuckets(t *testing.T) {
	h := limitedHandler(nil)
	steps := []struct {
		remote string
		want   int
	}{
		{"198.51.100.1:1000", http.StatusOK},
		{"198.51.100.1:1001", http.StatusTooManyRequests},
		{"198.51.100.2:1000", http.StatusOK},
		{"[2001:db8::1]:443", http.StatusOK},
		{"[2001:db8::1]:444", http.StatusTooManyRequests},
	}
	for i, s := range steps {
		if got := hit(h, "http://detector.local/api/scrape", s.remote); got != s.want {
			t.Fatalf("step %d (%s): got %d want %d", i, s.remote, got, s.want)
		}
	}
}

func TestRateLimiterRejectionBody(t *testing.T) {
	h := limitedHandler(nil)
	hit(h, "/api/scrape", "198.51.100.7:1")
	req := httptest.NewRequest(http.MethodGet, "/api/scrape", nil)
	req.RemoteAddr = "198.51.100.7:1"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Retry-After") != "1" || rec.Body.String() != `{"error":"rate limited"}` {
		t.Fatalf("unexpected 429 response headers=%v body=%q", rec.Header(), rec.Body.String())
	}
}

func TestRateLimiterBypassHosts(t *testing.T) {
	h := limitedHandler([]string{" Internal.Example.com "})
	for i := 0; i < 3; i++ {
		if got := hit(h, "http://internal.example.com:8080/api/scrape", "198.51.100.9:1"); got != http.StatusOK {
			t.Fatalf("bypass host request %d limited: %d", i, got)
		}
	}
	if got := hit(h, "http://public.example.com/api/scrape", "198.51.100.9:1"); got != http.StatusOK {
		t.Fatalf("first non-bypass request: %d", got)
	}
	if got := hit(h, "http://public.example.com/api/scrape", "198.51.100.9:1"); got != http.StatusTooManyRequests {
		t.Fatalf("second non-bypass request should be limited, got %d", got)
	}
}

func TestIPLimiterSweep(t *testing.T) {
	l := newIPLimiter(1, 1, time.Minute)
	t0 := time.Unix(1_700_000_000, 0)

	if !l.allow("a", t0) || l.allow("a", t0) {
		t.Fatal("expected burst of one")
	}
	l.allow("b", t0.Add(50*time.Second))

	if n := l.sweep(t0.Add(90 * time.Second)); n != 1 {
		t.Fatalf("expected only b to survive, %d buckets left", n)
	}
	// a starts over with a full bucket
	if !l.allow("a", t0.Add(90*time.Second)) {
		t.Fatal("expected fresh bucket for a after sweep")
	}
}

func TestClientIP(t *testing.T) {
	defer SetTrustProxyHeaders(false)
	cases := []struct {
		trust  bool
		remote string
		xff    string
		xri    string
		want   string
	}{
		{false, "192.0.2.10:5555", "203.0.113.1", "", "192.0.2.10"},
		{false, "[2001:db8::5]:80", "", "", "2001:db8::5"},
		{true, "192.0.2.10:5555", "203.0.113.1, 10.0.0.1", "", "203.0.113.1"},
		{true, "192.0.2.10:5555", "not-an-ip", "203.0.113.2", "203.0.113.2"},
		{true, "192.0.2.10:5555", "", "", "192.0.2.10"},
	}
	for _, c := range cases {
		SetTrustProxyHeaders(c.trust)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = c.remote
		if c.xff != "" {
			req.Header.Set("X-Forwarded-For", c.xff)
		}
		if c.xri != "" {
			req.Header.Set("X-Real-IP", c.xri)
		}
		if got := clientIP(req); got != c.want {
			t.Errorf("trust=%v remote=%s xff=%q: got %s want %s", c.trust, c.remote, c.xff, got, c.want)
		}
	}
}
