package middleware

import (
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"klaviyo-detector/internal/metrics"

	"golang.org/x/time/rate"
)

// ipLimiter keeps one token bucket per client IP.
type ipLimiter struct {
	rps   rate.Limit
	burst int
	ttl   time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func newIPLimiter(rps float64, burst int, ttl time.Duration) *ipLimiter {
	return &ipLimiter{rps: rate.Limit(rps), burst: burst, ttl: ttl, buckets: make(map[string]*bucket)}
}

func (l *ipLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// sweep drops buckets idle for longer than ttl and returns how many remain.
func (l *ipLimiter) sweep(now time.Time) int {
	cut := now.Add(-l.ttl)
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, b := range l.buckets {
		if b.seen.Before(cut) {
			delete(l.buckets, ip)
		}
	}
	return len(l.buckets)
}

func (l *ipLimiter) run(stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			l.sweep(now)
		case <-stop:
			return
		}
	}
}

// RateLimiter answers 429 once a client IP exhausts its bucket. Requests whose
// Host is listed in bypassHosts are never limited. Idle buckets are swept every
// ttl/2 until stop is closed; a nil stop sweeps for the process lifetime.
func RateLimiter(rps float64, burst int, ttl time.Duration, logger *log.Logger, bypassHosts []string, stop <-chan struct{}) Middleware {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 10
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	lim := newIPLimiter(rps, burst, ttl)
	go lim.run(stop)

	bypass := make(map[string]bool, len(bypassHosts))
	for _, h := range bypassHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			bypass[h] = true
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[requestHost(r)] {
				next.ServeHTTP(w, r)
				return
			}
			ip := clientIP(r)
			if !lim.allow(ip, time.Now()) {
				metrics.RateLimitRejectedTotal.Inc()
				logger.Printf("warn: rate limited ip=%s path=%s", ip, r.URL.Path)
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limited"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestHost(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}
