package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitorTTL is how long an idle client keeps its token bucket.
const visitorTTL = 10 * time.Minute

type visitor struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter tracks per-IP rate limits using token buckets.
type RateLimiter struct {
	visitors sync.Map
	rate     rate.Limit
	burst    int
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter allows r requests per second per client IP with the given
// burst. A background goroutine evicts idle clients until Stop is called.
func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	rl := &RateLimiter{
		rate:  r,
		burst: burst,
		done:  make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow reports whether ip may make a request now.
func (rl *RateLimiter) Allow(ip string) bool {
	now := time.Now()
	v, _ := rl.visitors.LoadOrStore(ip, &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)})
	vis := v.(*visitor)
	vis.mu.Lock()
	vis.lastSeen = now
	vis.mu.Unlock()
	return vis.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(visitorTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.evict(time.Now())
		case <-rl.done:
			return
		}
	}
}

func (rl *RateLimiter) evict(now time.Time) {
	rl.visitors.Range(func(key, value any) bool {
		v := value.(*visitor)
		v.mu.Lock()
		idle := now.Sub(v.lastSeen) > visitorTTL
		v.mu.Unlock()
		if idle {
			rl.visitors.Delete(key)
		}
		return true
	})
}

// Stop terminates the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// Middleware rejects requests over the limit with 429. It expects
// RemoteAddr to be the client address, as set by chi's RealIP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientIP(r)) {
			jsonError(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
