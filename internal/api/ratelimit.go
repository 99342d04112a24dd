package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-IP HTTP rate limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults. The realtime
// traffic rides the socket, so the HTTP surface can stay tight.
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 10,
	Burst:             20,
	CleanupInterval:   5 * time.Minute,
}

type ipLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos; read by the cleanup loop
}

// IPRateLimiter provides IP-based rate limiting for HTTP requests.
type IPRateLimiter struct {
	limiters sync.Map // map[string]*ipLimiterEntry
	config   RateLimitConfig
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter creates a limiter and starts its cleanup loop so
// abandoned IPs do not leak entries.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	rl := &IPRateLimiter{
		config:   cfg,
		stopChan: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop stops the cleanup goroutine.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
	})
}

func (rl *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	now := time.Now().UnixNano()
	if entry, ok := rl.limiters.Load(ip); ok {
		e := entry.(*ipLimiterEntry)
		e.lastSeen.Store(now)
		return e.limiter
	}
	entry := &ipLimiterEntry{
		limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst),
	}
	entry.lastSeen.Store(now)
	actual, _ := rl.limiters.LoadOrStore(ip, entry)
	e := actual.(*ipLimiterEntry)
	e.lastSeen.Store(now)
	return e.limiter
}

func (rl *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-rl.config.CleanupInterval * 2).UnixNano()
			rl.limiters.Range(func(key, value any) bool {
				if value.(*ipLimiterEntry).lastSeen.Load() < cutoff {
					rl.limiters.Delete(key)
				}
				return true
			})
		}
	}
}

// Allow checks whether a request from the given IP should be admitted.
func (rl *IPRateLimiter) Allow(ip string) bool {
	return rl.getLimiter(ip).Allow()
}

// Middleware returns an HTTP middleware for rate limiting.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(GetClientIP(r)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClientIP extracts the client IP, honoring proxy headers.
// CAUTION: X-Forwarded-For can be spoofed if not behind a trusted proxy.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// SocketRateLimiter limits concurrent realtime sessions per IP, covering
// both WebSocket upgrades and long-poll sessions.
type SocketRateLimiter struct {
	connections sync.Map // map[string]*int32
	maxPerIP    int
}

// NewSocketRateLimiter creates a per-IP concurrent session limiter.
func NewSocketRateLimiter(maxPerIP int) *SocketRateLimiter {
	return &SocketRateLimiter{maxPerIP: maxPerIP}
}

// Allow reserves a session slot for the IP if one is free.
func (srl *SocketRateLimiter) Allow(ip string) bool {
	actual, _ := srl.connections.LoadOrStore(ip, new(int32))
	counter := actual.(*int32)
	for {
		current := atomic.LoadInt32(counter)
		if int(current) >= srl.maxPerIP {
			return false
		}
		if atomic.CompareAndSwapInt32(counter, current, current+1) {
			return true
		}
	}
}

// Release frees a previously reserved slot.
func (srl *SocketRateLimiter) Release(ip string) {
	if val, ok := srl.connections.Load(ip); ok {
		atomic.AddInt32(val.(*int32), -1)
	}
}
