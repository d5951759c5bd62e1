package httpserver

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/fdg312/nutri-plans/internal/apperr"
	"github.com/fdg312/nutri-plans/internal/config"
)

// sweepEvery is how many lookups pass between evictions of idle clients.
const sweepEvery = 1000

type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	lookups  int
}

func newClientLimiters(rps, burst int) *clientLimiters {
	return &clientLimiters{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

func (c *clientLimiters) get(ip string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[ip]
	if !ok {
		l = rate.NewLimiter(c.limit, c.burst)
		c.limiters[ip] = l
	}

	c.lookups++
	if c.lookups%sweepEvery == 0 {
		c.sweepLocked(ip)
	}
	return l
}

// sweepLocked drops limiters whose bucket has refilled, i.e. idle clients.
func (c *clientLimiters) sweepLocked(keep string) {
	for ip, l := range c.limiters {
		if ip != keep && l.Tokens() >= float64(c.burst) {
			delete(c.limiters, ip)
		}
	}
}

func (c *clientLimiters) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.limiters)
}

// RateLimitMiddleware enforces a per-IP token bucket. RATE_LIMIT_RPS <= 0
// disables it.
func RateLimitMiddleware(cfg *config.Config, next http.Handler) http.Handler {
	if cfg.RateLimitRPS <= 0 {
		return next
	}

	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = cfg.RateLimitRPS
	}
	clients := newClientLimiters(cfg.RateLimitRPS, burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !clients.get(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			apperr.WriteError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop, then RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
