package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sunidhiii/mando-lending-borrowing-sub000/observability"
)

// RateLimiter throttles mutating requests per client address.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter

	perSecond rate.Limit
	burst     int
}

// NewRateLimiter builds a per-client limiter from a per-minute budget.
func NewRateLimiter(requestsPerMinute float64, burst int) *RateLimiter {
	perSecond := requestsPerMinute / 60.0
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		visitors:  make(map[string]*rate.Limiter),
		perSecond: rate.Limit(perSecond),
		burst:     burst,
	}
}

// Middleware rejects requests exceeding the client's budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		limiter := rl.obtainLimiter(clientID(req))
		if !limiter.Allow() {
			observability.RequestMetrics().RecordThrottle(req.URL.Path, "rate_limit")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (rl *RateLimiter) obtainLimiter(id string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, ok := rl.visitors[id]
	if ok {
		return limiter
	}
	limiter = rate.NewLimiter(rl.perSecond, rl.burst)
	rl.visitors[id] = limiter
	go rl.cleanup(id)
	return limiter
}

func (rl *RateLimiter) cleanup(id string) {
	timer := time.NewTimer(5 * time.Minute)
	defer timer.Stop()
	<-timer.C
	rl.mu.Lock()
	delete(rl.visitors, id)
	rl.mu.Unlock()
}

func clientID(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if parsed := net.ParseIP(ip); parsed != nil {
			return parsed.String()
		}
		if comma := strings.IndexByte(ip, ','); comma > 0 {
			trimmed := strings.TrimSpace(ip[:comma])
			if parsed := net.ParseIP(trimmed); parsed != nil {
				return parsed.String()
			}
		}
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
