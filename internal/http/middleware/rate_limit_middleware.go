package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sandeepkv93/tenant-session-core/internal/http/response"
)

// RateLimiter keeps one token bucket per client key. Buckets idle for longer
// than the refill window are evicted on the next sweep.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	window   time.Duration
	scope    string
	keyFunc  func(r *http.Request) string
	sweepAt  time.Time
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows requests per window with a burst equal to requests.
func NewRateLimiter(scope string, requests int, window time.Duration) *RateLimiter {
	return NewRateLimiterWithKey(scope, requests, window, ClientIPKey)
}

func NewRateLimiterWithKey(scope string, requests int, window time.Duration, keyFunc func(r *http.Request) string) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if keyFunc == nil {
		keyFunc = ClientIPKey
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(float64(requests) / window.Seconds()),
		burst:    requests,
		window:   window,
		scope:    scope,
		keyFunc:  keyFunc,
		now:      time.Now,
	}
}

func (rl *RateLimiter) reserve(key string) (bool, time.Duration, int) {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.sweepAt) {
		for k, e := range rl.limiters {
			if now.Sub(e.lastSeen) > rl.window {
				delete(rl.limiters, k)
			}
		}
		rl.sweepAt = now.Add(rl.window)
	}
	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now

	if entry.limiter.AllowN(now, 1) {
		return true, 0, int(math.Floor(entry.limiter.TokensAt(now)))
	}
	r := entry.limiter.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return false, wait, 0
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.keyFunc(r)
			if key == "" {
				key = ClientIPKey(r)
			}
			allowed, retryAfter, remaining := rl.reserve(key)
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.burst))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", max(remaining, 0)))
			if !allowed {
				w.Header().Set("Retry-After", retryAfterHeader(retryAfter))
				slog.WarnContext(r.Context(), "rate limit exceeded",
					"scope", rl.scope,
					"path", r.URL.Path,
					"retry_after", retryAfter.String(),
				)
				response.Error(w, r, http.StatusTooManyRequests, response.CodeRateLimited, "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIPKey prefers the address chi's RealIP resolved, falling back to the
// socket peer.
func ClientIPKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return host
}

func retryAfterHeader(d time.Duration) string {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("%d", seconds)
}
