package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mubarokah/id-server/oauth2"
)

// RateLimiter tracks a per-client request budget, refilled continuously at
// the configured per-minute rate.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perMin   int
	nowFunc  func() time.Time
}

func NewRateLimiter(perMin int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		perMin:   perMin,
		nowFunc:  time.Now,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(float64(rl.perMin)/60.0), rl.perMin)
		rl.limiters[key] = l
	}
	return l
}

// Take spends one request from the client's budget. It reports whether the
// request is allowed, the remaining budget, and when the window resets.
func (rl *RateLimiter) Take(key string) (allowed bool, remaining int, reset time.Time) {
	l := rl.limiter(key)
	now := rl.nowFunc()

	allowed = l.AllowN(now, 1)
	remaining = int(l.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}

	// Time until the budget is fully refilled.
	deficit := float64(rl.perMin) - l.TokensAt(now)
	if deficit < 0 {
		deficit = 0
	}
	reset = now.Add(time.Duration(deficit / float64(l.Limit()) * float64(time.Second)))
	return allowed, remaining, reset
}

// RateLimitMiddleware enforces the per-client budget for a resource endpoint.
// It runs after RequireToken so the budget is keyed by the authenticated
// client.
func (s *Server) RateLimitMiddleware(limiter *RateLimiter) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			info, ok := TokenInfoFromContext(r.Context())
			if !ok {
				writeOAuthError(w, oauth2.NewError(oauth2.ErrCodeServerError, "internal server error"))
				return
			}

			allowed, remaining, reset := limiter.Take(info.ClientID)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.perMin))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if !allowed {
				retryAfter := int(time.Until(reset).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				s.metrics.RateLimited.WithLabelValues(r.URL.Path).Inc()
				oerr := oauth2.NewError(oauth2.ErrCodeRateLimitExceeded, "rate limit exceeded for this endpoint")
				oerr.RetryAfter = retryAfter
				writeOAuthError(w, oerr)
				return
			}

			next(w, r)
		}
	}
}
