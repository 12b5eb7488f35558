package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter limits actions per user per hour. State is in-memory and
// per-process, which matches the deployment model: one instance fronting the
// store.
type RateLimiter struct {
	mu       sync.Mutex
	perHour  int
	limiters map[string]*rate.Limiter
}

// NewRateLimiter allows perHour actions per user per hour. A non-positive
// limit disables limiting.
func NewRateLimiter(perHour int) *RateLimiter {
	return &RateLimiter{
		perHour:  perHour,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the user may perform another action now.
func (l *RateLimiter) Allow(userID string) bool {
	if l.perHour <= 0 {
		return true
	}

	l.mu.Lock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Hour/time.Duration(l.perHour)), l.perHour)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}
