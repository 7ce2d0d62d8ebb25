package auth

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/deskline/helpdesk/pkg/util/errorutil"
)

// LoginLimiter throttles sign-in attempts per client address. Each
// address gets its own token bucket.
type LoginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewLoginLimiter allows perMinute attempts per address with the given
// burst. Non-positive values fall back to 10 per minute, burst 5.
func NewLoginLimiter(perMinute, burst int) *LoginLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 5
	}
	return &LoginLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
	}
}

// Allow consumes one attempt for key.
func (l *LoginLimiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Handle rejects requests over the limit with 429.
func (l *LoginLimiter) Handle(c *fiber.Ctx) error {
	if !l.Allow(c.IP()) {
		return apperrors.NewTooManyRequests("too many login attempts, try again later")
	}
	return c.Next()
}

func (l *LoginLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[key]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	l.limiters[key] = limiter
	return limiter
}
