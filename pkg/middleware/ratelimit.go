package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"golang.org/x/time/rate"
)

// maxIdleLimiters oltre questa soglia i limiter inutilizzati vengono rimossi
const maxIdleLimiters = 10000

// clientRateLimiter gestisce un token bucket per client
type clientRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
}

func newClientRateLimiter(requestsPerMinute int) *clientRateLimiter {
	return &clientRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(requestsPerMinute) / 60.0, // Converti a rate per secondo
		burst:    requestsPerMinute,
	}
}

func (rl *clientRateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		if len(rl.limiters) >= maxIdleLimiters {
			rl.cleanup()
		}
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = limiter
	}

	return limiter.Allow()
}

// cleanup rimuove i limiter con il bucket pieno (non usati di recente).
// Va chiamato con mu acquisito.
func (rl *clientRateLimiter) cleanup() {
	now := time.Now()
	for key, limiter := range rl.limiters {
		if limiter.TokensAt(now) >= float64(rl.burst) {
			delete(rl.limiters, key)
		}
	}
}

// RateLimit limita le richieste per IP a requestsPerMinute.
// Con requestsPerMinute <= 0 il middleware non fa nulla.
func RateLimit(requestsPerMinute int) fiber.Handler {
	if requestsPerMinute <= 0 {
		return func(c fiber.Ctx) error { return c.Next() }
	}

	limiter := newClientRateLimiter(requestsPerMinute)

	return func(c fiber.Ctx) error {
		if !limiter.allow(c.IP()) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please wait a moment and try again.",
			})
		}
		return c.Next()
	}
}
