package middleware

import (
	"strings"
	"time"

	"sho/internal/config"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
)

// RateLimitMiddleware provides per-IP rate limiting for the oracle's HTTP
// surface. Payment gating (L402/x402) is the primary defense against
// abuse; this is a coarser backstop against unpaid request floods (quote
// previews, 402 challenges, health checks).
type RateLimitMiddleware struct {
	config *config.RateLimitConfig
}

// NewRateLimitMiddleware creates a new rate limit middleware instance
func NewRateLimitMiddleware(cfg *config.RateLimitConfig) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		config: cfg,
	}
}

// Middleware returns the general rate limiter for all endpoints
func (m *RateLimitMiddleware) Middleware() fiber.Handler {
	if !m.config.Enabled {
		return func(c fiber.Ctx) error {
			return c.Next()
		}
	}

	return limiter.New(limiter.Config{
		Max:        m.config.MaxRequests,
		Expiration: time.Duration(m.config.WindowSeconds) * time.Second,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: rateLimitResponse,
		SkipSuccessfulRequests: false,
		SkipFailedRequests:     false,
		Next: func(c fiber.Ctx) bool {
			// Skip rate limiting for health endpoints
			return isHealthEndpoint(c.Path())
		},
	})
}

// rateLimitResponse returns a 429 Too Many Requests response
func rateLimitResponse(c fiber.Ctx) error {
	retryAfter := c.GetRespHeader("Retry-After")
	if retryAfter == "" {
		retryAfter = "60"
	}

	c.Set("Retry-After", retryAfter)
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error":       "Too many requests",
		"message":     "Rate limit exceeded. Please try again later.",
		"retry_after": retryAfter,
	})
}

// isHealthEndpoint checks if the path is a health endpoint
func isHealthEndpoint(path string) bool {
	return strings.HasPrefix(path, "/health")
}
