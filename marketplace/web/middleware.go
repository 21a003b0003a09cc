package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// LoggingMiddleware logs HTTP requests in a structured format, level keyed to
// the status class.
func LoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start)
		statusCode := c.Response().StatusCode()

		logLevel := slog.LevelInfo
		if statusCode >= 400 && statusCode < 500 {
			logLevel = slog.LevelWarn
		} else if statusCode >= 500 {
			logLevel = slog.LevelError
		}

		logger := slog.With(
			slog.String("type", "api"),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", statusCode),
			slog.Duration("duration", duration),
			slog.String("ip", GetIPAddress(c)),
			slog.Int("size", len(c.Response().Body())),
		)

		if err != nil {
			logger = logger.With(slog.String("error", err.Error()))
		}

		message := "HTTP request processed"
		if err != nil {
			message = "HTTP request failed"
		}
		logger.Log(c.Context(), logLevel, message)

		return err
	}
}

// RateLimiter implements a simple in-memory sliding-window rate limiter
type RateLimiter struct {
	requests map[string][]time.Time
	mutex    sync.RWMutex
	window   time.Duration
	limit    int
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		window:   window,
		limit:    limit,
	}

	// Cleanup old entries every minute
	go rl.cleanup()

	return rl
}

// Allow checks if a request should be allowed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	requests := rl.requests[key]

	var validRequests []time.Time
	for _, req := range requests {
		if req.After(cutoff) {
			validRequests = append(validRequests, req)
		}
	}

	if len(validRequests) >= rl.limit {
		rl.requests[key] = validRequests
		return false
	}

	validRequests = append(validRequests, now)
	rl.requests[key] = validRequests
	return true
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mutex.Lock()
		cutoff := time.Now().Add(-rl.window * 2)

		for key, requests := range rl.requests {
			var validRequests []time.Time
			for _, req := range requests {
				if req.After(cutoff) {
					validRequests = append(validRequests, req)
				}
			}

			if len(validRequests) == 0 {
				delete(rl.requests, key)
			} else {
				rl.requests[key] = validRequests
			}
		}
		rl.mutex.Unlock()
	}
}

// BidRateLimit throttles bid placement per bidder and client address. The
// bidder ID is peeked from the body; an unparsable body falls through keyed
// by address alone and fails properly in the handler.
func BidRateLimit(limiter *RateLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var peek struct {
			BidderID int64 `json:"bidder_id"`
		}
		_ = json.Unmarshal(c.Body(), &peek)

		key := fmt.Sprintf("%d@%s", peek.BidderID, GetIPAddress(c))
		if !limiter.Allow(key) {
			slog.Warn("Bid rate limit exceeded",
				slog.String("type", "api"),
				slog.String("key", key),
				slog.String("path", c.Path()),
			)
			return SendError(c, fiber.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				"Too many bids. Please try again later.", nil)
		}

		return c.Next()
	}
}
