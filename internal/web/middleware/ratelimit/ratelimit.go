// Package ratelimit applies fiber limiters whose rate is a live setting.
package ratelimit

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/rs/zerolog/log"

	"github.com/prompt-manager/prompt-manager/internal/settings"
)

// Dynamic reads the rate on every request and keeps one limiter per distinct rate,
// so a changed setting applies to the next request.
type Dynamic struct {
	name     string
	rate     func() string
	mu       sync.Mutex
	handlers map[string]fiber.Handler
}

// New returns a Dynamic limiter. name separates the counters of different limiters.
func New(name string, rate func() string) *Dynamic {
	return &Dynamic{name: name, rate: rate, handlers: make(map[string]fiber.Handler)}
}

// Handler is the fiber middleware.
func (d *Dynamic) Handler(c *fiber.Ctx) error {
	return d.handler(d.rate())(c)
}

func (d *Dynamic) handler(raw string) fiber.Handler {
	d.mu.Lock()
	defer d.mu.Unlock()

	if h, ok := d.handlers[raw]; ok {
		return h
	}

	r, err := settings.ParseRate(raw)
	if err != nil {
		log.Warn().Err(err).Str("limiter", d.name).Msg("invalid rate, requests are not limited")

		h := func(c *fiber.Ctx) error { return c.Next() }
		d.handlers[raw] = h

		return h
	}

	h := limiter.New(limiter.Config{
		Max:        r.Max,
		Expiration: r.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return d.name + ":" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Warn().Str("limiter", d.name).Str("ip", c.IP()).Msg("rate limit reached")

			return c.Status(fiber.StatusTooManyRequests).SendString("too many requests, try again later")
		},
	})
	d.handlers[raw] = h

	return h
}
