package ratelimit_test

import (
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prompt-manager/prompt-manager/internal/web/middleware/ratelimit"
)

func TestDynamicFollowsRateChanges(t *testing.T) {
	var rate atomic.Value
	rate.Store("2 per minute")

	app := fiber.New()
	app.Post("/upload", ratelimit.New("upload", func() string { return rate.Load().(string) }).Handler,
		func(c *fiber.Ctx) error { return c.SendString("ok") })

	status := func() int {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/upload", nil))
		require.NoError(t, err)

		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, status())
	assert.Equal(t, fiber.StatusOK, status())
	assert.Equal(t, fiber.StatusTooManyRequests, status())

	rate.Store("5/minute")
	assert.Equal(t, fiber.StatusOK, status())

	rate.Store("garbage")
	for i := 0; i < 10; i++ {
		assert.Equal(t, fiber.StatusOK, status())
	}
}
