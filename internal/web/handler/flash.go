package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/prompt-manager/prompt-manager/internal/web/session"
)

// Flash stores a message for the next admin page of this session.
func Flash(c *fiber.Ctx, msg string, exp time.Duration) {
	id := c.Cookies(session.CookieName)
	if id == "" {
		return
	}

	data := new(session.Data)
	if err := data.Read(id); err != nil || !data.Valid() {
		return
	}

	data.Flash = msg
	if err := data.Write(id, exp); err != nil {
		log.Error().Err(err).Msg("failed to write flash message")
	}
}

// TakeFlash returns and clears the pending flash message.
func TakeFlash(c *fiber.Ctx, exp time.Duration) string {
	id := c.Cookies(session.CookieName)
	if id == "" {
		return ""
	}

	data := new(session.Data)
	if err := data.Read(id); err != nil || data.Flash == "" {
		return ""
	}

	msg := data.Flash
	data.Flash = ""

	if err := data.Write(id, exp); err != nil {
		log.Error().Err(err).Msg("failed to clear flash message")
	}

	return msg
}
