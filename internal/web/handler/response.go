package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/prompt-manager/prompt-manager/internal/db/controller/images"
	"github.com/prompt-manager/prompt-manager/internal/db/controller/tag"
	"github.com/prompt-manager/prompt-manager/internal/ingest"
	"github.com/prompt-manager/prompt-manager/internal/web/session"
)

// RequestError marks a client mistake that is answered with 400.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return e.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

// BadRequest wraps err as a RequestError.
func BadRequest(err error) error {
	return &RequestError{Err: err}
}

// StatusOf maps a service error to an HTTP status.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case ingest.IsValidation(err), errors.Is(err, images.ErrInvalidCategory), errors.Is(err, tag.ErrTagNameEmpty),
		errors.As(err, new(*RequestError)):
		return fiber.StatusBadRequest
	case errors.Is(err, ingest.ErrNotFound), errors.Is(err, images.ErrImageNotFound), errors.Is(err, tag.ErrTagNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// JSONError logs err and writes {"status":"error","message":...} with the mapped status.
func JSONError(c *fiber.Ctx, err error) error {
	status := StatusOf(err)
	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}

	return c.Status(status).JSON(fiber.Map{"status": "error", "message": err.Error()})
}

// JSONMessage writes a {"status":"error"} response with a fixed message.
func JSONMessage(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"status": "error", "message": msg})
}

// IsAdmin reports whether the request carries a logged in session.
func IsAdmin(c *fiber.Ctx) bool {
	sess, ok := c.Locals(LocalsUser).(session.Data)

	return ok && sess.Valid()
}

// ParseIDs parses a comma separated id list, skipping invalid parts.
func ParseIDs(raw string) []uint64 {
	var out []uint64

	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err == nil && id > 0 {
			out = append(out, id)
		}
	}

	return out
}

// SafeNext returns next when it is a local path, else fallback.
func SafeNext(next, fallback string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}

	return fallback
}

// ShowSensitive reports whether images with sensitive tags are visible for this request:
// always for admins, for visitors only while the toggle is allowed and their cookie is set.
func ShowSensitive(c *fiber.Ctx, allowToggle bool) bool {
	if IsAdmin(c) {
		return true
	}

	return allowToggle && c.Cookies(SensitiveCookie) == "1"
}

// FormBool reads a checkbox or a "1"/"true" form value.
func FormBool(c *fiber.Ctx, key string) bool {
	switch strings.ToLower(strings.TrimSpace(c.FormValue(key))) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}

// WantsJSON reports whether the client sent or accepts JSON.
func WantsJSON(c *fiber.Ctx) bool {
	return c.Is("json") || strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}
