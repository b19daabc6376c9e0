package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/prompt-manager/prompt-manager/internal/web/handler"
	"github.com/prompt-manager/prompt-manager/internal/web/session"
)

// Middleware loads the admin session into fiber.Locals and guards the admin area.
func Middleware(c *fiber.Ctx) error {
	var (
		isLoginPage = IsLoginPage(c)
		isAdminPage = IsAdminPage(c)
	)

	sessData := new(session.Data)
	if err := sessData.Read(c.Cookies(session.CookieName)); err != nil {
		sessData = new(session.Data)
	}

	if sessData.Valid() {
		c.Locals(handler.LocalsUser, *sessData)

		if isLoginPage && c.Method() == fiber.MethodGet {
			return c.Redirect(handler.AdminPath)
		}

		return c.Next()
	}

	if !isAdminPage {
		return c.Next()
	}

	if handler.WantsJSON(c) {
		return handler.JSONMessage(c, fiber.StatusUnauthorized, "login required")
	}

	return c.Redirect(handler.LoginPath)
}

// IsLoginPage checks if the current request is for the login page.
func IsLoginPage(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Path()), handler.LoginPath)
}

// IsAdminPage checks if the current request targets the admin area.
func IsAdminPage(c *fiber.Ctx) bool {
	p := strings.ToLower(c.Path())

	return p == handler.AdminPath || strings.HasPrefix(p, handler.AdminPath+"/")
}
