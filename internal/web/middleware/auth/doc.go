// Package auth provides the admin session middleware.
//
// The middleware performs the following tasks:
//   - Reads the session cookie and stores a valid session in fiber.Locals,
//     so public pages can show admin controls and sensitive images
//   - Redirects anonymous requests for /admin pages to the login page,
//     JSON requests get 401 instead
//   - Redirects a logged in user away from the login form
//
// Usage:
//
//	app.Use(authmiddleware.Middleware)
package auth
