package handler

const (
	// BaseLayout is the default path for layout templates.
	BaseLayout = "layouts/base"

	// RootPath is the root path the route group.
	RootPath = "/"

	// AdminPath is the prefix of every admin route.
	AdminPath = RootPath + "admin"

	// LoginPath is the path to the login page.
	LoginPath = RootPath + "login"

	// ErrNilDepsFatalLogMsg is used if app or a dependency is nil.
	ErrNilDepsFatalLogMsg = "app or dependencies are nil"

	// LocalsUser is the fiber.Locals key of the logged in session.
	LocalsUser = "CurrentUser"

	// SensitiveCookie is the visitor cookie that reveals sensitive images when set to "1".
	SensitiveCookie = "pm_show_sensitive"
)
