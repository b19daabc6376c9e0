package login

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/web/handler"
	"github.com/prompt-manager/prompt-manager/internal/web/middleware/ratelimit"
	"github.com/prompt-manager/prompt-manager/internal/web/navigation"
	"github.com/prompt-manager/prompt-manager/internal/web/session"
)

const (
	// Path is the path to the login page.
	Path = handler.LoginPath
)

// form is the submitted login form.
type form struct {
	Username string `form:"username" json:"username" validate:"required,max=100"`
	Password string `form:"password" json:"password" validate:"required"`
	Next     string `form:"next" json:"next"`
}

// Service is the login handler service.
type Service struct {
	handler.Service
	deps     *handler.Deps
	validate *validator.Validate
}

// Handler is the login handler.
var Handler = Service{}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() {
		return errors.New(handler.ErrNilDepsFatalLogMsg)
	}

	s.deps = deps
	s.validate = validator.New()

	limit := ratelimit.New("login", func() string {
		return deps.Settings.Cached().LoginRateLimit
	})

	// register routes
	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RootPath, s.Get)
		router.Post(handler.RootPath, limit.Handler, s.Post)
	})

	return nil
}

func (s *Service) render(c *fiber.Ctx, status int, err error) error {
	data := fiber.Map{
		"Navigation": navigation.NewContext("Login", "login", "login"),
		"Next":       c.Query("next", c.FormValue("next")),
	}
	if err != nil {
		data["error"] = err.Error()
	}

	return c.Status(status).Render("login", data, handler.BaseLayout)
}

// Get handles the login page rendering.
func (s *Service) Get(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, nil)
}

// authenticate returns the active user matching the credentials.
func (s *Service) authenticate(username, password string) (*models.User, error) {
	var user models.User

	err := s.deps.DB.Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}

	if err != nil {
		log.Error().Err(err).Msg("failed to load user")
		return nil, ErrInternalServerError
	}

	if !user.Active || !user.VerifyPassword(password) {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

// Post handles the login form submission.
func (s *Service) Post(c *fiber.Ctx) error {
	in := new(form)

	if err := c.BodyParser(in); err != nil {
		return s.render(c, fiber.StatusOK, ErrInvalidFormData)
	}

	if err := s.validate.Struct(in); err != nil {
		return s.render(c, fiber.StatusOK, ErrInvalidFormData)
	}

	user, err := s.authenticate(in.Username, in.Password)
	if err != nil {
		log.Warn().Str("username", in.Username).Str("ip", c.IP()).Msg("login failed")
		return s.render(c, fiber.StatusOK, err)
	}

	sessionID, err := session.GenerateSessionID()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate session ID")
		return s.render(c, fiber.StatusOK, ErrInternalServerError)
	}

	exp := s.deps.Cfg.Webserver.Session.ExpiryTime

	userSession := &session.Data{UserID: user.ID, Username: user.Username}
	if err = userSession.Write(sessionID, exp); err != nil {
		log.Error().Err(err).Msg("failed to write session")
		return s.render(c, fiber.StatusOK, ErrInternalServerError)
	}

	// set login cookie
	c.Cookie(&fiber.Cookie{
		Name:     session.CookieName,
		Value:    sessionID,
		MaxAge:   int(exp.Seconds()),
		Secure:   !s.deps.Cfg.DevMode,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	log.Info().Str("username", user.Username).Msg("admin logged in")

	return c.Redirect(handler.SafeNext(in.Next, handler.AdminPath))
}
