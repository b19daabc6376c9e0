package admin

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/prompt-manager/prompt-manager/internal/settings"
	"github.com/prompt-manager/prompt-manager/internal/web/handler"
	"github.com/prompt-manager/prompt-manager/internal/web/navigation"
)

// SettingsPath is the upload, display and rate limit settings page.
const SettingsPath = handler.AdminPath + "/settings"

// settingsForm is the submitted settings page.
type settingsForm struct {
	ImgMaxDimension       int `validate:"min=1"`
	ImgQuality            int `validate:"min=1,max=100"`
	EnableImgCompress     bool
	MaxRefImages          int `validate:"min=1"`
	ThumbSize             int `validate:"min=32"`
	ThumbQuality          int `validate:"min=1,max=100"`
	ItemsPerPage          int `validate:"min=1"`
	AdminPerPage          int `validate:"min=1"`
	UseThumbnailInPreview bool
	UploadRateLimit       string `validate:"required"`
	LoginRateLimit        string `validate:"required"`
}

var validate = validator.New() //nolint:gochecknoglobals

func (s *Service) renderSettings(c *fiber.Ctx, status int, v settings.Values, formErr string) error {
	data := fiber.Map{
		"Navigation": navigation.NewContext("Settings", "admin", "settings").
			AddBreadcrumb("Admin", handler.AdminPath, false).
			AddBreadcrumb("Settings", SettingsPath, true),
		"Values":   v,
		"Readonly": settings.ReadonlySettings(s.deps.Cfg),
		"Flash":    handler.TakeFlash(c, s.deps.Cfg.Webserver.Session.ExpiryTime),
		"IsAdmin":  true,
	}
	if formErr != "" {
		data["error"] = formErr
	}

	return c.Status(status).Render("admin/settings", data, handler.BaseLayout)
}

// Settings renders the settings page.
func (s *Service) Settings(c *fiber.Ctx) error {
	return s.renderSettings(c, fiber.StatusOK, s.deps.Settings.Snapshot(), "")
}

// parseSettings reads the form, reporting the first field that is not a number.
func parseSettings(c *fiber.Ctx) (*settingsForm, string) {
	in := &settingsForm{
		EnableImgCompress:     handler.FormBool(c, settings.KeyEnableImgCompress),
		UseThumbnailInPreview: handler.FormBool(c, settings.KeyUseThumbnailInPreview),
		UploadRateLimit:       strings.TrimSpace(c.FormValue(settings.KeyUploadRateLimit)),
		LoginRateLimit:        strings.TrimSpace(c.FormValue(settings.KeyLoginRateLimit)),
	}

	ints := []struct {
		key string
		dst *int
	}{
		{settings.KeyImgMaxDimension, &in.ImgMaxDimension},
		{settings.KeyImgQuality, &in.ImgQuality},
		{settings.KeyMaxRefImages, &in.MaxRefImages},
		{settings.KeyThumbSize, &in.ThumbSize},
		{settings.KeyThumbQuality, &in.ThumbQuality},
		{settings.KeyItemsPerPage, &in.ItemsPerPage},
		{settings.KeyAdminPerPage, &in.AdminPerPage},
	}

	for _, f := range ints {
		n, err := strconv.Atoi(strings.TrimSpace(c.FormValue(f.key)))
		if err != nil {
			return nil, f.key + " must be a number"
		}

		*f.dst = n
	}

	return in, ""
}

// SaveSettings validates and stores the settings page.
func (s *Service) SaveSettings(c *fiber.Ctx) error {
	current := s.deps.Settings.Snapshot()

	in, msg := parseSettings(c)
	if msg != "" {
		return s.renderSettings(c, fiber.StatusBadRequest, current, msg)
	}

	if err := validate.Struct(in); err != nil {
		return s.renderSettings(c, fiber.StatusBadRequest, current, err.Error())
	}

	for _, r := range []string{in.UploadRateLimit, in.LoginRateLimit} {
		if _, err := settings.ParseRate(r); err != nil {
			return s.renderSettings(c, fiber.StatusBadRequest, current, err.Error())
		}
	}

	svc := s.deps.Settings

	ints := map[string]int{
		settings.KeyImgMaxDimension: in.ImgMaxDimension,
		settings.KeyImgQuality:      in.ImgQuality,
		settings.KeyMaxRefImages:    in.MaxRefImages,
		settings.KeyThumbSize:       in.ThumbSize,
		settings.KeyThumbQuality:    in.ThumbQuality,
		settings.KeyItemsPerPage:    in.ItemsPerPage,
		settings.KeyAdminPerPage:    in.AdminPerPage,
	}
	for name, n := range ints {
		if _, err := svc.SetInt(name, n); err != nil {
			return s.internal(c, err, "failed to save settings")
		}
	}

	bools := map[string]bool{
		settings.KeyEnableImgCompress:     in.EnableImgCompress,
		settings.KeyUseThumbnailInPreview: in.UseThumbnailInPreview,
	}
	for name, b := range bools {
		if err := svc.SetBool(name, b); err != nil {
			return s.internal(c, err, "failed to save settings")
		}
	}

	for name, str := range map[string]string{
		settings.KeyUploadRateLimit: in.UploadRateLimit,
		settings.KeyLoginRateLimit:  in.LoginRateLimit,
	} {
		if err := svc.SetString(name, str); err != nil {
			return s.internal(c, err, "failed to save settings")
		}
	}

	log.Info().Msg("settings saved")
	handler.Flash(c, "settings saved", s.deps.Cfg.Webserver.Session.ExpiryTime)

	return c.Redirect(SettingsPath)
}
