// Package upload serves the public submission form.
package upload

import (
	"errors"
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/prompt-manager/prompt-manager/internal/db/controller/tag"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/ingest"
	"github.com/prompt-manager/prompt-manager/internal/web/handler"
	"github.com/prompt-manager/prompt-manager/internal/web/middleware/ratelimit"
	"github.com/prompt-manager/prompt-manager/internal/web/navigation"
)

// Path is the path of the upload form.
const Path = handler.RootPath + "upload"

// ErrNoImage is shown when the form carries no main image.
var ErrNoImage = errors.New("please choose an image")

// Service is the upload handler service.
type Service struct {
	handler.Service
	deps *handler.Deps
}

// Handler is the upload handler.
var Handler = Service{}

// Init initializes the upload handler.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() {
		return errors.New(handler.ErrNilDepsFatalLogMsg)
	}

	s.deps = deps

	limit := ratelimit.New("upload", func() string {
		return deps.Settings.Cached().UploadRateLimit
	})

	app.Get(Path, s.Get)
	app.Post(Path, limit.Handler, s.Post)

	return nil
}

func (s *Service) view(c *fiber.Ctx, status int, data fiber.Map) error {
	data["Navigation"] = navigation.NewContext("Upload", "upload", "upload").
		AddBreadcrumb("Upload", Path, true)
	data["MaxRefImages"] = s.deps.Settings.UploadSettings().MaxRefImages
	data["IsAdmin"] = handler.IsAdmin(c)

	if _, ok := data["Form"]; !ok {
		data["Form"] = ingest.Metadata{}
	}

	return c.Status(status).Render("upload", data, handler.BaseLayout)
}

// Get renders the upload form.
func (s *Service) Get(c *fiber.Ctx) error {
	return s.view(c, fiber.StatusOK, fiber.Map{})
}

// ReadFile reads one multipart file.
func ReadFile(fh *multipart.FileHeader) (ingest.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return ingest.Upload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return ingest.Upload{}, err
	}

	return ingest.Upload{Name: fh.Filename, Data: data}, nil
}

// ReadFiles reads every non-empty file of field.
func ReadFiles(form *multipart.Form, field string) ([]ingest.Upload, error) {
	var out []ingest.Upload

	for _, fh := range form.File[field] {
		if fh.Size == 0 || fh.Filename == "" {
			continue
		}

		u, err := ReadFile(fh)
		if err != nil {
			return nil, err
		}

		out = append(out, u)
	}

	return out, nil
}

// Metadata reads the descriptive form fields. Status is left to the caller.
func Metadata(c *fiber.Ctx) ingest.Metadata {
	return ingest.Metadata{
		Title:       c.FormValue("title"),
		Author:      c.FormValue("author"),
		Prompt:      c.FormValue("prompt"),
		Description: c.FormValue("description"),
		Type:        c.FormValue("type"),
		Category:    string(models.ParseCategory(c.FormValue("category"))),
		Tags:        tag.Split(c.FormValue("tags")),
	}
}

// Post stores a submission. Its status follows the approval setting of its category.
func (s *Service) Post(c *fiber.Ctx) error {
	meta := Metadata(c)
	form := fiber.Map{"Form": meta}

	mp, err := c.MultipartForm()
	if err != nil {
		form["error"] = ErrNoImage.Error()
		return s.view(c, fiber.StatusBadRequest, form)
	}

	mains, err := ReadFiles(mp, "image")
	if err != nil {
		log.Error().Err(err).Msg("failed to read upload")
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read upload")
	}

	if len(mains) == 0 {
		form["error"] = ErrNoImage.Error()
		return s.view(c, fiber.StatusBadRequest, form)
	}

	refs, err := ReadFiles(mp, "ref_images")
	if err != nil {
		log.Error().Err(err).Msg("failed to read reference images")
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read upload")
	}

	img, err := s.deps.Ingest.Create(c.UserContext(), ingest.CreateInput{
		Main: mains[0],
		Meta: meta,
		Refs: refs,
	})
	if err != nil {
		status := handler.StatusOf(err)
		if status >= fiber.StatusInternalServerError {
			log.Error().Err(err).Msg("upload failed")
			form["error"] = "upload failed, please try again"
		} else {
			form["error"] = err.Error()
		}

		return s.view(c, status, form)
	}

	return c.Render("upload_success", fiber.Map{
		"Navigation": navigation.NewContext("Upload", "upload", "done"),
		"Image":      img,
		"Pending":    img.Status == models.StatusPending,
		"IsAdmin":    handler.IsAdmin(c),
	}, handler.BaseLayout)
}
