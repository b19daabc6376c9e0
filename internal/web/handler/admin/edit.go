package admin

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/prompt-manager/prompt-manager/internal/db/controller/images"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/ingest"
	"github.com/prompt-manager/prompt-manager/internal/web/handler"
	"github.com/prompt-manager/prompt-manager/internal/web/handler/upload"
	"github.com/prompt-manager/prompt-manager/internal/web/navigation"
)

func editURL(id uint64) string {
	return handler.AdminPath + "/edit/" + strconv.FormatUint(id, 10)
}

func returnTab(img *models.Image) string {
	if img.Status == models.StatusApproved {
		return TabURL(TabApproved)
	}

	return TabURL(TabPending)
}

func (s *Service) renderEdit(c *fiber.Ctx, status int, img *models.Image, formErr error) error {
	maxRefs := s.deps.Settings.UploadSettings().MaxRefImages

	data := fiber.Map{
		"Navigation": navigation.NewContext("Edit", "admin", "edit").
			AddBreadcrumb("Admin", handler.AdminPath, false).
			AddBreadcrumb(img.Title, editURL(img.ID), true),
		"Image":        img,
		"Tags":         img.TagNames(),
		"MaxRefImages": maxRefs,
		"Remaining":    max(maxRefs-len(img.Refs), 0),
		"Next":         handler.SafeNext(c.Query("next", c.FormValue("next")), returnTab(img)),
		"IsAdmin":      true,
	}
	if formErr != nil {
		data["error"] = formErr.Error()
	}

	return c.Status(status).Render("admin/edit", data, handler.BaseLayout)
}

// Edit renders the edit form of one image.
func (s *Service) Edit(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	img, err := images.Get(s.deps.DB, id)
	if err != nil {
		return fiber.NewError(handler.StatusOf(err), err.Error())
	}

	return s.renderEdit(c, fiber.StatusOK, img, nil)
}

// editFiles reads the optional replacement main image and the added references.
func editFiles(c *fiber.Ctx) (*ingest.Upload, []ingest.Upload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		// url encoded forms carry no files
		return nil, nil, nil //nolint:nilerr
	}

	mains, err := upload.ReadFiles(form, "new_image")
	if err != nil {
		return nil, nil, err
	}

	refs, err := upload.ReadFiles(form, "add_refs")
	if err != nil {
		return nil, nil, err
	}

	var replacement *ingest.Upload
	if len(mains) > 0 {
		replacement = &mains[0]
	}

	return replacement, refs, nil
}

// formValues returns every value of a repeated form field.
func formValues(c *fiber.Ctx, key string) []string {
	if form, err := c.MultipartForm(); err == nil {
		return form.Value[key]
	}

	var out []string
	for _, v := range c.Context().PostArgs().PeekMulti(key) {
		out = append(out, string(v))
	}

	return out
}

// Update applies the edit form.
func (s *Service) Update(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	current, err := images.Get(s.deps.DB, id)
	if err != nil {
		return fiber.NewError(handler.StatusOf(err), err.Error())
	}

	replacement, refs, err := editFiles(c)
	if err != nil {
		return s.internal(c, err, "failed to read upload")
	}

	meta := upload.Metadata(c)
	meta.Status = c.FormValue("status")

	img, err := s.deps.Ingest.Update(c.UserContext(), ingest.UpdateInput{
		ID:           id,
		Main:         replacement,
		Meta:         meta,
		Refs:         refs,
		DeleteRefIDs: handler.ParseIDs(strings.Join(formValues(c, "deleted_ref_ids"), ",")),
	})
	if err != nil {
		status := handler.StatusOf(err)
		if status >= fiber.StatusInternalServerError {
			return s.internal(c, err, "failed to update image")
		}

		return s.renderEdit(c, status, current, err)
	}

	if handler.WantsJSON(c) {
		return c.JSON(fiber.Map{"status": "ok", "message": "image updated", "id": img.ID})
	}

	handler.Flash(c, "image updated", s.deps.Cfg.Webserver.Session.ExpiryTime)

	return c.Redirect(handler.SafeNext(c.FormValue("next"), returnTab(img)))
}
