package admin

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/prompt-manager/prompt-manager/internal/db/controller/images"
	"github.com/prompt-manager/prompt-manager/internal/db/controller/tag"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/settings"
	"github.com/prompt-manager/prompt-manager/internal/web/handler"
)

var (
	// ErrNoSelection is returned by batch actions without images or tags.
	ErrNoSelection = errors.New("nothing selected")
	// ErrInvalidAction is returned by batch tag edits with an unknown action.
	ErrInvalidAction = errors.New("action must be add or remove")
	// ErrNothingToUpdate is returned by updates without changes.
	ErrNothingToUpdate = errors.New("nothing to update")
	// ErrInvalidTagID is returned by tag updates without a valid tag id.
	ErrInvalidTagID = errors.New("invalid tag id")
)

// Approve approves one pending image.
func (s *Service) Approve(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err == nil {
		err = images.Approve(s.deps.DB, id)
	}

	if err != nil {
		return s.fail(c, err, TabURL(TabPending))
	}

	log.Info().Uint64("image_id", id).Msg("image approved")

	return s.done(c, "image approved", TabURL(TabPending), nil)
}

// ApproveAll approves every pending image.
func (s *Service) ApproveAll(c *fiber.Ctx) error {
	n, err := images.ApproveAll(s.deps.DB)
	if err != nil {
		return s.fail(c, err, TabURL(TabPending))
	}

	log.Info().Int64("count", n).Msg("pending images approved")

	return s.done(c, fmt.Sprintf("%d images approved", n), TabURL(TabPending), fiber.Map{"count": n})
}

// Delete deletes one image with its references and files.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return s.fail(c, err, handler.AdminPath)
	}

	deleted, err := s.deps.Ingest.Delete(c.UserContext(), id)
	if err == nil && !deleted {
		err = images.ErrImageNotFound
	}

	if err != nil {
		return s.fail(c, err, handler.AdminPath)
	}

	return s.done(c, "image deleted", handler.AdminPath, nil)
}

// ToggleCategory moves an image to the gallery or the template collection.
func (s *Service) ToggleCategory(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err == nil {
		err = images.SetCategory(s.deps.DB, id, models.Category(c.Params("category")))
	}

	if err != nil {
		return s.fail(c, err, TabURL(TabApproved))
	}

	return s.done(c, "category changed to "+c.Params("category"), TabURL(TabApproved), nil)
}

type batchDelete struct {
	ImageIDs []uint64 `json:"image_ids"`
}

// BatchDelete deletes the images of a JSON id list.
func (s *Service) BatchDelete(c *fiber.Ctx) error {
	in := new(batchDelete)
	if err := c.BodyParser(in); err != nil {
		return handler.JSONMessage(c, fiber.StatusBadRequest, "invalid request body")
	}

	if len(in.ImageIDs) == 0 {
		return handler.JSONMessage(c, fiber.StatusBadRequest, ErrNoSelection.Error())
	}

	n, err := s.deps.Ingest.DeleteMany(c.UserContext(), in.ImageIDs)
	if err != nil {
		return handler.JSONError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "ok",
		"deleted": n,
		"message": fmt.Sprintf("%d images deleted", n),
	})
}

type batchTags struct {
	ImageIDs []uint64 `json:"image_ids"`
	TagIDs   []uint64 `json:"tag_ids"`
	Action   string   `json:"action"`
}

// BatchTags adds or removes tags on several images.
func (s *Service) BatchTags(c *fiber.Ctx) error {
	in := new(batchTags)
	if err := c.BodyParser(in); err != nil {
		return handler.JSONMessage(c, fiber.StatusBadRequest, "invalid request body")
	}

	if len(in.ImageIDs) == 0 || len(in.TagIDs) == 0 {
		return handler.JSONMessage(c, fiber.StatusBadRequest, ErrNoSelection.Error())
	}

	if in.Action != "add" && in.Action != "remove" {
		return handler.JSONMessage(c, fiber.StatusBadRequest, ErrInvalidAction.Error())
	}

	err := s.deps.DB.Transaction(func(tx *gorm.DB) error {
		return tag.BatchModify(tx, in.ImageIDs, in.TagIDs, in.Action == "remove")
	})
	if err != nil {
		return handler.JSONError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":   "ok",
		"modified": len(in.ImageIDs),
		"message":  fmt.Sprintf("tags updated on %d images", len(in.ImageIDs)),
	})
}

type tagUpdate struct {
	TagID       uint64 `json:"tag_id"`
	NewName     string `json:"new_name"`
	IsSensitive *bool  `json:"is_sensitive"`
}

func parseTagUpdate(c *fiber.Ctx) (*tagUpdate, error) {
	in := new(tagUpdate)

	if c.Is("json") {
		if err := c.BodyParser(in); err != nil {
			return nil, err
		}

		return in, nil
	}

	id, err := strconv.ParseUint(c.FormValue("tag_id"), 10, 64)
	if err != nil {
		return nil, err
	}

	in.TagID = id
	in.NewName = c.FormValue("new_name")

	if c.FormValue("is_sensitive") != "" {
		b := handler.FormBool(c, "is_sensitive")
		in.IsSensitive = &b
	}

	return in, nil
}

// UpdateTag renames a tag, merging it into an existing tag of the new name, and
// changes its sensitivity.
func (s *Service) UpdateTag(c *fiber.Ctx) error {
	next := TabURL(TabTags)

	in, err := parseTagUpdate(c)
	if err != nil || in.TagID == 0 {
		return s.fail(c, handler.BadRequest(ErrInvalidTagID), next)
	}

	name := strings.TrimSpace(in.NewName)

	if name == "" {
		if in.IsSensitive == nil {
			return s.fail(c, tag.ErrTagNameEmpty, next)
		}

		if err = tag.SetSensitive(s.deps.DB, in.TagID, *in.IsSensitive); err != nil {
			return s.fail(c, err, next)
		}

		return s.done(c, "tag updated", next, fiber.Map{"merged": false})
	}

	t, merged, err := tag.Update(s.deps.DB, in.TagID, name, in.IsSensitive)
	if err != nil {
		return s.fail(c, err, next)
	}

	msg := "tag updated"
	if merged {
		msg = "tag merged into " + t.Name
	}

	log.Info().Uint64("tag_id", in.TagID).Str("tag", t.Name).Bool("merged", merged).Msg(msg)

	return s.done(c, msg, next, fiber.Map{
		"merged": merged,
		"tag":    fiber.Map{"id": t.ID, "name": t.Name, "is_sensitive": t.IsSensitive},
	})
}

type globalToggles struct {
	AllowToggle      *bool `json:"allow_toggle"`
	ApprovalGallery  *bool `json:"approval_gallery"`
	ApprovalTemplate *bool `json:"approval_template"`
}

func parseGlobalToggles(c *fiber.Ctx) (*globalToggles, error) {
	in := new(globalToggles)

	if c.Is("json") {
		if err := c.BodyParser(in); err != nil {
			return nil, err
		}

		return in, nil
	}

	field := func(key string) *bool {
		if c.FormValue(key) == "" {
			return nil
		}

		b := handler.FormBool(c, key)

		return &b
	}

	in.AllowToggle = field("allow_toggle")
	in.ApprovalGallery = field("approval_gallery")
	in.ApprovalTemplate = field("approval_template")

	return in, nil
}

// GlobalSettings switches the sensitive toggle and the approval requirement per category.
// Absent fields are left unchanged.
func (s *Service) GlobalSettings(c *fiber.Ctx) error {
	in, err := parseGlobalToggles(c)
	if err != nil {
		return s.fail(c, handler.BadRequest(ErrNothingToUpdate), handler.AdminPath)
	}

	updates := []struct {
		key string
		val *bool
	}{
		{settings.KeyAllowSensitiveToggle, in.AllowToggle},
		{settings.KeyApprovalGallery, in.ApprovalGallery},
		{settings.KeyApprovalTemplate, in.ApprovalTemplate},
	}

	changed := 0

	for _, u := range updates {
		if u.val == nil {
			continue
		}

		if err = s.deps.Settings.SetBool(u.key, *u.val); err != nil {
			return s.fail(c, err, handler.AdminPath)
		}

		changed++
	}

	if changed == 0 {
		return s.fail(c, handler.BadRequest(ErrNothingToUpdate), handler.AdminPath)
	}

	v := s.deps.Settings.Cached()

	return s.done(c, "settings saved", handler.AdminPath, fiber.Map{
		"allow_toggle":      v.AllowSensitiveToggle,
		"approval_gallery":  v.ApprovalGallery,
		"approval_template": v.ApprovalTemplate,
	})
}
