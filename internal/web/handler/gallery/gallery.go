// Package gallery serves the public listing pages, the JSON listing API and the view/copy counters.
package gallery

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/prompt-manager/prompt-manager/internal/db/controller/images"
	"github.com/prompt-manager/prompt-manager/internal/db/controller/tag"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/web/handler"
	"github.com/prompt-manager/prompt-manager/internal/web/navigation"
)

const (
	// TemplatesPath lists the template collection.
	TemplatesPath = handler.RootPath + "templates"
	// APIGalleryPath lists approved gallery images as JSON.
	APIGalleryPath = "/api/gallery"
	// APITemplatesPath lists approved templates as JSON.
	APITemplatesPath = "/api/templates"
	// StatsPath is the prefix of the counter endpoints.
	StatsPath = "/api/stats"
)

// Service is the gallery handler service.
type Service struct {
	handler.Service
	deps *handler.Deps
}

// Handler is the gallery handler.
var Handler = Service{}

// Init initializes the gallery handler.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() {
		return errors.New(handler.ErrNilDepsFatalLogMsg)
	}

	s.deps = deps

	app.Get(handler.RootPath, s.page("", "gallery"))
	app.Get(TemplatesPath, s.page(models.CategoryTemplate, "templates"))

	app.Get(APIGalleryPath, s.api(models.CategoryGallery))
	app.Get(APITemplatesPath, s.api(models.CategoryTemplate))

	app.Route(StatsPath, func(router fiber.Router) {
		router.Post("/view/:id", s.View)
		router.Post("/copy/:id", s.Copy)
	})

	return nil
}

// typeFilter maps the type query parameter to a filter, empty for "all" and unknown values.
func typeFilter(raw string) models.ImageType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "txt2img", "text2img":
		return models.TypeTxt2Img
	case string(models.TypeImg2Img):
		return models.TypeImg2Img
	default:
		return ""
	}
}

func sortOrder(raw string) string {
	switch raw {
	case images.SortHot, images.SortRandom:
		return raw
	default:
		return images.SortDate
	}
}

func (s *Service) page(category models.Category, section string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v := s.deps.Settings.Snapshot()
		showSensitive := handler.ShowSensitive(c, v.AllowSensitiveToggle)

		q := images.Query{
			Status:           models.StatusApproved,
			Category:         category,
			Type:             typeFilter(c.Query("type")),
			Tag:              strings.TrimSpace(c.Query("tag")),
			Search:           strings.TrimSpace(c.Query("q")),
			IncludeSensitive: showSensitive,
			Sort:             sortOrder(c.Query("sort")),
			Page:             c.QueryInt("page", 1),
			PerPage:          v.ItemsPerPage,
		}

		page, err := images.List(s.deps.DB, q)
		if err != nil {
			log.Error().Err(err).Str("section", section).Msg("failed to list images")
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list images")
		}

		tags, err := tag.ListWithCounts(s.deps.DB, tag.Filter{
			Status:           models.StatusApproved,
			Category:         category,
			IncludeSensitive: showSensitive,
		})
		if err != nil {
			log.Error().Err(err).Str("section", section).Msg("failed to list tags")
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list tags")
		}

		title := "Gallery"
		if category == models.CategoryTemplate {
			title = "Templates"
		}

		nav := navigation.NewContext(title, section, section).
			AddBreadcrumb(title, c.Path(), true)

		return c.Render("gallery", fiber.Map{
			"Navigation":      nav,
			"Page":            page,
			"Tags":            tags,
			"Query":           q,
			"TypeParam":       string(q.Type),
			"ShowSensitive":   showSensitive,
			"AllowToggle":     v.AllowSensitiveToggle,
			"UseThumbnail":    v.UseThumbnailInPreview,
			"IsAdmin":         handler.IsAdmin(c),
			"Category":        string(category),
			"BasePath":        c.Path(),
			"PrevURL":         pageURL(c.Path(), &q, page.Page-1),
			"NextURL":         pageURL(c.Path(), &q, page.Page+1),
			"SensitiveCookie": handler.SensitiveCookie,
		}, handler.BaseLayout)
	}
}

// pageURL links another page of the same listing.
func pageURL(base string, q *images.Query, page int) string {
	v := url.Values{}
	if q.Tag != "" {
		v.Set("tag", q.Tag)
	}

	if q.Search != "" {
		v.Set("q", q.Search)
	}

	if q.Type != "" {
		v.Set("type", string(q.Type))
	}

	if q.Sort != images.SortDate {
		v.Set("sort", q.Sort)
	}

	v.Set("page", strconv.Itoa(page))

	return base + "?" + v.Encode()
}

// View counts one detail view. Unknown ids are ignored.
func (s *Service) View(c *fiber.Ctx) error {
	return s.count(c, images.IncrementViews)
}

// Copy counts one prompt copy. Unknown ids are ignored.
func (s *Service) Copy(c *fiber.Ctx) error {
	return s.count(c, images.IncrementCopies)
}

func (s *Service) count(c *fiber.Ctx, bump func(*gorm.DB, uint64) (*models.Image, error)) error {
	id, err := c.ParamsInt("id")
	if err == nil && id > 0 {
		if _, err = bump(s.deps.DB, uint64(id)); err != nil && !errors.Is(err, images.ErrImageNotFound) {
			log.Error().Err(err).Int("image_id", id).Msg("failed to update counter")
		}
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
