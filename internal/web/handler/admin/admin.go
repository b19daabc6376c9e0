// Package admin serves the moderation dashboard and its actions.
//
// Every route lives below /admin and is guarded by the auth middleware. Actions answer
// JSON requests with JSON and form posts with a flash message and a redirect.
package admin

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/prompt-manager/prompt-manager/internal/db/controller/images"
	"github.com/prompt-manager/prompt-manager/internal/db/controller/tag"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/web/handler"
	"github.com/prompt-manager/prompt-manager/internal/web/navigation"
)

// Dashboard tabs.
const (
	TabPending  = "pending"
	TabApproved = "approved"
	TabTags     = "tags"
	TabData     = "data"
)

const (
	minPerPage = 6
	maxPerPage = 100
)

// Service is the admin handler service.
type Service struct {
	handler.Service
	deps *handler.Deps
}

// Handler is the admin handler.
var Handler = Service{}

// Init initializes the admin handler.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() {
		return errors.New(handler.ErrNilDepsFatalLogMsg)
	}

	s.deps = deps

	app.Route(handler.AdminPath, func(router fiber.Router) {
		router.Get(handler.RootPath, s.Dashboard)

		router.Post("/approve-all", s.ApproveAll)
		router.Post("/approve/:id", s.Approve)
		router.Post("/delete/:id", s.Delete)
		router.Post("/toggle-category/:id/:category", s.ToggleCategory)

		router.Post("/batch/delete", s.BatchDelete)
		router.Post("/batch/tags", s.BatchTags)

		router.Get("/edit/:id", s.Edit)
		router.Post("/edit/:id", s.Update)

		router.Post("/tag/update", s.UpdateTag)
		router.Post("/setting/global", s.GlobalSettings)

		router.Get("/settings", s.Settings)
		router.Post("/settings", s.SaveSettings)

		router.Post("/export-zip", s.Export)
		router.Post("/import-zip", s.Import)
	})

	return nil
}

// TabURL links a dashboard tab.
func TabURL(tab string) string {
	return handler.AdminPath + "?tab=" + tab
}

func clampPerPage(n int) int {
	return min(max(n, minPerPage), maxPerPage)
}

// Dashboard renders the tabbed admin page.
func (s *Service) Dashboard(c *fiber.Ctx) error {
	v := s.deps.Settings.Snapshot()
	db := s.deps.DB

	tab := c.Query("tab", TabPending)
	search := strings.TrimSpace(c.Query("q"))
	perPage := clampPerPage(c.QueryInt("per_page", v.AdminPerPage))

	pending, err := images.List(db, images.Query{
		Status:           models.StatusPending,
		IncludeSensitive: true,
		Sort:             images.SortOldest,
	})
	if err != nil {
		return s.internal(c, err, "failed to list pending images")
	}

	approved, err := images.List(db, images.Query{
		Status:           models.StatusApproved,
		Search:           search,
		IncludeSensitive: true,
		Sort:             images.SortDate,
		Page:             c.QueryInt("page", 1),
		PerPage:          perPage,
	})
	if err != nil {
		return s.internal(c, err, "failed to list approved images")
	}

	tags, err := tag.All(db)
	if err != nil {
		return s.internal(c, err, "failed to list tags")
	}

	stats, err := images.Count(db)
	if err != nil {
		return s.internal(c, err, "failed to count images")
	}

	nav := navigation.NewContext("Admin", "admin", tab).
		AddBreadcrumb("Admin", handler.AdminPath, true).
		AddTab(TabPending, "Pending", TabURL(TabPending), stats.Pending).
		AddTab(TabApproved, "Approved", TabURL(TabApproved), stats.Approved).
		AddTab(TabTags, "Tags", TabURL(TabTags), stats.Tags).
		AddTab(TabData, "Data", TabURL(TabData), 0)

	if !nav.HasTab(tab) {
		nav.ActivePage = TabPending
	}

	return c.Render("admin/dashboard", fiber.Map{
		"Navigation": nav,
		"Pending":    pending,
		"Approved":   approved,
		"Tags":       tags,
		"Stats":      stats,
		"Search":     search,
		"PerPage":    perPage,
		"Settings":   v,
		"Flash":      handler.TakeFlash(c, s.deps.Cfg.Webserver.Session.ExpiryTime),
		"IsAdmin":    true,
		"PrevURL":    approvedPageURL(search, perPage, approved.Page-1),
		"NextURL":    approvedPageURL(search, perPage, approved.Page+1),
		"Categories": []models.Category{models.CategoryGallery, models.CategoryTemplate},
	}, handler.BaseLayout)
}

// done answers a successful action.
func (s *Service) done(c *fiber.Ctx, msg, next string, extra fiber.Map) error {
	if handler.WantsJSON(c) {
		out := fiber.Map{"status": "ok", "message": msg}
		for k, v := range extra {
			out[k] = v
		}

		return c.JSON(out)
	}

	handler.Flash(c, msg, s.deps.Cfg.Webserver.Session.ExpiryTime)

	return c.Redirect(handler.SafeNext(c.FormValue("next"), next))
}

// fail answers a failed action.
func (s *Service) fail(c *fiber.Ctx, err error, next string) error {
	if handler.WantsJSON(c) {
		return handler.JSONError(c, err)
	}

	msg := err.Error()
	if handler.StatusOf(err) >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("admin action failed")

		msg = "action failed, see the log for details"
	}

	handler.Flash(c, msg, s.deps.Cfg.Webserver.Session.ExpiryTime)

	return c.Redirect(handler.SafeNext(c.FormValue("next"), next))
}

func (s *Service) internal(c *fiber.Ctx, err error, msg string) error {
	log.Error().Err(err).Msg(msg)

	return fiber.NewError(fiber.StatusInternalServerError, msg)
}

// idParam returns the positive :id route parameter.
func idParam(c *fiber.Ctx) (uint64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, images.ErrImageNotFound
	}

	return uint64(id), nil
}
