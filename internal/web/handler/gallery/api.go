package gallery

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/prompt-manager/prompt-manager/internal/db/controller/images"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/storage"
)

const (
	defaultAPIPerPage = 20
	maxAPIPerPage     = 100
)

// Item is one image of the JSON listing.
type Item struct {
	ID            uint64 `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Prompt        string `json:"prompt"`
	Description   string `json:"description"`
	Type          string `json:"type"`
	Category      string `json:"category"`
	Status        string `json:"status"`
	FilePath      string `json:"file_path"`
	ThumbnailPath string `json:"thumbnail_path"`
	LQIPData      string `json:"lqip_data,omitempty"`
	ViewsCount    int64  `json:"views_count"`
	CopiesCount   int64  `json:"copies_count"`
	HeatScore     int64  `json:"heat_score"`
	CreatedAt     string `json:"created_at"`
	Tags          []Tag  `json:"tags"`
	Refs          []Ref  `json:"refs"`
}

// Tag is a tag of an Item.
type Tag struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	IsSensitive bool   `json:"is_sensitive"`
}

// Ref is a reference image of an Item.
type Ref struct {
	ID            uint64 `json:"id"`
	FilePath      string `json:"file_path"`
	Position      int    `json:"position"`
	IsPlaceholder bool   `json:"is_placeholder"`
}

// Listing is the JSON listing response.
type Listing struct {
	CurrentPage int    `json:"current_page"`
	Pages       int    `json:"pages"`
	Total       int64  `json:"total"`
	Data        []Item `json:"data"`
}

// NewItem converts img with public urls from store.
func NewItem(img *models.Image, store storage.Store) Item {
	thumb := img.ThumbnailPath
	if thumb == "" {
		thumb = img.FilePath
	}

	it := Item{
		ID:            img.ID,
		Title:         img.Title,
		Author:        img.Author,
		Prompt:        img.Prompt,
		Description:   img.Description,
		Type:          string(img.Type),
		Category:      string(img.Category),
		Status:        string(img.Status),
		FilePath:      store.URL(img.FilePath),
		ThumbnailPath: store.URL(thumb),
		LQIPData:      img.LQIPData,
		ViewsCount:    img.ViewsCount,
		CopiesCount:   img.CopiesCount,
		HeatScore:     img.HeatScore,
		CreatedAt:     img.CreatedAt.UTC().Format(time.RFC3339),
		Tags:          make([]Tag, 0, len(img.Tags)),
		Refs:          make([]Ref, 0, len(img.Refs)),
	}

	for _, t := range img.Tags {
		it.Tags = append(it.Tags, Tag{ID: t.ID, Name: t.Name, IsSensitive: t.IsSensitive})
	}

	for _, r := range img.Refs {
		ref := Ref{ID: r.ID, Position: r.Position, IsPlaceholder: r.IsPlaceholder}
		if r.FilePath != "" {
			ref.FilePath = store.URL(r.FilePath)
		}

		it.Refs = append(it.Refs, ref)
	}

	return it
}

// api lists approved images of category, newest first. Without page or per_page every
// image is returned in one page.
func (s *Service) api(category models.Category) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := images.Query{
			Status:           models.StatusApproved,
			Category:         category,
			IncludeSensitive: true,
			Sort:             images.SortDate,
		}

		if c.Query("page") != "" || c.Query("per_page") != "" {
			q.Page = max(c.QueryInt("page", 1), 1)
			q.PerPage = min(max(c.QueryInt("per_page", defaultAPIPerPage), 1), maxAPIPerPage)
		}

		page, err := images.List(s.deps.DB, q)
		if err != nil {
			log.Error().Err(err).Str("category", string(category)).Msg("failed to list images")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "failed to list images"})
		}

		out := Listing{
			CurrentPage: page.Page,
			Pages:       page.Pages,
			Total:       page.Total,
			Data:        make([]Item, 0, len(page.Items)),
		}

		for i := range page.Items {
			out.Data = append(out.Data, NewItem(&page.Items[i], s.deps.Store))
		}

		return c.JSON(out)
	}
}
