package web

import (
	"html/template"
	"strings"
	"time"

	"github.com/prompt-manager/prompt-manager/internal/config"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/storage"
)

// templateFuncs returns the helpers shared by every template.
func templateFuncs(cfg *config.Config, store storage.Store) map[string]any {
	return map[string]any{
		"siteTitle": func() string { return cfg.Title },
		"asset":     store.URL,
		"preview": func(v any, useThumb bool) string {
			img := image(v)
			if img == nil {
				return ""
			}

			if useThumb && img.ThumbnailPath != "" {
				return store.URL(img.ThumbnailPath)
			}

			return store.URL(img.FilePath)
		},
		"lqip": func(data string) template.URL {
			if !strings.HasPrefix(data, "data:image/") {
				return ""
			}

			return template.URL(data) //nolint:gosec // generated by the media package
		},
		"tags": func(v any) string {
			img := image(v)
			if img == nil {
				return ""
			}

			return strings.Join(img.TagNames(), ", ")
		},
		"date": func(t time.Time) string {
			return t.Format("2006-01-02 15:04")
		},
		"join": strings.Join,
	}
}

// image accepts both range values and pointers.
func image(v any) *models.Image {
	switch img := v.(type) {
	case models.Image:
		return &img
	case *models.Image:
		return img
	default:
		return nil
	}
}
