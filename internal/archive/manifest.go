// Package archive exports every image with its files into a self contained ZIP and
// imports such an archive back.
//
// Layout: data.json at the root and every file under images/<basename>.
package archive

import (
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/prompt-manager/prompt-manager/internal/db/models"
)

const (
	// ManifestName is the name of the manifest inside the archive.
	ManifestName = "data.json"
	// FileDir is the directory holding every image file inside the archive.
	FileDir = "images"
)

// ErrNoManifest is returned when an archive has no data.json.
var ErrNoManifest = errors.New("archive has no " + ManifestName)

// FormatError reports an unusable archive. Nothing is imported.
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid archive: %v", e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Manifest is the content of data.json.
type Manifest struct {
	Images []Entry `json:"images"`
}

// Entry describes one image. Paths point into the archive and are omitted when the
// file was not available at export time.
type Entry struct {
	ID           uint64   `json:"id,omitempty"`
	Title        string   `json:"title"`
	Author       string   `json:"author"`
	Prompt       string   `json:"prompt"`
	Description  string   `json:"description"`
	Type         string   `json:"type"`
	Category     string   `json:"category"`
	Status       string   `json:"status"`
	ViewsCount   int64    `json:"views_count"`
	CopiesCount  int64    `json:"copies_count"`
	HeatScore    int64    `json:"heat_score"`
	CreatedAt    string   `json:"created_at"`
	Tags         []string `json:"tags"`
	ZipImagePath string   `json:"zip_image_path,omitempty"`
	ZipThumbPath string   `json:"zip_thumb_path,omitempty"`
	Refs         []string `json:"refs"`
}

// zipPath returns the archive name of a logical path.
func zipPath(logical string) string {
	return path.Join(FileDir, path.Base(logical))
}

func newEntry(img *models.Image) Entry {
	tags := img.TagNames()
	if tags == nil {
		tags = []string{}
	}

	return Entry{
		ID:          img.ID,
		Title:       img.Title,
		Author:      img.Author,
		Prompt:      img.Prompt,
		Description: img.Description,
		Type:        string(img.Type),
		Category:    string(img.Category),
		Status:      string(img.Status),
		ViewsCount:  img.ViewsCount,
		CopiesCount: img.CopiesCount,
		HeatScore:   img.HeatScore,
		CreatedAt:   img.CreatedAt.UTC().Format(time.RFC3339),
		Tags:        tags,
		Refs:        []string{},
	}
}

// createdAt parses the ISO-8601 timestamp of an entry. Older archives store it
// without a zone.
func (e *Entry) createdAt() time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, e.CreatedAt); err == nil {
			return t
		}
	}

	return time.Now()
}
