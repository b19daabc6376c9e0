package models

import (
	"strings"
	"time"
)

// ImageType is the generation mode of an image.
type ImageType string

const (
	// TypeTxt2Img marks images generated from a prompt only.
	TypeTxt2Img ImageType = "txt2img"
	// TypeImg2Img marks images generated from a prompt and reference images.
	TypeImg2Img ImageType = "img2img"
)

// Category groups images into the public gallery or the template collection.
type Category string

const (
	// CategoryGallery is the default category.
	CategoryGallery Category = "gallery"
	// CategoryTemplate holds reusable prompt templates.
	CategoryTemplate Category = "template"
)

// Status is the review state of an image. The only transition is pending -> approved.
type Status string

const (
	// StatusPending waits for an admin.
	StatusPending Status = "pending"
	// StatusApproved is publicly visible.
	StatusApproved Status = "approved"
)

const (
	// HeatPerView is the heat weight of one view.
	HeatPerView = 1
	// HeatPerCopy is the heat weight of one prompt copy.
	HeatPerCopy = 10
)

// ParseImageType accepts the legacy "text2img" spelling and falls back to txt2img.
func ParseImageType(s string) ImageType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(TypeImg2Img):
		return TypeImg2Img
	default:
		return TypeTxt2Img
	}
}

// ParseCategory falls back to the gallery category for unknown values.
func ParseCategory(s string) Category {
	if Category(strings.TrimSpace(s)) == CategoryTemplate {
		return CategoryTemplate
	}

	return CategoryGallery
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryGallery || c == CategoryTemplate
}

// Image is one published or pending submission.
type Image struct {
	// ID is the unique identifier for the image.
	ID uint64 `gorm:"primaryKey"`
	// Title shown in the gallery. Together with Author it identifies an image on import.
	Title string `gorm:"size:100;not null;index:idx_image_title_author"`
	// Author of the image, may be empty.
	Author string `gorm:"size:50;index:idx_image_title_author"`
	// Prompt used to generate the image.
	Prompt string `gorm:"type:text;not null"`
	// Description is free text shown next to the prompt.
	Description string `gorm:"type:text"`
	// Type is txt2img or img2img.
	Type ImageType `gorm:"size:20;not null;default:'txt2img'"`
	// Category is gallery or template.
	Category Category `gorm:"size:20;not null;default:'gallery';index:idx_image_category_status"`
	// Status is pending or approved.
	Status Status `gorm:"size:20;not null;default:'pending';index:idx_image_category_status"`
	// FilePath is the logical asset store path of the main file.
	FilePath string `gorm:"size:500;not null;index"`
	// ThumbnailPath is the logical asset store path of the thumbnail.
	ThumbnailPath string `gorm:"size:500"`
	// LQIPData is the inline placeholder as a data url, empty when none could be generated.
	LQIPData string `gorm:"column:lqip_data;type:text"`
	// ViewsCount counts detail views.
	ViewsCount int64 `gorm:"not null;default:0"`
	// CopiesCount counts prompt copies.
	CopiesCount int64 `gorm:"not null;default:0"`
	// HeatScore is ViewsCount*HeatPerView + CopiesCount*HeatPerCopy.
	HeatScore int64 `gorm:"not null;default:0;index"`
	// CreatedAt is the upload time (managed by GORM).
	CreatedAt time.Time `gorm:"index"`
	// Tags attached through the image_tags table.
	Tags []Tag `gorm:"many2many:image_tags"`
	// Refs are the owned reference images ordered by Position.
	Refs []ReferenceImage `gorm:"foreignKey:ImageID"`
}

// RecomputeHeat derives HeatScore from the counters.
func (i *Image) RecomputeHeat() {
	i.HeatScore = i.ViewsCount*HeatPerView + i.CopiesCount*HeatPerCopy
}

// TagNames returns the names of the loaded tags.
func (i *Image) TagNames() []string {
	names := make([]string, 0, len(i.Tags))
	for _, t := range i.Tags {
		names = append(names, t.Name)
	}

	return names
}

// IsSensitive reports whether any loaded tag is sensitive.
func (i *Image) IsSensitive() bool {
	for _, t := range i.Tags {
		if t.IsSensitive {
			return true
		}
	}

	return false
}
