package models

// ReferenceImage is an auxiliary input image owned by an Image.
type ReferenceImage struct {
	// ID is the unique identifier for the reference.
	ID uint64 `gorm:"primaryKey"`
	// ImageID is the owning image. Position is unique per owner.
	ImageID uint64 `gorm:"not null;uniqueIndex:idx_ref_image_position"`
	// FilePath is the logical asset store path, empty for placeholders.
	FilePath string `gorm:"size:500"`
	// Position defines the display order, contiguous from 0.
	Position int `gorm:"not null;default:0;uniqueIndex:idx_ref_image_position"`
	// IsPlaceholder marks a slot without a real file.
	IsPlaceholder bool `gorm:"not null;default:false"`
}
