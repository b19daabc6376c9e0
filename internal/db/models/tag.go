package models

// Tag is a globally unique label.
type Tag struct {
	// ID is the unique identifier for the tag.
	ID uint64 `gorm:"primaryKey"`
	// Name is matched case sensitive.
	Name string `gorm:"size:100;not null;uniqueIndex"`
	// IsSensitive hides tagged images from visitors who did not opt in.
	IsSensitive bool `gorm:"not null;default:false"`
}

// ImageTag is a row of the image/tag association table.
type ImageTag struct {
	ImageID uint64 `gorm:"primaryKey;autoIncrement:false"`
	TagID   uint64 `gorm:"primaryKey;autoIncrement:false"`
}

// TableName pins the join table shared with Image.Tags.
func (ImageTag) TableName() string {
	return "image_tags"
}
