package images

import "errors"

var (
	// ErrImageNotFound is returned when an image id does not exist.
	ErrImageNotFound = errors.New("image not found")
	// ErrInvalidCategory is returned for categories other than gallery and template.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)
