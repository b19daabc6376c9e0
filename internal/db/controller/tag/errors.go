package tag

import "errors"

var (
	// ErrTagNotFound is returned when a tag id does not exist.
	ErrTagNotFound = errors.New("tag not found")
	// ErrTagNameEmpty is returned when a tag would be renamed to an empty name.
	ErrTagNameEmpty = errors.New("tag name cannot be empty")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)
