package ingest

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound is returned when the image to update does not exist.
	ErrNotFound = errors.New("image not found")
	// ErrMissingImage is returned when a create carries no main image.
	ErrMissingImage = errors.New("missing main image")
	// ErrUndecodable is returned when the main image can not be decoded.
	ErrUndecodable = errors.New("main image can not be decoded")
	// ErrDBNil is returned when the service has no database.
	ErrDBNil = errors.New("database connection is nil")
)

// ValidationError rejects an operation before anything is written.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Err.Error()
	}

	return "validation: " + e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError

	return errors.As(err, &v)
}

// fromValidator converts validator field errors into a ValidationError naming every failed field.
func fromValidator(err error) error {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return &ValidationError{Err: err}
	}

	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field()+" ("+f.Tag()+")")
	}

	return &ValidationError{Field: strings.Join(names, ", "), Err: errors.New("invalid value")} //nolint:err113
}
