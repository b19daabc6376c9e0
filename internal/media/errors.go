package media

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned when bytes can not be decoded as an image.
// Callers treat it as "not applicable" rather than a failure.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// EncodeError is a failure while producing a derivative.
type EncodeError struct {
	Op  string // normalize, thumbnail or placeholder
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("media %s: %v", e.Op, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
