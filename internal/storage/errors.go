package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidName is returned for names without a usable base name.
	ErrInvalidName = errors.New("invalid file name")
	// ErrRemotePath is returned when writing to a remote url.
	ErrRemotePath = errors.New("remote paths are read only")
	// ErrNotExist is returned by Open for missing files.
	ErrNotExist = errors.New("file does not exist")
	// ErrNoFreeName is returned when Save could not find a free name.
	ErrNoFreeName = errors.New("no free file name")
)

// Error is an I/O failure of the asset store.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
