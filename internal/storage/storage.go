// Package storage maps logical asset paths to bytes on the local file system or in
// an S3 compatible bucket.
//
// A logical path is a flat file name relative to the store root, e.g. "3f2a.jpg".
// Values starting with http:// or https:// are already remote: they are resolved
// unchanged and never deleted.
package storage

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/prompt-manager/prompt-manager/internal/uniuri"
)

// ThumbSuffix is appended to the stem of a main file to name its thumbnail.
const ThumbSuffix = "_thumb"

// maxSaveAttempts bounds the collision retries of Save.
const maxSaveAttempts = 8

// Store is an asset store backend.
type Store interface {
	// Save writes data under a free name derived from name and returns the logical path.
	// An existing file is never overwritten.
	Save(ctx context.Context, data []byte, name string) (string, error)
	// Put writes data under exactly logical unless it exists. written reports whether it wrote.
	Put(ctx context.Context, logical string, data []byte) (written bool, err error)
	// Open returns the content of logical.
	Open(ctx context.Context, logical string) (io.ReadCloser, error)
	// Exists reports whether logical is present. Remote paths are never present.
	Exists(ctx context.Context, logical string) (bool, error)
	// Remove deletes logical. Missing files and remote paths are not an error.
	Remove(ctx context.Context, logical string) error
	// Resolve returns the absolute location: a file path or an object url.
	Resolve(logical string) string
	// URL returns the public url of logical.
	URL(logical string) string
}

// IsRemote reports whether p is an absolute http(s) url.
func IsRemote(p string) bool {
	lower := strings.ToLower(p)

	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Clean reduces p to a logical path: legacy values like "/static/uploads/a.jpg" or
// "uploads/a.jpg" become "a.jpg". Remote urls are returned unchanged.
func Clean(p string) string {
	if p == "" || IsRemote(p) {
		return p
	}

	base := path.Base(filepath.ToSlash(p))
	if base == "." || base == "/" || base == ".." {
		return ""
	}

	return base
}

// ThumbName returns the thumbnail name for a main file: "a.png" -> "a_thumb.jpg".
func ThumbName(logical string) string {
	name := Clean(logical)
	stem := strings.TrimSuffix(name, path.Ext(name))

	return stem + ThumbSuffix + ".jpg"
}

// candidate returns the name for attempt n of Save, the plain name first.
func candidate(name string, n int) string {
	if n == 0 {
		return name
	}

	ext := path.Ext(name)

	return strings.TrimSuffix(name, ext) + "_" + uniuri.Suffix() + ext
}

// validName is used by Save and Put to refuse names that escape the root.
func validName(name string) (string, error) {
	if IsRemote(name) {
		return "", &Error{Op: "save", Path: name, Err: ErrRemotePath}
	}

	clean := Clean(name)
	if clean == "" {
		return "", &Error{Op: "save", Path: name, Err: ErrInvalidName}
	}

	return clean, nil
}
