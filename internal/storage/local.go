package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Local stores files in a directory of an afero file system.
type Local struct {
	fs     afero.Fs
	root   string
	prefix string
}

// NewLocal returns a Local store rooted at root, served under publicPrefix.
// The root directory is created when missing.
func NewLocal(fsys afero.Fs, root, publicPrefix string) (*Local, error) {
	if err := fsys.MkdirAll(root, 0o755); err != nil { //nolint:mnd
		return nil, &Error{Op: "init", Path: root, Err: err}
	}

	return &Local{fs: fsys, root: root, prefix: strings.TrimSuffix(publicPrefix, "/")}, nil
}

// Root is the directory files are stored in.
func (l *Local) Root() string {
	return l.root
}

func (l *Local) path(logical string) string {
	return filepath.Join(l.root, Clean(logical))
}

// create writes data to a new file, failing with fs.ErrExist if it exists.
func (l *Local) create(name string, data []byte) error {
	f, err := l.fs.OpenFile(l.path(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:mnd
	if err != nil {
		return err //nolint:wrapcheck
	}

	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		_ = l.fs.Remove(l.path(name))
	}

	return err //nolint:wrapcheck
}

// Save implements Store.
func (l *Local) Save(_ context.Context, data []byte, name string) (string, error) {
	clean, err := validName(name)
	if err != nil {
		return "", err
	}

	for n := range maxSaveAttempts {
		try := candidate(clean, n)

		err = l.create(try, data)
		if err == nil {
			return try, nil
		}

		if !errors.Is(err, fs.ErrExist) {
			return "", &Error{Op: "save", Path: try, Err: err}
		}
	}

	return "", &Error{Op: "save", Path: clean, Err: ErrNoFreeName}
}

// Put implements Store.
func (l *Local) Put(_ context.Context, logical string, data []byte) (bool, error) {
	clean, err := validName(logical)
	if err != nil {
		return false, err
	}

	err = l.create(clean, data)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrExist):
		return false, nil
	default:
		return false, &Error{Op: "put", Path: clean, Err: err}
	}
}

// Open implements Store.
func (l *Local) Open(_ context.Context, logical string) (io.ReadCloser, error) {
	if IsRemote(logical) || Clean(logical) == "" {
		return nil, &Error{Op: "open", Path: logical, Err: ErrNotExist}
	}

	f, err := l.fs.Open(l.path(logical))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = ErrNotExist
		}

		return nil, &Error{Op: "open", Path: logical, Err: err}
	}

	return f, nil
}

// Exists implements Store.
func (l *Local) Exists(_ context.Context, logical string) (bool, error) {
	if IsRemote(logical) || Clean(logical) == "" {
		return false, nil
	}

	ok, err := afero.Exists(l.fs, l.path(logical))
	if err != nil {
		return false, &Error{Op: "stat", Path: logical, Err: err}
	}

	return ok, nil
}

// Remove implements Store.
func (l *Local) Remove(_ context.Context, logical string) error {
	if IsRemote(logical) || Clean(logical) == "" {
		return nil
	}

	err := l.fs.Remove(l.path(logical))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{Op: "remove", Path: logical, Err: err}
	}

	return nil
}

// Resolve implements Store.
func (l *Local) Resolve(logical string) string {
	if IsRemote(logical) {
		return logical
	}

	return l.path(logical)
}

// URL implements Store.
func (l *Local) URL(logical string) string {
	if logical == "" || IsRemote(logical) {
		return logical
	}

	return path.Join("/", l.prefix, Clean(logical))
}
