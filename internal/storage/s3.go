package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/prompt-manager/prompt-manager/internal/config"
)

const noSuchKey = "NoSuchKey"

// S3 stores files as objects of one bucket.
//
// S3 has no create-if-absent, so Save and Put check for the key and then upload it.
// Writers of one process never race on a key, they claim it first. Two processes
// sharing a bucket can still both see a key as free and the later upload wins; the
// random names of main and reference files make that practically unreachable.
type S3 struct {
	client   *minio.Client
	cfg      config.S3
	base     string // public url prefix without trailing slash
	inflight claims
}

// NewS3 connects to an S3 compatible endpoint. An http(s) endpoint decides SSL by its scheme.
func NewS3(cfg config.S3) (*S3, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, &Error{Op: "init", Path: endpoint, Err: err}
		}

		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, &Error{Op: "init", Path: endpoint, Err: err}
	}

	base := strings.TrimSuffix(cfg.Domain, "/")
	if base == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}

		base = fmt.Sprintf("%s://%s/%s", scheme, endpoint, cfg.Bucket)
	}

	return &S3{client: client, cfg: cfg, base: base}, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (s *S3) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return &Error{Op: "bucket", Path: s.cfg.Bucket, Err: err}
	}

	if exists {
		return nil
	}

	if err = s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
		return &Error{Op: "bucket", Path: s.cfg.Bucket, Err: err}
	}

	return nil
}

func (s *S3) put(ctx context.Context, key string, data []byte) error {
	opts := minio.PutObjectOptions{ContentType: mime.TypeByExtension(path.Ext(key))}

	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return &Error{Op: "put", Path: key, Err: err}
	}

	return nil
}

// putAbsent uploads data under key unless the key exists. key must be claimed.
func (s *S3) putAbsent(ctx context.Context, key string, data []byte) (bool, error) {
	exists, err := s.Exists(ctx, key)
	if err != nil || exists {
		return false, err
	}

	return true, s.put(ctx, key, data)
}

// Save implements Store.
func (s *S3) Save(ctx context.Context, data []byte, name string) (string, error) {
	clean, err := validName(name)
	if err != nil {
		return "", err
	}

	for n := range maxSaveAttempts {
		key := candidate(clean, n)
		if !s.inflight.claim(key) {
			continue
		}

		written, err := s.putAbsent(ctx, key, data)
		s.inflight.release(key)

		if err != nil {
			return "", err
		}

		if written {
			return key, nil
		}
	}

	return "", &Error{Op: "save", Path: clean, Err: ErrNoFreeName}
}

// Put implements Store. A key another writer of this process is uploading counts as existing.
func (s *S3) Put(ctx context.Context, logical string, data []byte) (bool, error) {
	key, err := validName(logical)
	if err != nil {
		return false, err
	}

	if !s.inflight.claim(key) {
		return false, nil
	}
	defer s.inflight.release(key)

	return s.putAbsent(ctx, key, data)
}

// Open implements Store.
func (s *S3) Open(ctx context.Context, logical string) (io.ReadCloser, error) {
	key := Clean(logical)
	if IsRemote(logical) || key == "" {
		return nil, &Error{Op: "open", Path: logical, Err: ErrNotExist}
	}

	// GetObject is lazy, stat first so a missing key surfaces here
	if ok, err := s.Exists(ctx, key); err != nil {
		return nil, err
	} else if !ok {
		return nil, &Error{Op: "open", Path: key, Err: ErrNotExist}
	}

	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &Error{Op: "open", Path: key, Err: err}
	}

	return obj, nil
}

// Exists implements Store.
func (s *S3) Exists(ctx context.Context, logical string) (bool, error) {
	key := Clean(logical)
	if IsRemote(logical) || key == "" {
		return false, nil
	}

	_, err := s.client.StatObject(ctx, s.cfg.Bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}

	if minio.ToErrorResponse(err).Code == noSuchKey {
		return false, nil
	}

	return false, &Error{Op: "stat", Path: key, Err: err}
}

// Remove implements Store. Deleting a missing object succeeds on S3.
func (s *S3) Remove(ctx context.Context, logical string) error {
	key := Clean(logical)
	if IsRemote(logical) || key == "" {
		return nil
	}

	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return &Error{Op: "remove", Path: key, Err: err}
	}

	return nil
}

// Resolve implements Store.
func (s *S3) Resolve(logical string) string {
	return s.URL(logical)
}

// URL implements Store. Thumbnails get the configured style suffix.
func (s *S3) URL(logical string) string {
	if logical == "" || IsRemote(logical) {
		return logical
	}

	key := Clean(logical)
	u := s.base + "/" + key

	if s.cfg.ThumbSuffix != "" && strings.Contains(key, ThumbSuffix+".") {
		u += s.cfg.ThumbSuffix
	}

	return u
}
