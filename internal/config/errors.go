package config

import (
	"errors"
)

var (
	// ErrEmptyURL error if config webserver.URL is empty.
	ErrEmptyURL = errors.New("toml config webserver.url can not be empty")

	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("toml config webserver.port listening port can not be 0")

	// ErrUnknownDBEngine error if config db.gormEngine is not supported.
	ErrUnknownDBEngine = errors.New("toml config db.gormEngine must be one of sqlite, mysql, postgres")

	// ErrUnknownStorageType error if config storage.type is not supported.
	ErrUnknownStorageType = errors.New("toml config storage.type must be one of local, s3")

	// ErrEmptyUploadFolder error if local storage has no upload folder.
	ErrEmptyUploadFolder = errors.New("toml config storage.uploadFolder can not be empty")

	// ErrEmptyBucket error if s3 storage has no bucket.
	ErrEmptyBucket = errors.New("toml config storage.s3.bucket can not be empty")
)
