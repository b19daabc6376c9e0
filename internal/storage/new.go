package storage

import (
	"github.com/spf13/afero"

	"github.com/prompt-manager/prompt-manager/internal/config"
)

// New builds the backend selected by cfg.Type.
func New(cfg config.Storage) (Store, error) {
	if cfg.Type == config.StorageS3 {
		return NewS3(cfg.S3)
	}

	return NewLocal(afero.NewOsFs(), cfg.UploadFolder, cfg.PublicPrefix)
}
