package handler

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/prompt-manager/prompt-manager/internal/archive"
	"github.com/prompt-manager/prompt-manager/internal/config"
	"github.com/prompt-manager/prompt-manager/internal/ingest"
	"github.com/prompt-manager/prompt-manager/internal/settings"
	"github.com/prompt-manager/prompt-manager/internal/storage"
)

// Deps are the services shared by every handler.
type Deps struct {
	Cfg      *config.Config
	DB       *gorm.DB
	Store    storage.Store
	Settings *settings.Service
	Ingest   *ingest.Service
	Exporter *archive.Exporter
	Importer *archive.Importer
}

// Valid reports whether every dependency is set.
func (d *Deps) Valid() bool {
	return d != nil && d.Cfg != nil && d.DB != nil && d.Store != nil &&
		d.Settings != nil && d.Ingest != nil && d.Exporter != nil && d.Importer != nil
}

// Service is the interface for a web handler service.
type Service interface {
	Init(app *fiber.App, deps *Deps) error
}
