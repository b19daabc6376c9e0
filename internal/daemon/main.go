// Package daemon wires the database, asset store and services and runs the web service.
package daemon

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	sessionmysql "github.com/gofiber/storage/mysql/v2"
	sessionpostgres "github.com/gofiber/storage/postgres/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/prompt-manager/prompt-manager/internal/archive"
	"github.com/prompt-manager/prompt-manager/internal/config"
	"github.com/prompt-manager/prompt-manager/internal/db/dsn"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/ingest"
	gormlog "github.com/prompt-manager/prompt-manager/internal/logger/adapter/gorm"
	"github.com/prompt-manager/prompt-manager/internal/maintenance"
	"github.com/prompt-manager/prompt-manager/internal/settings"
	"github.com/prompt-manager/prompt-manager/internal/storage"
	"github.com/prompt-manager/prompt-manager/internal/web"
	"github.com/prompt-manager/prompt-manager/internal/web/handler"
	"github.com/prompt-manager/prompt-manager/internal/web/session"
)

// sessionTable holds the sessions of the mysql and postgres storages.
const sessionTable = "sessions"

// ErrNilConfig is returned by New without a configuration.
var ErrNilConfig = errors.New("config is nil")

// Daemon holds the shared services. The CLI commands use them without the web service.
type Daemon struct {
	cfg         *config.Config
	DB          *gorm.DB
	Store       storage.Store
	Settings    *settings.Service
	Ingest      *ingest.Service
	Exporter    *archive.Exporter
	Importer    *archive.Importer
	Maintenance *maintenance.Service
}

// New opens and migrates the database, seeds the admin account and builds the services.
func New(ctx context.Context, cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	if err = db.AutoMigrate(models.All()...); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	if err = seed(cfg, db); err != nil {
		return nil, err
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open asset store")
	}

	if s3, ok := store.(*storage.S3); ok {
		if err = s3.EnsureBucket(ctx); err != nil {
			return nil, errors.Wrap(err, "failed to prepare bucket")
		}
	}

	s := settings.New(db, settings.Defaults(cfg.Upload))
	ing := ingest.New(db, store, s)

	return &Daemon{
		cfg:         cfg,
		DB:          db,
		Store:       store,
		Settings:    s,
		Ingest:      ing,
		Exporter:    archive.NewExporter(db, store),
		Importer:    archive.NewImporter(db, store),
		Maintenance: maintenance.New(db, store, s, ing),
	}, nil
}

// Start runs the web service until SIGINT or SIGTERM.
func (d *Daemon) Start() error {
	session.Init(sessionStorage(d.cfg), d.cfg.Webserver.Session.ExpiryTime)

	ws, err := web.New(&handler.Deps{
		Cfg:      d.cfg,
		DB:       d.DB,
		Store:    d.Store,
		Settings: d.Settings,
		Ingest:   d.Ingest,
		Exporter: d.Exporter,
		Importer: d.Importer,
	})
	if err != nil {
		return err
	}

	stopped := make(chan struct{})

	go func() {
		ws.WaitShutdown()
		close(stopped)
	}()

	if err = ws.Start(); err != nil {
		return err
	}

	<-stopped

	return nil
}

// Close releases the database connection.
func (d *Daemon) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DB.GormEngine {
	case config.EngineMySQL:
		dialector = gormmysql.Open(dsn.Create(cfg))
	case config.EnginePostgres:
		dialector = gormpostgres.Open(dsn.Create(cfg))
	default:
		if dir := filepath.Dir(cfg.DB.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
				return nil, errors.Wrap(err, "failed to create database directory")
			}
		}

		dialector = sqlite.Open(dsn.Create(cfg))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlog.New(time.Duration(cfg.Log.SlowQuery) * time.Millisecond),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	log.Info().Str("engine", cfg.DB.GormEngine).Msg("database connected")

	return db, nil
}

// sessionStorage keeps sessions next to the data. Sqlite sessions live in memory,
// a restart logs every admin out.
func sessionStorage(cfg *config.Config) fiber.Storage {
	switch cfg.DB.GormEngine {
	case config.EngineMySQL:
		return sessionmysql.New(sessionmysql.Config{
			ConnectionURI: dsn.Create(cfg),
			Table:         sessionTable,
		})
	case config.EnginePostgres:
		return sessionpostgres.New(sessionpostgres.Config{
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			Username: cfg.DB.User,
			Password: cfg.DB.Password,
			Database: cfg.DB.Name,
			Table:    sessionTable,
		})
	default:
		return nil
	}
}
