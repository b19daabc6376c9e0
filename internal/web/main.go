// Package web wires the fiber application: templates, static files, middleware and handlers.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/prompt-manager/prompt-manager/internal/config"
	fiberlog "github.com/prompt-manager/prompt-manager/internal/logger/adapter/fiber"
	"github.com/prompt-manager/prompt-manager/internal/storage"
	"github.com/prompt-manager/prompt-manager/internal/web/handler"
	"github.com/prompt-manager/prompt-manager/internal/web/handler/admin"
	"github.com/prompt-manager/prompt-manager/internal/web/handler/gallery"
	"github.com/prompt-manager/prompt-manager/internal/web/handler/login"
	"github.com/prompt-manager/prompt-manager/internal/web/handler/logout"
	"github.com/prompt-manager/prompt-manager/internal/web/handler/upload"
	authmiddleware "github.com/prompt-manager/prompt-manager/internal/web/middleware/auth"
)

const (
	// HealthPath answers 200 while the service accepts traffic and 503 during shutdown.
	HealthPath = "/healthz"

	// MetricsPath exposes the prometheus registry.
	MetricsPath = "/metrics"

	bytesPerMB = 1 << 20
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
}

// Start starts the web service on the configured port and blocks until it stops.
func (s *Service) Start() error {
	var doneFiber = make(chan error, 1)

	go func() {
		addr := ":" + strconv.Itoa(s.cfg.Webserver.Port)
		log.Info().Str("addr", addr).Msg("starting http server")

		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			doneFiber <- err
			return
		}

		doneFiber <- nil
	}()

	return <-doneFiber // wait for fiber to stop
}

// WaitShutdown waits for SIGINT or SIGTERM and stops the http server gracefully.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	// stop fiber http server
	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// Alive reports whether the health check passes.
func (s *Service) Alive() bool {
	return s.alive.Load()
}

// New creates the web service. The session store must be initialised before.
func New(deps *handler.Deps) (*Service, error) {
	if !deps.Valid() {
		return nil, errors.New(handler.ErrNilDepsFatalLogMsg)
	}

	cfg := deps.Cfg

	httpFS := http.FS(templateEmbedFS{embeddedTemplates})
	templateEngine := html.NewFileSystem(httpFS, ".gohtml")

	// in debug mode, use local filesystem for templates
	if cfg.DevMode {
		templateEngine = html.New("./internal/web/templates", ".gohtml")
		templateEngine.ShouldReload = true

		log.Warn().Msg("debug mode enabled: using local filesystem for templates")
	}

	templateEngine.AddFuncMap(templateFuncs(cfg, deps.Store))

	bodyLimit := cfg.Webserver.BodyLimitMB * bytesPerMB
	if bodyLimit <= 0 {
		bodyLimit = fiber.DefaultBodyLimit
	}

	// create fiber app
	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
			BodyLimit:      bodyLimit,
			Views:          templateEngine,
		},
	)

	service := &Service{
		cfg: cfg,
		App: app,
	}
	service.alive.Store(true)

	if !cfg.Webserver.DisableRecover {
		app.Use(recover.New(recover.Config{EnableStackTrace: cfg.DevMode}))
	}

	app.Use(fiberlog.New(fiberlog.Config{
		Config:            cfg.Log,
		CacheControlError: fiberlog.ConfigDefault.CacheControlError,
		CheckAliveURI:     HealthPath,
	}))

	app.Get(HealthPath, func(c *fiber.Ctx) error {
		if !service.Alive() {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}

		return c.SendString("ok")
	})
	app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))

	// serve embedded static files
	app.Use("/static",
		filesystem.New(
			filesystem.Config{
				Root:       http.FS(embeddedStaticFiles),
				PathPrefix: "static",
				Browse:     cfg.Webserver.BrowseStatic,
			},
		),
	)

	// uploads of the local backend, s3 urls point to the bucket
	if local, ok := deps.Store.(*storage.Local); ok {
		app.Static(cfg.Storage.PublicPrefix, local.Root(), fiber.Static{
			Browse: cfg.Webserver.BrowseStatic,
			MaxAge: 86400, //nolint:mnd
		})
	}

	app.Use(authmiddleware.Middleware)

	for _, h := range []handler.Service{
		&gallery.Handler,
		&upload.Handler,
		&login.Handler,
		&logout.Handler,
		&admin.Handler,
	} {
		if err := h.Init(app, deps); err != nil {
			return nil, err
		}
	}

	return service, nil
}
