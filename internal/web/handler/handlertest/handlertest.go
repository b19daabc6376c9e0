// Package handlertest builds fiber apps with real services for handler tests.
package handlertest

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/prompt-manager/prompt-manager/internal/archive"
	"github.com/prompt-manager/prompt-manager/internal/config"
	"github.com/prompt-manager/prompt-manager/internal/db/dbtest"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/ingest"
	"github.com/prompt-manager/prompt-manager/internal/settings"
	"github.com/prompt-manager/prompt-manager/internal/storage"
	"github.com/prompt-manager/prompt-manager/internal/web/handler"
	"github.com/prompt-manager/prompt-manager/internal/web/middleware/auth"
	websess "github.com/prompt-manager/prompt-manager/internal/web/session"
)

// UploadRoot is the directory of the in-memory asset store.
const UploadRoot = "/srv/uploads"

// NoOpViews is a minimal Fiber Views engine. It writes the "error" field of a
// fiber.Map when present, else the template name.
type NoOpViews struct{}

// Load implements fiber.Views.
func (NoOpViews) Load() error { return nil }

// Render implements fiber.Views.
func (NoOpViews) Render(w io.Writer, name string, data interface{}, _ ...string) error {
	if m, ok := data.(fiber.Map); ok {
		if v, exists := m["error"]; exists && v != nil {
			_, _ = io.WriteString(w, v.(string))
			return nil
		}
	}

	_, _ = io.WriteString(w, name)

	return nil
}

// MemoryStorage is a minimal in-memory fiber.Storage.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ fiber.Storage = (*MemoryStorage)(nil)

// Get implements fiber.Storage.
func (s *MemoryStorage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}

	out := make([]byte, len(v))
	copy(out, v)

	return out, nil
}

// Set implements fiber.Storage.
func (s *MemoryStorage) Set(key string, val []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string][]byte)
	}

	buf := make([]byte, len(val))
	copy(buf, val)
	s.data[key] = buf

	return nil
}

// Delete implements fiber.Storage.
func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)

	return nil
}

// Reset implements fiber.Storage.
func (s *MemoryStorage) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string][]byte)

	return nil
}

// Close implements fiber.Storage.
func (s *MemoryStorage) Close() error { return nil }

// Env is a migrated database with services over an in-memory asset store.
type Env struct {
	Deps *handler.Deps
	FS   afero.Fs
}

// Config returns a configuration suitable for tests.
func Config() *config.Config {
	return &config.Config{
		DevMode: false,
		Title:   "Prompt Manager",
		Webserver: config.Webserver{
			URL:         "http://localhost",
			Port:        3000,
			BodyLimitMB: 16,
			Session:     config.Session{ExpiryTime: time.Hour},
		},
		Storage: config.Storage{Type: config.StorageLocal, UploadFolder: UploadRoot, PublicPrefix: "/uploads"},
		Upload: config.Upload{
			ImgMaxDimension:   1600,
			ImgQuality:        85,
			EnableImgCompress: true,
			MaxRefImages:      3,
			ThumbSize:         32,
			ThumbQuality:      80,
			ItemsPerPage:      24,
			AdminPerPage:      12,
			UploadRateLimit:   "100 per hour",
			LoginRateLimit:    "10 per minute",
			ApprovalGallery:   true,
			ApprovalTemplate:  true,
		},
	}
}

// New returns an Env and initializes a fresh in-memory session store.
func New(t *testing.T) *Env {
	t.Helper()

	cfg := Config()
	cfg.Webserver.DataDir = t.TempDir()

	fsys := afero.NewMemMapFs()

	store, err := storage.NewLocal(fsys, UploadRoot, cfg.Storage.PublicPrefix)
	require.NoError(t, err)

	db := dbtest.Open(t)
	s := settings.New(db, settings.Defaults(cfg.Upload))

	websess.Init(&MemoryStorage{data: make(map[string][]byte)}, cfg.Webserver.Session.ExpiryTime)

	return &Env{
		FS: fsys,
		Deps: &handler.Deps{
			Cfg:      cfg,
			DB:       db,
			Store:    store,
			Settings: s,
			Ingest:   ingest.New(db, store, s),
			Exporter: archive.NewExporter(db, store),
			Importer: archive.NewImporter(db, store),
		},
	}
}

// App returns a fiber app with the no-op views and the auth middleware.
func (e *Env) App(services ...handler.Service) *fiber.App {
	app := fiber.New(fiber.Config{Views: NoOpViews{}})
	app.Use(auth.Middleware)

	for _, svc := range services {
		if err := svc.Init(app, e.Deps); err != nil {
			panic(err)
		}
	}

	return app
}

// Login stores an admin session and returns its id for the session cookie.
func (e *Env) Login(t *testing.T) string {
	t.Helper()

	hash, err := models.HashPassword("secret")
	require.NoError(t, err)

	user := models.User{Username: "admin", Password: hash, Active: true}
	require.NoError(t, e.Deps.DB.Where("username = ?", user.Username).FirstOrCreate(&user).Error)

	id, err := websess.GenerateSessionID()
	require.NoError(t, err)

	data := &websess.Data{UserID: user.ID, Username: user.Username}
	require.NoError(t, data.Write(id, time.Hour))

	return id
}

// Image stores an image through the ingestion service.
func (e *Env) Image(t *testing.T, meta ingest.Metadata) *models.Image {
	t.Helper()

	img, err := e.Deps.Ingest.Create(context.Background(), ingest.CreateInput{
		Main: ingest.Upload{Name: "main.png", Data: PNG(t, 48, 32)},
		Meta: meta,
	})
	require.NoError(t, err)

	return img
}

// PNG returns an encoded w x h image.
func PNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 5), G: uint8(y * 7), B: 90, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return buf.Bytes()
}

// Request builds a request with the session cookie when sessionID is set.
func Request(method, target string, body io.Reader, contentType, sessionID string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	}

	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: websess.CookieName, Value: sessionID})
	}

	return req
}

// JSONRequest builds a JSON request carrying v.
func JSONRequest(t *testing.T, method, target string, v any, sessionID string) *http.Request {
	t.Helper()

	body, err := json.Marshal(v)
	require.NoError(t, err)

	req := Request(method, target, bytes.NewReader(body), fiber.MIMEApplicationJSON, sessionID)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)

	return req
}

// File is one multipart file part.
type File struct {
	Field string
	Name  string
	Data  []byte
}

// Multipart encodes fields and files as multipart/form-data.
func Multipart(t *testing.T, fields map[string]string, files ...File) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}

	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Name)
		require.NoError(t, err)

		_, err = part.Write(f.Data)
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

// Do runs req against app and returns the status and body.
func Do(t *testing.T, app *fiber.App, req *http.Request) (int, string, *http.Response) {
	t.Helper()

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	return resp.StatusCode, string(body), resp
}
