package admin

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/prompt-manager/prompt-manager/internal/archive"
	"github.com/prompt-manager/prompt-manager/internal/db/controller/images"
	"github.com/prompt-manager/prompt-manager/internal/web/handler"
)

// ImportField is the multipart field of the archive upload.
const ImportField = "zip_file"

// Export streams an archive of every image as a download.
func (s *Service) Export(c *fiber.Ctx) error {
	stats, err := images.Count(s.deps.DB)
	if err != nil {
		return s.internal(c, err, "failed to count images")
	}

	if stats.Images == 0 {
		handler.Flash(c, "nothing to export", s.deps.Cfg.Webserver.Session.ExpiryTime)
		return c.Redirect(TabURL(TabData))
	}

	exporter := s.deps.Exporter

	c.Attachment(archive.FileName(time.Now()))
	c.Set(fiber.HeaderContentType, "application/zip")

	// the fiber context is released before the stream writer runs
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		result, err := exporter.Export(context.Background(), w)
		if err != nil {
			log.Error().Err(err).Msg("export failed")
			return
		}

		if err = w.Flush(); err != nil {
			log.Error().Err(err).Msg("export: can not flush response")
			return
		}

		log.Info().Int("images", result.Images).Int("files", result.Files).Int("missing", result.Missing).
			Msg("archive exported")
	})

	return nil
}

// scratchFile returns a new empty file for an uploaded archive.
func (s *Service) scratchFile() (string, error) {
	dir := s.deps.Cfg.Webserver.DataDir
	if dir == "" {
		dir = os.TempDir()
	}

	if err := os.MkdirAll(dir, 0o750); err != nil { //nolint:mnd
		return "", err
	}

	f, err := os.CreateTemp(dir, "import-*.zip")
	if err != nil {
		return "", err
	}

	return f.Name(), f.Close()
}

// Import restores an uploaded archive and streams the progress as text lines.
func (s *Service) Import(c *fiber.Ctx) error {
	fh, err := c.FormFile(ImportField)
	if err != nil || fh.Size == 0 {
		return c.Status(fiber.StatusBadRequest).SendString("error: no archive uploaded\n")
	}

	if !strings.EqualFold(filepath.Ext(fh.Filename), ".zip") {
		return c.Status(fiber.StatusBadRequest).SendString("error: the archive must be a .zip file\n")
	}

	path, err := s.scratchFile()
	if err != nil {
		return s.internal(c, err, "can not create scratch file")
	}

	if err = c.SaveFile(fh, path); err != nil {
		_ = os.Remove(path)
		return s.internal(c, err, "can not store the uploaded archive")
	}

	importer := s.deps.Importer

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			if err := os.Remove(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("can not remove scratch file")
			}
		}()

		emitted := false
		emit := func(line string) {
			emitted = true

			_, _ = w.WriteString(line + "\n")
			_ = w.Flush()
		}

		if _, err := importer.Import(context.Background(), path, emit); err != nil {
			log.Error().Err(err).Msg("import failed")

			if !emitted {
				emit("error: " + err.Error())
			}
		}
	})

	return nil
}
