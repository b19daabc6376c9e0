package archive

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/prompt-manager/prompt-manager/internal/db/controller/images"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/storage"
)

const exportBatch = 100

// ExportStats summarises an export.
type ExportStats struct {
	Images  int
	Files   int
	Missing int
}

// Exporter writes archives.
type Exporter struct {
	db    *gorm.DB
	store storage.Store
}

// NewExporter returns an Exporter.
func NewExporter(db *gorm.DB, store storage.Store) *Exporter {
	registerMetrics()

	return &Exporter{db: db, store: store}
}

// FileName is the download name of an archive created at t.
func FileName(t time.Time) string {
	return "backup_" + t.Format("20060102") + ".zip"
}

// exportRun holds the state of one Export call.
type exportRun struct {
	ctx     context.Context //nolint:containedctx
	store   storage.Store
	zw      *zip.Writer
	written map[string]bool
	stats   ExportStats
}

// add copies logical into the archive once and reports whether the archive holds it.
func (r *exportRun) add(logical string) (string, bool, error) {
	if logical == "" {
		return "", false, nil
	}

	name := zipPath(logical)
	if ok, seen := r.written[name]; seen {
		return name, ok, nil
	}

	ok, err := r.copy(logical, name)
	if err != nil {
		return "", false, err
	}

	r.written[name] = ok

	if ok {
		r.stats.Files++
	} else {
		r.stats.Missing++

		log.Warn().Str("path", logical).Msg("file missing, not exported")
	}

	return name, ok, nil
}

func (r *exportRun) copy(logical, name string) (bool, error) {
	exists, err := r.store.Exists(r.ctx, logical)
	if err != nil || !exists {
		return false, err
	}

	rc, err := r.store.Open(r.ctx, logical)
	if err != nil {
		return false, err
	}
	defer rc.Close()

	w, err := r.zw.Create(name)
	if err != nil {
		return false, err
	}

	if _, err = io.Copy(w, rc); err != nil {
		return false, err
	}

	return true, nil
}

func (r *exportRun) entry(img *models.Image) (Entry, error) {
	e := newEntry(img)

	name, ok, err := r.add(img.FilePath)
	if err != nil {
		return e, err
	}

	if ok {
		e.ZipImagePath = name
	}

	if name, ok, err = r.add(img.ThumbnailPath); err != nil {
		return e, err
	}

	if ok {
		e.ZipThumbPath = name
	}

	for _, ref := range img.Refs {
		if name, ok, err = r.add(ref.FilePath); err != nil {
			return e, err
		}

		if ok {
			e.Refs = append(e.Refs, name)
		}
	}

	return e, nil
}

// Export streams the archive of every image to w. Files are copied as they are
// found, data.json is written last.
func (x *Exporter) Export(ctx context.Context, w io.Writer) (ExportStats, error) {
	run := &exportRun{
		ctx:     ctx,
		store:   x.store,
		zw:      zip.NewWriter(w),
		written: make(map[string]bool),
	}

	manifest := Manifest{Images: []Entry{}}

	err := images.Batches(x.db.WithContext(ctx), exportBatch, func(batch []models.Image) error {
		for i := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}

			e, err := run.entry(&batch[i])
			if err != nil {
				return err
			}

			manifest.Images = append(manifest.Images, e)
		}

		return nil
	})
	if err != nil {
		exportsTotal.WithLabelValues("error").Inc()

		return run.stats, err
	}

	mw, err := run.zw.Create(ManifestName)
	if err != nil {
		return run.stats, err
	}

	enc := json.NewEncoder(mw)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err = enc.Encode(manifest); err != nil {
		return run.stats, err
	}

	if err = run.zw.Close(); err != nil {
		exportsTotal.WithLabelValues("error").Inc()

		return run.stats, err
	}

	run.stats.Images = len(manifest.Images)
	exportsTotal.WithLabelValues("ok").Inc()

	log.Info().
		Int("images", run.stats.Images).
		Int("files", run.stats.Files).
		Int("missing", run.stats.Missing).
		Msg("archive exported")

	return run.stats, nil
}
