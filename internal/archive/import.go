package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prompt-manager/prompt-manager/internal/db/controller/images"
	"github.com/prompt-manager/prompt-manager/internal/db/controller/tag"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/media"
	"github.com/prompt-manager/prompt-manager/internal/storage"
)

// errNoMainFile fails a record whose main file is neither in the archive nor in the store.
var errNoMainFile = errors.New("main file missing")

// ErrEntryTooLarge fails a record whose archive file exceeds the entry size limit.
var ErrEntryTooLarge = errors.New("archive entry too large")

// DefaultMaxEntrySize bounds every file read from an archive.
const DefaultMaxEntrySize int64 = 512 << 20

// Summary counts the outcome of an import.
type Summary struct {
	Total        int
	Imported     int
	Duplicates   int
	Failed       int
	FilesWritten int
}

// String is the last progress line.
func (s Summary) String() string {
	return fmt.Sprintf("done: %d imported, %d duplicates skipped, %d failed, %d files written",
		s.Imported, s.Duplicates, s.Failed, s.FilesWritten)
}

// Importer restores archives.
type Importer struct {
	db       *gorm.DB
	store    storage.Store
	maxEntry int64
}

// NewImporter returns an Importer reading at most DefaultMaxEntrySize bytes per file.
func NewImporter(db *gorm.DB, store storage.Store) *Importer {
	registerMetrics()

	return &Importer{db: db, store: store, maxEntry: DefaultMaxEntrySize}
}

// SetMaxEntrySize changes the per file limit. Values below one keep the current limit.
func (im *Importer) SetMaxEntrySize(n int64) {
	if n > 0 {
		im.maxEntry = n
	}
}

// readLimited reads r completely, failing with ErrEntryTooLarge past limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}

	if int64(len(data)) > limit {
		return nil, ErrEntryTooLarge
	}

	return data, nil
}

// Import restores the archive at path. emit receives one line per step and may be nil.
// Every record is committed on its own; a failing record is reported and skipped.
func (im *Importer) Import(ctx context.Context, path string, emit func(line string)) (Summary, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return Summary{}, &FormatError{Err: err}
	}
	defer zr.Close()

	return im.ImportFrom(ctx, &zr.Reader, emit)
}

// ImportFrom restores an opened archive, see Import.
func (im *Importer) ImportFrom(ctx context.Context, zr *zip.Reader, emit func(line string)) (Summary, error) {
	if emit == nil {
		emit = func(string) {}
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	manifest, err := readManifest(files[ManifestName], im.maxEntry)
	if err != nil {
		emit("error: " + err.Error())

		return Summary{}, err
	}

	run := &importRun{im: im, ctx: ctx, files: files, emit: emit}
	run.sum.Total = len(manifest.Images)

	emit(fmt.Sprintf("found %d records", run.sum.Total))

	for i := range manifest.Images {
		if err := ctx.Err(); err != nil {
			emit("aborted: " + err.Error())

			return run.sum, err
		}

		e := &manifest.Images[i]
		prefix := fmt.Sprintf("[%d/%d] %s:", i+1, run.sum.Total, e.Title)

		imported, err := run.record(e)

		switch {
		case err != nil:
			run.sum.Failed++
			recordsTotal.WithLabelValues("failed").Inc()

			log.Error().Err(err).Str("title", e.Title).Msg("can not import record")
			emit(prefix + " failed: " + err.Error())
		case !imported:
			run.sum.Duplicates++
			recordsTotal.WithLabelValues("duplicate").Inc()

			emit(prefix + " duplicate, skipped")
		default:
			run.sum.Imported++
			recordsTotal.WithLabelValues("imported").Inc()

			emit(prefix + " imported")
		}
	}

	emit(run.sum.String())

	log.Info().
		Int("imported", run.sum.Imported).
		Int("duplicates", run.sum.Duplicates).
		Int("failed", run.sum.Failed).
		Int("files", run.sum.FilesWritten).
		Msg("archive imported")

	return run.sum, nil
}

func readManifest(f *zip.File, limit int64) (*Manifest, error) {
	if f == nil {
		return nil, &FormatError{Err: ErrNoManifest}
	}

	if f.UncompressedSize64 > uint64(limit) {
		return nil, &FormatError{Err: ErrEntryTooLarge}
	}

	rc, err := f.Open()
	if err != nil {
		return nil, &FormatError{Err: err}
	}
	defer rc.Close()

	var raw struct {
		Images *[]Entry `json:"images"`
	}

	data, err := readLimited(rc, limit)
	if err != nil {
		return nil, &FormatError{Err: err}
	}

	if err = json.Unmarshal(data, &raw); err != nil {
		return nil, &FormatError{Err: err}
	}

	if raw.Images == nil {
		return nil, &FormatError{Err: errors.New(ManifestName + " has no images list")} //nolint:err113
	}

	return &Manifest{Images: *raw.Images}, nil
}

// importRun holds the state of one import.
type importRun struct {
	im    *Importer
	ctx   context.Context //nolint:containedctx
	files map[string]*zip.File
	emit  func(string)
	sum   Summary
}

// restore extracts an archive file into the store unless the store already has it.
// It returns the logical path, or "" when the file is neither in the archive nor stored.
func (r *importRun) restore(name string) (string, error) {
	logical := storage.Clean(name)
	if logical == "" {
		return "", nil
	}

	exists, err := r.im.store.Exists(r.ctx, logical)
	if err != nil {
		return "", err
	}

	if exists {
		return logical, nil
	}

	f, ok := r.files[name]
	if !ok {
		r.emit("  missing in archive: " + name)

		return "", nil
	}

	// the header size is only a hint, readLimited enforces the limit on the stream
	if f.UncompressedSize64 > uint64(r.im.maxEntry) {
		return "", fmt.Errorf("%s: %w", name, ErrEntryTooLarge)
	}

	rc, err := f.Open()
	if err != nil {
		return "", &FormatError{Err: err}
	}
	defer rc.Close()

	data, err := readLimited(rc, r.im.maxEntry)
	if errors.Is(err, ErrEntryTooLarge) {
		return "", fmt.Errorf("%s: %w", name, err)
	}

	if err != nil {
		return "", &FormatError{Err: err}
	}

	written, err := r.im.store.Put(r.ctx, logical, data)
	if err != nil {
		return "", err
	}

	if written {
		r.sum.FilesWritten++
	}

	return logical, nil
}

// placeholder regenerates the placeholder of a stored main file.
func (r *importRun) placeholder(logical string) string {
	rc, err := r.im.store.Open(r.ctx, logical)
	if err != nil {
		return ""
	}
	defer rc.Close()

	data, err := readLimited(rc, r.im.maxEntry)
	if err != nil {
		return ""
	}

	return media.PlaceholderFromBytes(data)
}

// record imports one entry and reports whether it created an image.
func (r *importRun) record(e *Entry) (bool, error) {
	file, err := r.restore(e.ZipImagePath)
	if err != nil {
		return false, err
	}

	thumb, err := r.restore(e.ZipThumbPath)
	if err != nil {
		return false, err
	}

	refs := make([]string, 0, len(e.Refs))

	for _, name := range e.Refs {
		logical, err := r.restore(name)
		if err != nil {
			return false, err
		}

		if logical != "" {
			refs = append(refs, logical)
		}
	}

	db := r.im.db.WithContext(r.ctx)

	dup, err := images.FindDuplicate(db, e.Title, e.Author, file)
	if err != nil {
		return false, err
	}

	if dup {
		return false, nil
	}

	if file == "" {
		return false, errNoMainFile
	}

	if thumb == "" {
		thumb = file
	}

	img := &models.Image{
		Title:         e.Title,
		Author:        e.Author,
		Prompt:        e.Prompt,
		Description:   e.Description,
		Type:          models.ParseImageType(e.Type),
		Category:      models.ParseCategory(e.Category),
		Status:        models.StatusApproved,
		FilePath:      file,
		ThumbnailPath: thumb,
		LQIPData:      r.placeholder(file),
		ViewsCount:    e.ViewsCount,
		CopiesCount:   e.CopiesCount,
		CreatedAt:     e.createdAt(),
	}
	img.RecomputeHeat()

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(img).Error; err != nil {
			return err
		}

		rows := make([]models.ReferenceImage, 0, len(refs))
		for i, p := range refs {
			rows = append(rows, models.ReferenceImage{ImageID: img.ID, FilePath: p, Position: i})
		}

		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		_, err := tag.Replace(tx, img.ID, e.Tags)

		return err
	})

	return err == nil, err
}
