// Package maintenance holds the batch jobs run from the command line: placeholder
// backfill, thumbnail repair and clearing every image.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/prompt-manager/prompt-manager/internal/db/controller/images"
	"github.com/prompt-manager/prompt-manager/internal/db/controller/tag"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/ingest"
	"github.com/prompt-manager/prompt-manager/internal/media"
	"github.com/prompt-manager/prompt-manager/internal/settings"
	"github.com/prompt-manager/prompt-manager/internal/storage"
)

// placeholderBatch is the number of placeholders committed together.
const placeholderBatch = 10

// ErrInvalidOption is returned for out of range job options.
var ErrInvalidOption = errors.New("invalid option")

// Service runs maintenance jobs.
type Service struct {
	db       *gorm.DB
	store    storage.Store
	settings *settings.Service
	ingest   *ingest.Service
}

// New returns a Service.
func New(db *gorm.DB, store storage.Store, s *settings.Service, ing *ingest.Service) *Service {
	return &Service{db: db, store: store, settings: s, ingest: ing}
}

func orNop(emit func(string)) func(string) {
	if emit == nil {
		return func(string) {}
	}

	return emit
}

func (s *Service) read(ctx context.Context, logical string) ([]byte, error) {
	rc, err := s.store.Open(ctx, logical)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// PlaceholderStats counts the outcome of BackfillPlaceholders.
type PlaceholderStats struct {
	Total   int
	Success int
	Failed  int
}

// BackfillPlaceholders generates the placeholder of every image without one.
// Results are committed every placeholderBatch images.
func (s *Service) BackfillPlaceholders(ctx context.Context, emit func(string)) (PlaceholderStats, error) {
	var stats PlaceholderStats

	var after uint64

	emit = orNop(emit)

	for {
		batch, err := images.MissingPlaceholder(s.db.WithContext(ctx), after, placeholderBatch)
		if err != nil {
			return stats, err
		}

		if len(batch) == 0 {
			break
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for i := range batch {
				img := &batch[i]
				stats.Total++

				data, err := s.read(ctx, img.FilePath)
				if err != nil {
					stats.Failed++
					emit(fmt.Sprintf("[skip] #%d %s: %v", img.ID, img.Title, err))

					continue
				}

				lqip := media.PlaceholderFromBytes(data)
				if lqip == "" {
					stats.Failed++
					emit(fmt.Sprintf("[skip] #%d %s: no placeholder", img.ID, img.Title))

					continue
				}

				if err := tx.Model(img).Update("lqip_data", lqip).Error; err != nil {
					return err
				}

				stats.Success++
				emit(fmt.Sprintf("[ok] #%d %s", img.ID, img.Title))
			}

			return nil
		})
		if err != nil {
			return stats, err
		}

		after = batch[len(batch)-1].ID
	}

	log.Info().Int("success", stats.Success).Int("failed", stats.Failed).Msg("placeholders generated")

	return stats, nil
}

// RepairOptions selects the images of RepairThumbnails.
type RepairOptions struct {
	// Status filters by status, "*" selects every status.
	Status string
	IDs    []uint64
	// Limit caps the number of scanned images, 0 means no limit.
	Limit int
	// ThumbSize and Quality default to the thumbnail settings when 0.
	ThumbSize int
	Quality   int
	// Force regenerates thumbnails that look valid.
	Force  bool
	DryRun bool
}

// RepairStats counts the outcome of RepairThumbnails.
type RepairStats struct {
	Scanned       int
	Updated       int
	Unchanged     int
	MissingSource int
	RemoteSkipped int
	Errors        int
}

func (s *Service) repairOptions(opts *RepairOptions) error {
	upload := s.settings.UploadSettings()

	if opts.ThumbSize == 0 {
		opts.ThumbSize = upload.ThumbSize
	}

	if opts.Quality == 0 {
		opts.Quality = upload.ThumbQuality
	}

	if opts.Quality < 1 || opts.Quality > 100 {
		return fmt.Errorf("%w: quality must be between 1 and 100", ErrInvalidOption)
	}

	if opts.ThumbSize < 32 { //nolint:mnd
		return fmt.Errorf("%w: thumbnail size must be at least 32", ErrInvalidOption)
	}

	return nil
}

// needsThumbnail reports whether img lacks a usable thumbnail.
func (s *Service) needsThumbnail(ctx context.Context, img *models.Image, force bool) (bool, error) {
	switch {
	case force, img.ThumbnailPath == "", img.ThumbnailPath == img.FilePath:
		return true, nil
	case storage.IsRemote(img.ThumbnailPath):
		return false, nil
	}

	exists, err := s.store.Exists(ctx, img.ThumbnailPath)

	return !exists, err
}

func (s *Service) writeThumbnail(ctx context.Context, img *models.Image, opts *RepairOptions) (string, error) {
	data, err := s.read(ctx, img.FilePath)
	if err != nil {
		return "", err
	}

	src, _, err := media.Decode(data)
	if err != nil {
		return "", err
	}

	thumb, err := media.Thumbnail(src, opts.ThumbSize, opts.Quality)
	if err != nil {
		return "", err
	}

	name := storage.ThumbName(img.FilePath)

	// a stale file of the same name is replaced
	if err = s.store.Remove(ctx, name); err != nil {
		return "", err
	}

	if _, err = s.store.Put(ctx, name, thumb); err != nil {
		return "", err
	}

	return name, nil
}

// RepairThumbnails regenerates missing thumbnails, thumbnails equal to the main file and,
// with Force, every selected thumbnail.
func (s *Service) RepairThumbnails(ctx context.Context, opts RepairOptions, emit func(string)) (RepairStats, error) {
	var stats RepairStats

	emit = orNop(emit)

	if err := s.repairOptions(&opts); err != nil {
		return stats, err
	}

	q := s.db.WithContext(ctx).Order("id")
	if opts.Status != "*" {
		if opts.Status == "" {
			opts.Status = string(models.StatusApproved)
		}

		q = q.Where("status = ?", opts.Status)
	}

	if len(opts.IDs) > 0 {
		q = q.Where("id IN ?", opts.IDs)
	}

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var list []models.Image
	if err := q.Find(&list).Error; err != nil {
		return stats, err
	}

	emit(fmt.Sprintf("loaded %d images", len(list)))

	for i := range list {
		img := &list[i]
		stats.Scanned++

		if img.FilePath == "" {
			stats.Errors++
			emit(fmt.Sprintf("[err] #%d: empty file path", img.ID))

			continue
		}

		if storage.IsRemote(img.FilePath) {
			stats.RemoteSkipped++

			continue
		}

		exists, err := s.store.Exists(ctx, img.FilePath)
		if err != nil {
			stats.Errors++
			emit(fmt.Sprintf("[err] #%d: %v", img.ID, err))

			continue
		}

		if !exists {
			stats.MissingSource++
			emit(fmt.Sprintf("[miss] #%d: %s", img.ID, img.FilePath))

			continue
		}

		need, err := s.needsThumbnail(ctx, img, opts.Force)
		if err != nil {
			stats.Errors++
			emit(fmt.Sprintf("[err] #%d: %v", img.ID, err))

			continue
		}

		if !need {
			stats.Unchanged++

			continue
		}

		if opts.DryRun {
			stats.Updated++
			emit(fmt.Sprintf("[dry] #%d: %s -> %s", img.ID, img.ThumbnailPath, storage.ThumbName(img.FilePath)))

			continue
		}

		name, err := s.writeThumbnail(ctx, img, &opts)
		if err == nil {
			err = s.db.WithContext(ctx).Model(img).Update("thumbnail_path", name).Error
		}

		if err != nil {
			stats.Errors++
			emit(fmt.Sprintf("[err] #%d: %v", img.ID, err))

			continue
		}

		stats.Updated++
		emit(fmt.Sprintf("[fix] #%d: %s", img.ID, name))
	}

	log.Info().
		Int("scanned", stats.Scanned).
		Int("updated", stats.Updated).
		Int("errors", stats.Errors).
		Bool("dry_run", opts.DryRun).
		Msg("thumbnails repaired")

	return stats, nil
}

// ClearStats counts the rows removed by Clear.
type ClearStats struct {
	Images int
	Tags   int64
}

// Clear deletes every image with its references and files, then every tag left
// without images. Users and settings are kept.
func (s *Service) Clear(ctx context.Context) (ClearStats, error) {
	var stats ClearStats

	var ids []uint64
	if err := s.db.WithContext(ctx).Model(&models.Image{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return stats, err
	}

	n, err := s.ingest.DeleteMany(ctx, ids)

	stats.Images = n
	if err != nil {
		return stats, err
	}

	if stats.Tags, err = tag.DeleteOrphans(s.db.WithContext(ctx)); err != nil {
		return stats, err
	}

	log.Info().Int("images", stats.Images).Int64("tags", stats.Tags).Msg("data cleared")

	return stats, nil
}
