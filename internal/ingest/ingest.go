// Package ingest creates, updates and deletes images together with their derivative
// files, reference images and tags.
//
// Database changes of one operation run in one transaction. Files are written before
// the transaction and removed again when it fails; files replaced or deleted by an
// operation are removed only after it committed.
package ingest

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prompt-manager/prompt-manager/internal/db/controller/tag"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/media"
	"github.com/prompt-manager/prompt-manager/internal/settings"
	"github.com/prompt-manager/prompt-manager/internal/storage"
)

// Upload is one uploaded file.
type Upload struct {
	Name string
	Data []byte
}

func (u *Upload) empty() bool {
	return u == nil || len(u.Data) == 0
}

// Metadata is the descriptive part of a submission.
type Metadata struct {
	Title       string `validate:"required,max=100"`
	Author      string `validate:"max=50"`
	Prompt      string
	Description string
	// Type accepts txt2img, img2img and the legacy text2img.
	Type string
	// Category is gallery or template, empty means gallery.
	Category string `validate:"omitempty,oneof=gallery template"`
	// Status overrides the initial status. Empty derives it from the approval setting.
	Status string `validate:"omitempty,oneof=pending approved"`
	Tags   []string
}

// CreateInput is a new submission.
type CreateInput struct {
	Main Upload
	Meta Metadata
	Refs []Upload
}

// UpdateInput edits an existing image. Main is optional, Refs are appended up to
// the reference cap and DeleteRefIDs are removed first.
type UpdateInput struct {
	ID           uint64
	Main         *Upload
	Meta         Metadata
	Refs         []Upload
	DeleteRefIDs []uint64
}

// Service is the ingestion service.
type Service struct {
	db        *gorm.DB
	store     storage.Store
	settings  *settings.Service
	validator *validator.Validate
}

// New returns a Service.
func New(db *gorm.DB, store storage.Store, s *settings.Service) *Service {
	registerMetrics()

	return &Service{
		db:        db,
		store:     store,
		settings:  s,
		validator: validator.New(),
	}
}

// derived are the files produced for a main upload.
type derived struct {
	file  string
	thumb string
	lqip  string
}

// files collects the logical paths written by one operation.
type files []string

func (f *files) add(p string) {
	*f = append(*f, p)
}

func (s *Service) removeAll(ctx context.Context, paths []string) {
	seen := make(map[string]struct{}, len(paths))

	for _, p := range paths {
		if p == "" || storage.IsRemote(p) {
			continue
		}

		if _, ok := seen[p]; ok {
			continue
		}

		seen[p] = struct{}{}

		if err := s.store.Remove(ctx, p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("can not remove file")
		}
	}
}

func (s *Service) validate(meta *Metadata) error {
	meta.Title = strings.TrimSpace(meta.Title)
	meta.Author = strings.TrimSpace(meta.Author)

	if err := s.validator.Struct(meta); err != nil {
		return fromValidator(err)
	}

	return nil
}

// fileName returns a fresh name for a stored main file.
func fileName(upload string, format string, converted bool) string {
	ext := ".jpg"

	if !converted {
		ext = strings.ToLower(path.Ext(upload))
		if ext == "" {
			ext = "." + format
			if format == "jpeg" {
				ext = ".jpg"
			}
		}
	}

	return strings.ReplaceAll(uuid.NewString(), "-", "") + ext
}

// refName returns a fresh name for a stored reference file.
func refName(upload string) string {
	ext := strings.ToLower(path.Ext(upload))
	if ext == "" {
		ext = ".bin"
	}

	return "ref_" + strings.ReplaceAll(uuid.NewString(), "-", "") + ext
}

// derive validates the main upload and writes its main and thumbnail files.
func (s *Service) derive(ctx context.Context, main Upload, written *files) (*derived, error) {
	if main.empty() {
		return nil, &ValidationError{Field: "image", Err: ErrMissingImage}
	}

	img, format, err := media.Decode(main.Data)
	if err != nil {
		return nil, &ValidationError{Field: "image", Err: ErrUndecodable}
	}

	opts := s.settings.UploadSettings()

	out, converted, err := media.Normalize(img, main.Data, media.Options{
		MaxDimension: opts.MaxDimension,
		Quality:      opts.Quality,
		Compress:     opts.Compress,
	})
	if err != nil {
		return nil, err
	}

	d := &derived{lqip: media.Placeholder(img)}
	if d.lqip == "" {
		log.Warn().Str("name", main.Name).Msg("no placeholder generated")
	}

	d.file, err = s.store.Save(ctx, out, fileName(main.Name, format, converted))
	if err != nil {
		return nil, err
	}

	written.add(d.file)

	thumb, err := media.Thumbnail(img, opts.ThumbSize, opts.ThumbQuality)
	if err != nil {
		// the main file doubles as thumbnail, repair-thumbnails picks it up later
		log.Warn().Err(err).Str("path", d.file).Msg("no thumbnail generated")

		d.thumb = d.file

		return d, nil
	}

	d.thumb, err = s.store.Save(ctx, thumb, storage.ThumbName(d.file))
	if err != nil {
		return nil, err
	}

	written.add(d.thumb)

	return d, nil
}

// saveRefs writes at most limit non-empty reference uploads unchanged.
func (s *Service) saveRefs(ctx context.Context, refs []Upload, limit int, written *files) ([]string, error) {
	var out []string

	for i := range refs {
		if len(out) >= limit {
			log.Info().Int("ignored", len(refs)-i).Msg("reference cap reached")

			break
		}

		if refs[i].empty() {
			continue
		}

		p, err := s.store.Save(ctx, refs[i].Data, refName(refs[i].Name))
		if err != nil {
			return nil, err
		}

		written.add(p)
		out = append(out, p)
	}

	return out, nil
}

func (s *Service) initialStatus(meta *Metadata, category models.Category) models.Status {
	if meta.Status != "" {
		return models.Status(meta.Status)
	}

	if s.settings.ApprovalRequired(category) {
		return models.StatusPending
	}

	return models.StatusApproved
}

// Create stores a new submission and returns the created image with tags and references.
func (s *Service) Create(ctx context.Context, in CreateInput) (img *models.Image, err error) {
	if s.db == nil {
		return nil, ErrDBNil
	}

	if err = s.validate(&in.Meta); err != nil {
		observe("create", err)

		return nil, err
	}

	var written files

	defer func() {
		if err != nil {
			s.removeAll(ctx, written)
		}

		observe("create", err)
	}()

	d, err := s.derive(ctx, in.Main, &written)
	if err != nil {
		return nil, err
	}

	refPaths, err := s.saveRefs(ctx, in.Refs, s.settings.UploadSettings().MaxRefImages, &written)
	if err != nil {
		return nil, err
	}

	category := models.ParseCategory(in.Meta.Category)
	img = &models.Image{
		Title:         in.Meta.Title,
		Author:        in.Meta.Author,
		Prompt:        in.Meta.Prompt,
		Description:   in.Meta.Description,
		Type:          models.ParseImageType(in.Meta.Type),
		Category:      category,
		Status:        s.initialStatus(&in.Meta, category),
		FilePath:      d.file,
		ThumbnailPath: d.thumb,
		LQIPData:      d.lqip,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(img).Error; err != nil {
			return err
		}

		refs, err := createRefs(tx, img.ID, refPaths, 0)
		if err != nil {
			return err
		}

		img.Refs = refs

		img.Tags, err = tag.Replace(tx, img.ID, tag.Normalize(in.Meta.Tags))

		return err
	})
	if err != nil {
		log.Error().Err(err).Str("title", in.Meta.Title).Msg("can not create image")

		return nil, err
	}

	log.Info().
		Uint64("image_id", img.ID).
		Str("path", img.FilePath).
		Str("status", string(img.Status)).
		Int("refs", len(img.Refs)).
		Msg("image created")

	return img, nil
}

// createRefs inserts reference rows for paths starting at position from.
func createRefs(tx *gorm.DB, imageID uint64, paths []string, from int) ([]models.ReferenceImage, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	refs := make([]models.ReferenceImage, 0, len(paths))
	for i, p := range paths {
		refs = append(refs, models.ReferenceImage{ImageID: imageID, FilePath: p, Position: from + i})
	}

	if err := tx.Create(&refs).Error; err != nil {
		return nil, err
	}

	return refs, nil
}

// loadRefs returns the references of an image ordered by position.
func loadRefs(tx *gorm.DB, imageID uint64) ([]models.ReferenceImage, error) {
	var refs []models.ReferenceImage
	if err := tx.Where("image_id = ?", imageID).Order("position").Find(&refs).Error; err != nil {
		return nil, err
	}

	return refs, nil
}

// compact renumbers refs to 0..n-1 keeping their order. refs must be sorted by position,
// then every target position is already free when it is assigned.
func compact(tx *gorm.DB, refs []models.ReferenceImage) error {
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Position < refs[j].Position })

	for i := range refs {
		if refs[i].Position == i {
			continue
		}

		if err := tx.Model(&models.ReferenceImage{}).
			Where("id = ?", refs[i].ID).
			Update("position", i).Error; err != nil {
			return err
		}

		refs[i].Position = i
	}

	return nil
}

// Update edits an image. A new main file replaces the old one, whose files are removed
// after the change committed.
func (s *Service) Update(ctx context.Context, in UpdateInput) (img *models.Image, err error) {
	if s.db == nil {
		return nil, ErrDBNil
	}

	if err = s.validate(&in.Meta); err != nil {
		observe("update", err)

		return nil, err
	}

	current := &models.Image{}

	res := s.db.WithContext(ctx).Limit(1).Find(current, in.ID)
	if res.Error != nil {
		observe("update", res.Error)

		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		observe("update", ErrNotFound)

		return nil, ErrNotFound
	}

	var (
		written  files
		obsolete files
	)

	defer func() {
		if err != nil {
			s.removeAll(ctx, written)
		} else {
			s.removeAll(ctx, obsolete)
		}

		observe("update", err)
	}()

	var d *derived
	if !in.Main.empty() {
		if d, err = s.derive(ctx, *in.Main, &written); err != nil {
			return nil, err
		}
	}

	maxRefs := s.settings.UploadSettings().MaxRefImages

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		refs, err := loadRefs(tx, in.ID)
		if err != nil {
			return err
		}

		drop := make(map[uint64]struct{}, len(in.DeleteRefIDs))
		for _, id := range in.DeleteRefIDs {
			drop[id] = struct{}{}
		}

		var keep []models.ReferenceImage

		for _, r := range refs {
			if _, ok := drop[r.ID]; !ok {
				keep = append(keep, r)

				continue
			}

			if err := tx.Delete(&models.ReferenceImage{}, r.ID).Error; err != nil {
				return err
			}

			obsolete.add(r.FilePath)
		}

		if err := compact(tx, keep); err != nil {
			return err
		}

		paths, err := s.saveRefs(ctx, in.Refs, max(maxRefs-len(keep), 0), &written)
		if err != nil {
			return err
		}

		added, err := createRefs(tx, in.ID, paths, len(keep))
		if err != nil {
			return err
		}

		current.Title = in.Meta.Title
		current.Author = in.Meta.Author
		current.Prompt = in.Meta.Prompt
		current.Description = in.Meta.Description
		current.Type = models.ParseImageType(in.Meta.Type)
		current.Category = models.ParseCategory(in.Meta.Category)

		// status only moves forward
		if models.Status(in.Meta.Status) == models.StatusApproved {
			current.Status = models.StatusApproved
		}

		if d != nil {
			obsolete.add(current.FilePath)

			if current.ThumbnailPath != current.FilePath {
				obsolete.add(current.ThumbnailPath)
			}

			current.FilePath = d.file
			current.ThumbnailPath = d.thumb
			current.LQIPData = d.lqip
		}

		if err := tx.Model(current).
			Select("title", "author", "prompt", "description", "type", "category", "status",
				"file_path", "thumbnail_path", "lqip_data").
			Updates(current).Error; err != nil {
			return err
		}

		current.Refs = append(keep, added...)

		current.Tags, err = tag.Replace(tx, in.ID, tag.Normalize(in.Meta.Tags))

		return err
	})
	if err != nil {
		// nothing was replaced
		obsolete = nil

		log.Error().Err(err).Uint64("image_id", in.ID).Msg("can not update image")

		return nil, err
	}

	log.Info().
		Uint64("image_id", in.ID).
		Bool("new_file", d != nil).
		Int("refs", len(current.Refs)).
		Msg("image updated")

	return current, nil
}

// Delete removes an image with its references, tag links and files.
// It reports false when the image did not exist.
func (s *Service) Delete(ctx context.Context, id uint64) (bool, error) {
	if s.db == nil {
		return false, ErrDBNil
	}

	var (
		found    bool
		obsolete files
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		img := &models.Image{}

		res := tx.Limit(1).Find(img, id)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return nil
		}

		found = true

		refs, err := loadRefs(tx, id)
		if err != nil {
			return err
		}

		if err := tag.DetachAll(tx, id); err != nil {
			return err
		}

		if err := tx.Where("image_id = ?", id).Delete(&models.ReferenceImage{}).Error; err != nil {
			return err
		}

		if err := tx.Delete(&models.Image{}, id).Error; err != nil {
			return err
		}

		obsolete.add(img.FilePath)
		obsolete.add(img.ThumbnailPath)

		for _, r := range refs {
			obsolete.add(r.FilePath)
		}

		return nil
	})

	observe("delete", err)

	if err != nil {
		log.Error().Err(err).Uint64("image_id", id).Msg("can not delete image")

		return false, err
	}

	if !found {
		return false, nil
	}

	s.removeAll(ctx, obsolete)

	log.Info().Uint64("image_id", id).Int("files", len(obsolete)).Msg("image deleted")

	return true, nil
}

// DeleteMany deletes every id and returns how many existed.
func (s *Service) DeleteMany(ctx context.Context, ids []uint64) (int, error) {
	n := 0

	for _, id := range ids {
		ok, err := s.Delete(ctx, id)
		if err != nil {
			return n, err
		}

		if ok {
			n++
		}
	}

	return n, nil
}
