// Package settings is the single accessor for runtime settings.
//
// Every getter reads the stored value and falls back to the in-process cached value
// when the row is absent or invalid. Every setter clamps, persists and then updates
// the cache, so the running process sees the change immediately.
package settings

import (
	"errors"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/prompt-manager/prompt-manager/internal/config"
	"github.com/prompt-manager/prompt-manager/internal/db/controller/setting"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
)

// Values is a snapshot of every runtime setting.
type Values struct {
	ImgMaxDimension       int
	ImgQuality            int
	EnableImgCompress     bool
	MaxRefImages          int
	ThumbSize             int
	ThumbQuality          int
	ItemsPerPage          int
	AdminPerPage          int
	UseThumbnailInPreview bool
	UploadRateLimit       string
	LoginRateLimit        string
	ApprovalGallery       bool
	ApprovalTemplate      bool
	AllowSensitiveToggle  bool
}

// Defaults builds the fallback values from the static configuration.
func Defaults(u config.Upload) Values {
	v := Values{
		ImgMaxDimension:       u.ImgMaxDimension,
		ImgQuality:            u.ImgQuality,
		EnableImgCompress:     u.EnableImgCompress,
		MaxRefImages:          u.MaxRefImages,
		ThumbSize:             u.ThumbSize,
		ThumbQuality:          u.ThumbQuality,
		ItemsPerPage:          u.ItemsPerPage,
		AdminPerPage:          u.AdminPerPage,
		UseThumbnailInPreview: u.UseThumbnailInPreview,
		UploadRateLimit:       u.UploadRateLimit,
		LoginRateLimit:        u.LoginRateLimit,
		ApprovalGallery:       u.ApprovalGallery,
		ApprovalTemplate:      u.ApprovalTemplate,
		AllowSensitiveToggle:  u.AllowSensitiveToggle,
	}

	// a zero static value would make the setting unusable
	for _, k := range keys {
		switch k.kind {
		case kindInt:
			if p := k.intPtr(&v); *p < k.min || (k.max > 0 && *p > k.max) {
				*p = k.clamp(*p)
			}
		case kindString:
			if p := k.strPtr(&v); k.validate(*p) != nil {
				*p = k.fallback
			}
		}
	}

	return v
}

// Service reads and writes runtime settings.
type Service struct {
	db *gorm.DB

	mu    sync.RWMutex
	cache Values
}

// New returns a Service with defaults as the initial cache.
func New(db *gorm.DB, defaults Values) *Service {
	return &Service{db: db, cache: defaults}
}

// Cached returns the in-process values without touching the database.
func (s *Service) Cached() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cache
}

// Snapshot returns every setting, stored values overriding cached ones.
func (s *Service) Snapshot() Values {
	v := s.Cached()

	stored, err := setting.GetAll(s.db)
	if err != nil {
		log.Warn().Err(err).Msg("can't read settings, using cached values")
		return v
	}

	for name, raw := range stored {
		k, ok := keys[name]
		if !ok {
			continue
		}

		apply(k, &v, raw)
	}

	return v
}

// apply writes raw into v when it is a valid value for k.
func apply(k key, v *Values, raw string) {
	switch k.kind {
	case kindInt:
		if n, err := strconv.Atoi(raw); err == nil && n >= k.min && (k.max == 0 || n <= k.max) {
			*k.intPtr(v) = n
		}
	case kindBool:
		if raw == "1" || raw == "0" {
			*k.boolPtr(v) = raw == "1"
		}
	case kindString:
		if raw != "" && k.validate(raw) == nil {
			*k.strPtr(v) = raw
		}
	}
}

func (s *Service) lookup(name string, kind int) (key, error) {
	k, ok := keys[name]
	if !ok {
		return key{}, ErrUnknownKey
	}

	if k.kind != kind {
		return key{}, ErrWrongType
	}

	return k, nil
}

// read returns the cache with the stored value of name applied.
func (s *Service) read(name string, k key) Values {
	v := s.Cached()

	row, err := setting.Get(s.db, name)

	switch {
	case err == nil:
		apply(k, &v, row.Value)
	case !errors.Is(err, setting.ErrSettingNotFound):
		log.Warn().Err(err).Str("setting", name).Msg("can't read setting, using cached value")
	}

	return v
}

func (s *Service) write(name, raw string, update func(v *Values)) error {
	if err := setting.Set(s.db, name, raw); err != nil {
		return err //nolint:wrapcheck
	}

	s.mu.Lock()
	update(&s.cache)
	s.mu.Unlock()

	log.Info().Str("setting", name).Str("value", raw).Msg("setting changed")

	return nil
}

// Int returns an int setting.
func (s *Service) Int(name string) (int, error) {
	k, err := s.lookup(name, kindInt)
	if err != nil {
		return 0, err
	}

	v := s.read(name, k)

	return *k.intPtr(&v), nil
}

// SetInt clamps, persists and caches an int setting. The stored value is returned.
func (s *Service) SetInt(name string, n int) (int, error) {
	k, err := s.lookup(name, kindInt)
	if err != nil {
		return 0, err
	}

	n = k.clamp(n)

	return n, s.write(name, strconv.Itoa(n), func(v *Values) { *k.intPtr(v) = n })
}

// Bool returns a bool setting.
func (s *Service) Bool(name string) (bool, error) {
	k, err := s.lookup(name, kindBool)
	if err != nil {
		return false, err
	}

	v := s.read(name, k)

	return *k.boolPtr(&v), nil
}

// SetBool persists and caches a bool setting.
func (s *Service) SetBool(name string, b bool) error {
	k, err := s.lookup(name, kindBool)
	if err != nil {
		return err
	}

	raw := "0"
	if b {
		raw = "1"
	}

	return s.write(name, raw, func(v *Values) { *k.boolPtr(v) = b })
}

// String returns a string setting.
func (s *Service) String(name string) (string, error) {
	k, err := s.lookup(name, kindString)
	if err != nil {
		return "", err
	}

	v := s.read(name, k)

	return *k.strPtr(&v), nil
}

// SetString validates, persists and caches a string setting.
func (s *Service) SetString(name, str string) error {
	k, err := s.lookup(name, kindString)
	if err != nil {
		return err
	}

	if err = k.validate(str); err != nil {
		return err
	}

	return s.write(name, str, func(v *Values) { *k.strPtr(v) = str })
}

// ApprovalRequired reports whether new images of category start pending.
func (s *Service) ApprovalRequired(category models.Category) bool {
	name := KeyApprovalGallery
	if category == models.CategoryTemplate {
		name = KeyApprovalTemplate
	}

	b, _ := s.Bool(name) //nolint:errcheck

	return b
}

// Upload groups the image processing settings.
type Upload struct {
	MaxDimension int
	Quality      int
	Compress     bool
	MaxRefImages int
	ThumbSize    int
	ThumbQuality int
}

// UploadSettings returns the image processing settings.
func (s *Service) UploadSettings() Upload {
	v := s.Snapshot()

	return Upload{
		MaxDimension: v.ImgMaxDimension,
		Quality:      v.ImgQuality,
		Compress:     v.EnableImgCompress,
		MaxRefImages: v.MaxRefImages,
		ThumbSize:    v.ThumbSize,
		ThumbQuality: v.ThumbQuality,
	}
}

// Display groups the listing settings.
type Display struct {
	ItemsPerPage          int
	AdminPerPage          int
	UseThumbnailInPreview bool
}

// DisplaySettings returns the listing settings.
func (s *Service) DisplaySettings() Display {
	v := s.Snapshot()

	return Display{
		ItemsPerPage:          v.ItemsPerPage,
		AdminPerPage:          v.AdminPerPage,
		UseThumbnailInPreview: v.UseThumbnailInPreview,
	}
}

// RateLimits groups the rate limit settings.
type RateLimits struct {
	Upload string
	Login  string
}

// RateLimitSettings returns the rate limit settings.
func (s *Service) RateLimitSettings() RateLimits {
	v := s.Snapshot()

	return RateLimits{Upload: v.UploadRateLimit, Login: v.LoginRateLimit}
}

// Readonly are settings that only change with the static configuration.
type Readonly struct {
	StorageType  string
	DBType       string
	UploadFolder string
}

// ReadonlySettings describes the static deployment for the settings page.
func ReadonlySettings(cfg *config.Config) Readonly {
	folder := cfg.Storage.UploadFolder
	if cfg.Storage.Type == config.StorageS3 {
		folder = cfg.Storage.S3.Bucket
	}

	return Readonly{
		StorageType:  cfg.Storage.Type,
		DBType:       cfg.DB.GormEngine,
		UploadFolder: folder,
	}
}
