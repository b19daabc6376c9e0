// Package tag resolves tags by name and maintains the image_tags association table.
//
// Membership changes are explicit inserts and deletes on image_tags with a duplicate
// check before every insert. Callers pass a transaction when several calls belong together.
package tag

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/prompt-manager/prompt-manager/internal/db/models"
)

const (
	imageIDQuery = "image_id = ?"
	tagIDQuery   = "tag_id = ?"
)

// Count is a tag with the number of images it is attached to.
type Count struct {
	models.Tag
	Count int64
}

// Filter restricts which images are counted in ListWithCounts.
type Filter struct {
	Status           models.Status   // empty means any
	Category         models.Category // empty means any
	IncludeSensitive bool
}

// Normalize trims names, drops empty ones and removes duplicates keeping the first occurrence.
func Normalize(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))

	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}

		if _, ok := seen[n]; ok {
			continue
		}

		seen[n] = struct{}{}
		out = append(out, n)
	}

	return out
}

// Split parses a comma separated tag list as entered in forms.
func Split(s string) []string {
	return Normalize(strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '，' }))
}

// Get returns a tag by id.
func Get(db *gorm.DB, id uint64) (*models.Tag, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var t models.Tag

	result := db.Limit(1).Find(&t, id)
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		return nil, ErrTagNotFound
	}

	return &t, nil
}

// All returns every tag ordered by name.
func All(db *gorm.DB) ([]models.Tag, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var tags []models.Tag

	return tags, db.Order("name").Find(&tags).Error
}

// Find returns the existing tags among names, matched exactly.
func Find(db *gorm.DB, names []string) ([]models.Tag, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	names = Normalize(names)
	if len(names) == 0 {
		return nil, nil
	}

	var found []models.Tag
	if err := db.Where("name IN ?", names).Find(&found).Error; err != nil {
		return nil, err
	}

	// collations may match case insensitive, keep exact matches only
	byName := make(map[string]models.Tag, len(found))
	for _, t := range found {
		byName[t.Name] = t
	}

	out := make([]models.Tag, 0, len(names))

	for _, n := range names {
		if t, ok := byName[n]; ok {
			out = append(out, t)
		}
	}

	return out, nil
}

// Resolve returns a tag for every name, creating the missing ones. Order follows names.
func Resolve(db *gorm.DB, names []string) ([]models.Tag, error) {
	names = Normalize(names)

	existing, err := Find(db, names)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]models.Tag, len(existing))
	for _, t := range existing {
		byName[t.Name] = t
	}

	out := make([]models.Tag, 0, len(names))

	for _, n := range names {
		t, ok := byName[n]
		if !ok {
			t = models.Tag{Name: n}
			if err = db.Create(&t).Error; err != nil {
				return nil, err
			}
		}

		out = append(out, t)
	}

	return out, nil
}

// Attach links tags to an image, skipping links that already exist.
func Attach(db *gorm.DB, imageID uint64, tagIDs ...uint64) error {
	if db == nil {
		return ErrDBNil
	}

	if len(tagIDs) == 0 {
		return nil
	}

	var present []uint64
	if err := db.Model(&models.ImageTag{}).
		Where(imageIDQuery, imageID).
		Pluck("tag_id", &present).Error; err != nil {
		return err
	}

	have := make(map[uint64]struct{}, len(present))
	for _, id := range present {
		have[id] = struct{}{}
	}

	var rows []models.ImageTag

	for _, id := range tagIDs {
		if _, ok := have[id]; ok {
			continue
		}

		have[id] = struct{}{}
		rows = append(rows, models.ImageTag{ImageID: imageID, TagID: id})
	}

	if len(rows) == 0 {
		return nil
	}

	return db.Create(&rows).Error
}

// Detach removes links between an image and tags. Missing links are ignored.
func Detach(db *gorm.DB, imageID uint64, tagIDs ...uint64) error {
	if db == nil {
		return ErrDBNil
	}

	if len(tagIDs) == 0 {
		return nil
	}

	return db.Where(imageIDQuery, imageID).
		Where("tag_id IN ?", tagIDs).
		Delete(&models.ImageTag{}).Error
}

// DetachAll removes every tag link of the given images.
func DetachAll(db *gorm.DB, imageIDs ...uint64) error {
	if db == nil {
		return ErrDBNil
	}

	if len(imageIDs) == 0 {
		return nil
	}

	return db.Where("image_id IN ?", imageIDs).Delete(&models.ImageTag{}).Error
}

// Replace makes names the exact tag set of an image.
func Replace(db *gorm.DB, imageID uint64, names []string) ([]models.Tag, error) {
	tags, err := Resolve(db, names)
	if err != nil {
		return nil, err
	}

	keep := make([]uint64, 0, len(tags))
	for _, t := range tags {
		keep = append(keep, t.ID)
	}

	q := db.Where(imageIDQuery, imageID)
	if len(keep) > 0 {
		q = q.Where("tag_id NOT IN ?", keep)
	}

	if err = q.Delete(&models.ImageTag{}).Error; err != nil {
		return nil, err
	}

	return tags, Attach(db, imageID, keep...)
}

// Update renames a tag and optionally changes its sensitivity.
// Renaming onto an existing name merges: images of the renamed tag move to the
// existing tag and the renamed tag is deleted. The surviving tag is returned.
// All writes happen in one transaction.
func Update(db *gorm.DB, id uint64, newName string, sensitive *bool) (*models.Tag, bool, error) {
	if db == nil {
		return nil, false, ErrDBNil
	}

	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, false, ErrTagNameEmpty
	}

	var (
		t      *models.Tag
		merged bool
	)

	err := db.Transaction(func(tx *gorm.DB) error {
		var err error

		t, merged, err = update(tx, id, newName, sensitive)

		return err
	})
	if err != nil {
		return nil, false, err
	}

	return t, merged, nil
}

func update(tx *gorm.DB, id uint64, newName string, sensitive *bool) (*models.Tag, bool, error) {
	t, err := Get(tx, id)
	if err != nil {
		return nil, false, err
	}

	merged := false

	if newName != t.Name {
		found, err := Find(tx, []string{newName})
		if err != nil {
			return nil, false, err
		}

		if len(found) == 1 {
			if err = merge(tx, t.ID, found[0].ID); err != nil {
				return nil, false, err
			}

			t = &found[0]
			merged = true
		} else {
			if err = tx.Model(t).Update("name", newName).Error; err != nil {
				return nil, false, err
			}

			t.Name = newName
		}
	}

	if sensitive != nil && *sensitive != t.IsSensitive {
		if err = tx.Model(t).Update("is_sensitive", *sensitive).Error; err != nil {
			return nil, merged, err
		}

		t.IsSensitive = *sensitive
	}

	return t, merged, nil
}

// SetSensitive changes the sensitivity flag of a tag.
func SetSensitive(db *gorm.DB, id uint64, sensitive bool) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Model(&models.Tag{}).Where("id = ?", id).Update("is_sensitive", sensitive)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// sqlite reports 0 for unchanged rows as well
		if _, err := Get(db, id); err != nil {
			return err
		}
	}

	return nil
}

func merge(db *gorm.DB, fromID, toID uint64) error {
	var imageIDs []uint64
	if err := db.Model(&models.ImageTag{}).Where(tagIDQuery, fromID).Pluck("image_id", &imageIDs).Error; err != nil {
		return err
	}

	for _, imageID := range imageIDs {
		if err := Attach(db, imageID, toID); err != nil {
			return err
		}
	}

	if err := db.Where(tagIDQuery, fromID).Delete(&models.ImageTag{}).Error; err != nil {
		return err
	}

	return db.Delete(&models.Tag{}, fromID).Error
}

// BatchModify adds or removes the tags tagIDs on every image in imageIDs.
// Unknown image ids are skipped. ErrTagNotFound is returned when none of tagIDs exists.
func BatchModify(db *gorm.DB, imageIDs, tagIDs []uint64, remove bool) error {
	if db == nil {
		return ErrDBNil
	}

	var ids []uint64
	if len(tagIDs) > 0 {
		if err := db.Model(&models.Tag{}).Where("id IN ?", tagIDs).Pluck("id", &ids).Error; err != nil {
			return err
		}
	}

	if len(ids) == 0 {
		return ErrTagNotFound
	}

	var existing []uint64
	if len(imageIDs) > 0 {
		if err := db.Model(&models.Image{}).Where("id IN ?", imageIDs).Pluck("id", &existing).Error; err != nil {
			return err
		}
	}

	for _, imageID := range existing {
		var err error
		if remove {
			err = Detach(db, imageID, ids...)
		} else {
			err = Attach(db, imageID, ids...)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// DeleteOrphans removes tags without any image and returns how many were deleted.
func DeleteOrphans(db *gorm.DB) (int64, error) {
	if db == nil {
		return 0, ErrDBNil
	}

	result := db.Where("id NOT IN (?)", db.Model(&models.ImageTag{}).Select("tag_id")).Delete(&models.Tag{})

	return result.RowsAffected, result.Error
}

// SensitiveImageIDs is a subquery selecting ids of images with at least one sensitive tag.
func SensitiveImageIDs(db *gorm.DB) *gorm.DB {
	return db.Model(&models.ImageTag{}).
		Select("image_tags.image_id").
		Joins("JOIN tags ON tags.id = image_tags.tag_id").
		Where("tags.is_sensitive = ?", true)
}

// ListWithCounts returns tags that have matching images with their image count,
// ordered by name.
func ListWithCounts(db *gorm.DB, f Filter) ([]Count, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	q := db.Model(&models.Tag{}).
		Select("tags.id, tags.name, tags.is_sensitive, COUNT(images.id) AS count").
		Joins("JOIN image_tags ON image_tags.tag_id = tags.id").
		Joins("JOIN images ON images.id = image_tags.image_id")

	if f.Status != "" {
		q = q.Where("images.status = ?", f.Status)
	}

	if f.Category != "" {
		q = q.Where("images.category = ?", f.Category)
	}

	if !f.IncludeSensitive {
		q = q.Where("tags.is_sensitive = ?", false).
			Where("images.id NOT IN (?)", SensitiveImageIDs(db.Session(&gorm.Session{NewDB: true})))
	}

	var out []Count

	err := q.Group("tags.id, tags.name, tags.is_sensitive").
		Order("tags.name").
		Scan(&out).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return out, nil
}
