// Package images provides the queries and small mutations on images.
package images

import (
	"math"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prompt-manager/prompt-manager/internal/db/controller/tag"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
)

// Sort orders of List.
const (
	SortDate   = "date"
	SortHot    = "hot"
	SortRandom = "random"
	SortOldest = "oldest"
)

const idQuery = "id = ?"

// Query filters and paginates List.
type Query struct {
	Status           models.Status    // empty means any
	Category         models.Category  // empty means any
	Type             models.ImageType // empty means any
	Tag              string           // exact tag name
	Search           string           // substring of title, prompt or author
	IncludeSensitive bool
	Sort             string
	Page             int // 1 based
	PerPage          int // zero returns everything
}

// Page is one page of List.
type Page struct {
	Items   []models.Image
	Page    int
	PerPage int
	Total   int64
	Pages   int
}

// HasPrev reports whether a previous page exists.
func (p *Page) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a next page exists.
func (p *Page) HasNext() bool { return p.Page < p.Pages }

// withRelations preloads tags and references in position order.
func withRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("Tags", func(db *gorm.DB) *gorm.DB {
		return db.Order("tags.name")
	}).Preload("Refs", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	})
}

// Get returns an image with tags and references.
func Get(db *gorm.DB, id uint64) (*models.Image, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var img models.Image

	result := withRelations(db).Limit(1).Find(&img, id)
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		return nil, ErrImageNotFound
	}

	return &img, nil
}

// All returns every image with relations in id order.
func All(db *gorm.DB) ([]models.Image, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var out []models.Image

	return out, withRelations(db).Order("id").Find(&out).Error
}

// Batches calls fn with every image in id order, at most size at a time, relations loaded.
func Batches(db *gorm.DB, size int, fn func(batch []models.Image) error) error {
	if db == nil {
		return ErrDBNil
	}

	size = max(size, 1)

	var after uint64

	for {
		var batch []models.Image
		if err := withRelations(db).Where("id > ?", after).Order("id").Limit(size).Find(&batch).Error; err != nil {
			return err
		}

		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}

		if len(batch) < size {
			return nil
		}

		after = batch[len(batch)-1].ID
	}
}

func filtered(db *gorm.DB, q *Query) *gorm.DB {
	tx := db.Model(&models.Image{})

	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}

	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}

	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}

	if name := strings.TrimSpace(q.Tag); name != "" {
		tx = tx.Where("id IN (?)", db.Session(&gorm.Session{NewDB: true}).
			Model(&models.ImageTag{}).
			Select("image_tags.image_id").
			Joins("JOIN tags ON tags.id = image_tags.tag_id").
			Where("tags.name = ?", name))
	}

	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + s + "%"
		tx = tx.Where("(title LIKE ? OR prompt LIKE ? OR author LIKE ?)", like, like, like)
	}

	if !q.IncludeSensitive {
		tx = tx.Where("id NOT IN (?)", tag.SensitiveImageIDs(db.Session(&gorm.Session{NewDB: true})))
	}

	return tx
}

func ordered(db *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case SortHot:
		return db.Order("heat_score DESC").Order("created_at DESC").Order("id DESC")
	case SortOldest:
		return db.Order("created_at").Order("id")
	case SortRandom:
		fn := "RANDOM()"
		if db.Dialector.Name() == "mysql" {
			fn = "RAND()"
		}

		return db.Clauses(clause.OrderBy{Expression: clause.Expr{SQL: fn}})
	default:
		return db.Order("created_at DESC").Order("id DESC")
	}
}

// List returns one page of images matching q.
func List(db *gorm.DB, q Query) (*Page, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	page := &Page{Page: max(q.Page, 1), PerPage: q.PerPage}

	if err := filtered(db, &q).Count(&page.Total).Error; err != nil {
		return nil, err
	}

	tx := ordered(withRelations(filtered(db, &q)), q.Sort)

	if q.PerPage > 0 {
		page.Pages = int(math.Ceil(float64(page.Total) / float64(q.PerPage)))
		tx = tx.Offset((page.Page - 1) * q.PerPage).Limit(q.PerPage)
	} else {
		page.Pages = 1
	}

	if err := tx.Find(&page.Items).Error; err != nil {
		return nil, err
	}

	return page, nil
}

// Approve moves a pending image to approved. Approving an approved image is a no-op.
func Approve(db *gorm.DB, id uint64) error {
	if db == nil {
		return ErrDBNil
	}

	img, err := Get(db, id)
	if err != nil {
		return err
	}

	if img.Status == models.StatusApproved {
		return nil
	}

	return db.Model(&models.Image{}).Where(idQuery, id).Update("status", models.StatusApproved).Error
}

// ApproveAll approves every pending image and returns how many were approved.
func ApproveAll(db *gorm.DB) (int64, error) {
	if db == nil {
		return 0, ErrDBNil
	}

	result := db.Model(&models.Image{}).
		Where("status = ?", models.StatusPending).
		Update("status", models.StatusApproved)

	return result.RowsAffected, result.Error
}

// SetCategory moves an image to another category.
func SetCategory(db *gorm.DB, id uint64, category models.Category) error {
	if db == nil {
		return ErrDBNil
	}

	if !category.Valid() {
		return ErrInvalidCategory
	}

	if _, err := Get(db, id); err != nil {
		return err
	}

	return db.Model(&models.Image{}).Where(idQuery, id).Update("category", category).Error
}

// IncrementViews counts one view and recomputes the heat score.
func IncrementViews(db *gorm.DB, id uint64) (*models.Image, error) {
	return bump(db, id, "views_count")
}

// IncrementCopies counts one prompt copy and recomputes the heat score.
func IncrementCopies(db *gorm.DB, id uint64) (*models.Image, error) {
	return bump(db, id, "copies_count")
}

// bump increments column in the database and derives the heat score from the stored
// counters, so concurrent bumps never lose a count.
func bump(db *gorm.DB, id uint64, column string) (*models.Image, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var img models.Image

	err := db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Image{}).
			Where(idQuery, id).
			UpdateColumn(column, gorm.Expr(column+" + ?", 1))
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return ErrImageNotFound
		}

		if err := tx.Model(&models.Image{}).
			Where(idQuery, id).
			UpdateColumn("heat_score", gorm.Expr("views_count * ? + copies_count * ?",
				models.HeatPerView, models.HeatPerCopy)).Error; err != nil {
			return err
		}

		return tx.Take(&img, id).Error
	})
	if err != nil {
		return nil, err
	}

	return &img, nil
}

// FindDuplicate reports whether an image with the same title and author, or the same
// main file path, exists.
func FindDuplicate(db *gorm.DB, title, author, filePath string) (bool, error) {
	if db == nil {
		return false, ErrDBNil
	}

	q := db.Model(&models.Image{}).Where("title = ? AND author = ?", title, author)
	if filePath != "" {
		q = q.Or("file_path = ?", filePath)
	}

	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}

	return n > 0, nil
}

// Stats are the dashboard counters.
type Stats struct {
	Images   int64
	Pending  int64
	Approved int64
	Tags     int64
}

// Count returns the dashboard counters.
func Count(db *gorm.DB) (Stats, error) {
	var s Stats

	if db == nil {
		return s, ErrDBNil
	}

	type row struct {
		Status models.Status
		N      int64
	}

	var rows []row
	if err := db.Model(&models.Image{}).Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return s, err
	}

	for _, r := range rows {
		s.Images += r.N

		switch r.Status {
		case models.StatusPending:
			s.Pending = r.N
		case models.StatusApproved:
			s.Approved = r.N
		}
	}

	return s, db.Model(&models.Tag{}).Count(&s.Tags).Error
}

// MissingPlaceholder returns up to limit images without a placeholder, lowest id first.
func MissingPlaceholder(db *gorm.DB, afterID uint64, limit int) ([]models.Image, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var out []models.Image

	return out, db.Where("(lqip_data IS NULL OR lqip_data = '') AND id > ?", afterID).
		Order("id").Limit(limit).Find(&out).Error
}
