package images_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/prompt-manager/prompt-manager/internal/db/controller/images"
	"github.com/prompt-manager/prompt-manager/internal/db/controller/tag"
	"github.com/prompt-manager/prompt-manager/internal/db/dbtest"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, db *gorm.DB, img models.Image, tags ...string) models.Image {
	t.Helper()

	if img.Prompt == "" {
		img.Prompt = "a prompt"
	}

	if img.FilePath == "" {
		img.FilePath = img.Title + ".jpg"
	}

	if img.Type == "" {
		img.Type = models.TypeTxt2Img
	}

	if img.Category == "" {
		img.Category = models.CategoryGallery
	}

	if img.Status == "" {
		img.Status = models.StatusApproved
	}

	img.RecomputeHeat()
	require.NoError(t, db.Create(&img).Error)

	if len(tags) > 0 {
		resolved, err := tag.Resolve(db, tags)
		require.NoError(t, err)

		for _, tg := range resolved {
			require.NoError(t, tag.Attach(db, img.ID, tg.ID))
		}
	}

	return img
}

func titles(p *images.Page) []string {
	out := make([]string, 0, len(p.Items))
	for _, i := range p.Items {
		out = append(out, i.Title)
	}

	return out
}

func TestGet(t *testing.T) {
	db := dbtest.Open(t)
	img := seed(t, db, models.Image{Title: "one"}, "b", "a")
	require.NoError(t, db.Create(&[]models.ReferenceImage{
		{ImageID: img.ID, FilePath: "r1.png", Position: 1},
		{ImageID: img.ID, FilePath: "r0.png", Position: 0},
	}).Error)

	got, err := images.Get(db, img.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.TagNames())
	require.Len(t, got.Refs, 2)
	assert.Equal(t, "r0.png", got.Refs[0].FilePath)

	_, err = images.Get(db, 404)
	require.ErrorIs(t, err, images.ErrImageNotFound)

	_, err = images.Get(nil, 1)
	require.ErrorIs(t, err, images.ErrDBNil)
}

func TestListFiltersAndSorts(t *testing.T) {
	db := dbtest.Open(t)
	seed(t, db, models.Image{Title: "old", CreatedAt: base, ViewsCount: 100}, "cat")
	seed(t, db, models.Image{Title: "new", CreatedAt: base.Add(time.Hour), Author: "alice"}, "dog")
	seed(t, db, models.Image{Title: "copied", CreatedAt: base.Add(2 * time.Hour), CopiesCount: 20, Type: models.TypeImg2Img})
	seed(t, db, models.Image{Title: "pending", CreatedAt: base.Add(3 * time.Hour), Status: models.StatusPending})
	seed(t, db, models.Image{Title: "tpl", CreatedAt: base.Add(4 * time.Hour), Category: models.CategoryTemplate})
	seed(t, db, models.Image{Title: "nsfw", CreatedAt: base.Add(5 * time.Hour)}, "spicy")

	spicy, err := tag.Find(db, []string{"spicy"})
	require.NoError(t, err)
	require.NoError(t, tag.SetSensitive(db, spicy[0].ID, true))

	gallery := images.Query{Status: models.StatusApproved, Category: models.CategoryGallery}

	tests := []struct {
		name   string
		mutate func(q *images.Query)
		want   []string
	}{
		{name: "date hides sensitive", mutate: func(*images.Query) {}, want: []string{"copied", "new", "old"}},
		{name: "sensitive included", mutate: func(q *images.Query) { q.IncludeSensitive = true }, want: []string{"nsfw", "copied", "new", "old"}},
		{name: "hot", mutate: func(q *images.Query) { q.Sort = images.SortHot }, want: []string{"copied", "old", "new"}},
		{name: "tag", mutate: func(q *images.Query) { q.Tag = "dog" }, want: []string{"new"}},
		{name: "search author", mutate: func(q *images.Query) { q.Search = "ali" }, want: []string{"new"}},
		{name: "type", mutate: func(q *images.Query) { q.Type = models.TypeImg2Img }, want: []string{"copied"}},
		{name: "oldest", mutate: func(q *images.Query) { q.Sort = images.SortOldest }, want: []string{"old", "new", "copied"}},
		{
			name:   "templates",
			mutate: func(q *images.Query) { q.Category = models.CategoryTemplate },
			want:   []string{"tpl"},
		},
		{
			name:   "pending",
			mutate: func(q *images.Query) { q.Status = models.StatusPending },
			want:   []string{"pending"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := gallery
			tt.mutate(&q)

			page, err := images.List(db, q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(page))
			assert.Equal(t, int64(len(tt.want)), page.Total)
		})
	}
}

func TestListRandomReturnsEverything(t *testing.T) {
	db := dbtest.Open(t)
	for _, title := range []string{"a", "b", "c"} {
		seed(t, db, models.Image{Title: title})
	}

	page, err := images.List(db, images.Query{Sort: images.SortRandom, IncludeSensitive: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, titles(page))
}

func TestListPagination(t *testing.T) {
	db := dbtest.Open(t)
	for i, title := range []string{"a", "b", "c", "d", "e"} {
		seed(t, db, models.Image{Title: title, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	page, err := images.List(db, images.Query{Page: 2, PerPage: 2, IncludeSensitive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, titles(page))
	assert.Equal(t, 3, page.Pages)
	assert.Equal(t, int64(5), page.Total)
	assert.True(t, page.HasPrev())
	assert.True(t, page.HasNext())

	page, err = images.List(db, images.Query{Page: 0, PerPage: 2, IncludeSensitive: true})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.False(t, page.HasPrev())
}

func TestApprove(t *testing.T) {
	db := dbtest.Open(t)
	a := seed(t, db, models.Image{Title: "a", Status: models.StatusPending})
	seed(t, db, models.Image{Title: "b", Status: models.StatusPending})
	seed(t, db, models.Image{Title: "c", Status: models.StatusPending})

	require.NoError(t, images.Approve(db, a.ID))
	require.NoError(t, images.Approve(db, a.ID))
	require.ErrorIs(t, images.Approve(db, 999), images.ErrImageNotFound)

	n, err := images.ApproveAll(db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	stats, err := images.Count(db)
	require.NoError(t, err)
	assert.Equal(t, images.Stats{Images: 3, Approved: 3}, stats)
}

func TestIncrementRecomputesHeat(t *testing.T) {
	db := dbtest.Open(t)
	img := seed(t, db, models.Image{Title: "hot", ViewsCount: 2, CopiesCount: 2})

	got, err := images.IncrementViews(db, img.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ViewsCount)
	assert.Equal(t, int64(23), got.HeatScore)

	got, err = images.IncrementCopies(db, img.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(33), got.HeatScore)

	stored, err := images.Get(db, img.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.ViewsCount)
	assert.Equal(t, int64(3), stored.CopiesCount)
	assert.Equal(t, int64(33), stored.HeatScore)

	_, err = images.IncrementViews(db, 999)
	require.ErrorIs(t, err, images.ErrImageNotFound)
}

func TestIncrementConcurrentlyKeepsEveryCount(t *testing.T) {
	db := dbtest.Open(t)
	img := seed(t, db, models.Image{Title: "busy"})

	const workers, rounds = 6, 5

	var wg sync.WaitGroup

	errs := make(chan error, 2*workers*rounds)

	for w := 0; w < workers; w++ {
		wg.Add(2)

		go func() {
			defer wg.Done()

			for i := 0; i < rounds; i++ {
				_, err := images.IncrementViews(db, img.ID)
				errs <- err
			}
		}()

		go func() {
			defer wg.Done()

			for i := 0; i < rounds; i++ {
				_, err := images.IncrementCopies(db, img.ID)
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := images.Get(db, img.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*rounds), stored.ViewsCount)
	assert.Equal(t, int64(workers*rounds), stored.CopiesCount)
	assert.Equal(t, int64(workers*rounds*(models.HeatPerView+models.HeatPerCopy)), stored.HeatScore)
}

func TestSetCategory(t *testing.T) {
	db := dbtest.Open(t)
	img := seed(t, db, models.Image{Title: "x"})

	require.NoError(t, images.SetCategory(db, img.ID, models.CategoryTemplate))
	require.ErrorIs(t, images.SetCategory(db, img.ID, "other"), images.ErrInvalidCategory)
	require.ErrorIs(t, images.SetCategory(db, 999, models.CategoryGallery), images.ErrImageNotFound)

	stored, err := images.Get(db, img.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryTemplate, stored.Category)
}

func TestFindDuplicate(t *testing.T) {
	db := dbtest.Open(t)
	seed(t, db, models.Image{Title: "sunset", Author: "bob", FilePath: "abc.jpg"})

	tests := []struct {
		title, author, path string
		want                bool
	}{
		{"sunset", "bob", "other.jpg", true},
		{"sunset", "alice", "abc.jpg", true},
		{"sunset", "alice", "other.jpg", false},
		{"sunrise", "bob", "", false},
	}

	for _, tt := range tests {
		got, err := images.FindDuplicate(db, tt.title, tt.author, tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s/%s/%s", tt.title, tt.author, tt.path)
	}
}

func TestMissingPlaceholder(t *testing.T) {
	db := dbtest.Open(t)
	a := seed(t, db, models.Image{Title: "a"})
	seed(t, db, models.Image{Title: "b", LQIPData: "data:image/jpeg;base64,xx"})
	c := seed(t, db, models.Image{Title: "c"})

	got, err := images.MissingPlaceholder(db, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID)

	got, err = images.MissingPlaceholder(db, a.ID, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c.ID, got[0].ID)
}

func TestBatches(t *testing.T) {
	db := dbtest.Open(t)
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		seed(t, db, models.Image{Title: title}, "t-"+title)
	}

	var (
		sizes []int
		seen  []string
	)

	require.NoError(t, images.Batches(db, 2, func(batch []models.Image) error {
		sizes = append(sizes, len(batch))
		for _, img := range batch {
			seen = append(seen, img.Title)
			assert.Equal(t, []string{"t-" + img.Title}, img.TagNames())
		}

		return nil
	}))

	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, seen)
}
