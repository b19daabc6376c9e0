package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/prompt-manager/prompt-manager/internal/config"
	"github.com/prompt-manager/prompt-manager/internal/db/dbtest"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/ingest"
	"github.com/prompt-manager/prompt-manager/internal/settings"
	"github.com/prompt-manager/prompt-manager/internal/storage"
)

const root = "/srv/uploads"

type env struct {
	db       *gorm.DB
	fs       afero.Fs
	store    storage.Store
	settings *settings.Service
	svc      *ingest.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()

	fsys := afero.NewMemMapFs()

	store, err := storage.NewLocal(fsys, root, "/uploads")
	require.NoError(t, err)

	db := dbtest.Open(t)
	s := settings.New(db, settings.Defaults(config.Upload{
		ImgMaxDimension:   1600,
		ImgQuality:        85,
		EnableImgCompress: true,
		MaxRefImages:      10,
		ThumbSize:         32,
		ThumbQuality:      80,
		ItemsPerPage:      24,
		AdminPerPage:      12,
		ApprovalGallery:   true,
		ApprovalTemplate:  true,
	}))

	return &env{db: db, fs: fsys, store: store, settings: s, svc: ingest.New(db, store, s)}
}

// files lists the stored file names.
func (e *env) files(t *testing.T) []string {
	t.Helper()

	infos, err := afero.ReadDir(e.fs, root)
	require.NoError(t, err)

	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		names = append(names, fi.Name())
	}

	sort.Strings(names)

	return names
}

func pngUpload(t *testing.T, name string, w, h int) ingest.Upload {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 3), G: uint8(y * 5), B: 90, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return ingest.Upload{Name: name, Data: buf.Bytes()}
}

func meta(title string, tags ...string) ingest.Metadata {
	return ingest.Metadata{
		Title:  title,
		Author: "ann",
		Prompt: "a lighthouse at dusk",
		Type:   "text2img",
		Tags:   tags,
	}
}

func TestCreateStoresDerivativesRefsAndTags(t *testing.T) {
	e := newEnv(t)

	img, err := e.svc.Create(context.Background(), ingest.CreateInput{
		Main: pngUpload(t, "photo.PNG", 64, 48),
		Meta: meta("dusk", "sea", "light", "sea"),
		Refs: []ingest.Upload{
			{Name: "a.png", Data: []byte("raw reference a")},
			{Name: "empty.png"},
			{Name: "b.webp", Data: []byte("raw reference b")},
		},
	})
	require.NoError(t, err)

	assert.NotZero(t, img.ID)
	assert.Equal(t, models.StatusPending, img.Status)
	assert.Equal(t, models.TypeTxt2Img, img.Type)
	assert.Equal(t, models.CategoryGallery, img.Category)
	assert.True(t, strings.HasSuffix(img.FilePath, ".jpg"))
	assert.Equal(t, storage.ThumbName(img.FilePath), img.ThumbnailPath)
	assert.True(t, strings.HasPrefix(img.LQIPData, "data:image/jpeg;base64,"))
	assert.ElementsMatch(t, []string{"sea", "light"}, img.TagNames())

	require.Len(t, img.Refs, 2)
	assert.Equal(t, 0, img.Refs[0].Position)
	assert.Equal(t, 1, img.Refs[1].Position)

	// references are stored unchanged
	data, err := afero.ReadFile(e.fs, root+"/"+img.Refs[1].FilePath)
	require.NoError(t, err)
	assert.Equal(t, "raw reference b", string(data))

	thumb, err := afero.ReadFile(e.fs, root+"/"+img.ThumbnailPath)
	require.NoError(t, err)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.LessOrEqual(t, max(cfg.Width, cfg.Height), 32)

	assert.Len(t, e.files(t), 4)
}

func TestCreateKeepsOriginalWithoutCompression(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.settings.SetBool(settings.KeyEnableImgCompress, false))

	up := pngUpload(t, "orig.png", 20, 10)

	img, err := e.svc.Create(context.Background(), ingest.CreateInput{Main: up, Meta: meta("orig")})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(img.FilePath, ".png"))

	data, err := afero.ReadFile(e.fs, root+"/"+img.FilePath)
	require.NoError(t, err)
	assert.Equal(t, up.Data, data)
}

func TestCreateStatusFollowsApprovalSwitch(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.settings.SetBool(settings.KeyApprovalGallery, false))

	gallery, err := e.svc.Create(context.Background(), ingest.CreateInput{
		Main: pngUpload(t, "g.png", 8, 8),
		Meta: meta("gallery"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, gallery.Status)

	m := meta("template")
	m.Category = string(models.CategoryTemplate)

	template, err := e.svc.Create(context.Background(), ingest.CreateInput{
		Main: pngUpload(t, "t.png", 8, 8),
		Meta: m,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, template.Status)
	assert.Equal(t, models.CategoryTemplate, template.Category)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name string
		in   ingest.CreateInput
		want error
	}{
		{
			name: "undecodable",
			in:   ingest.CreateInput{Main: ingest.Upload{Name: "x.png", Data: []byte("nope")}, Meta: meta("x")},
			want: ingest.ErrUndecodable,
		},
		{
			name: "missing image",
			in:   ingest.CreateInput{Meta: meta("x")},
			want: ingest.ErrMissingImage,
		},
		{
			name: "missing title",
			in:   ingest.CreateInput{Main: pngUpload(t, "a.png", 4, 4), Meta: meta("  ")},
		},
		{
			name: "bad category",
			in: ingest.CreateInput{
				Main: pngUpload(t, "a.png", 4, 4),
				Meta: ingest.Metadata{Title: "x", Category: "other"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Create(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, ingest.IsValidation(err))

			if tt.want != nil {
				require.ErrorIs(t, err, tt.want)
			}
		})
	}

	assert.Empty(t, e.files(t))

	var n int64
	require.NoError(t, e.db.Model(&models.Image{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreateIgnoresReferencesBeyondCap(t *testing.T) {
	e := newEnv(t)
	_, err := e.settings.SetInt(settings.KeyMaxRefImages, 2)
	require.NoError(t, err)

	img, err := e.svc.Create(context.Background(), ingest.CreateInput{
		Main: pngUpload(t, "m.png", 8, 8),
		Meta: meta("capped"),
		Refs: []ingest.Upload{
			{Name: "1.png", Data: []byte("1")},
			{Name: "2.png", Data: []byte("2")},
			{Name: "3.png", Data: []byte("3")},
		},
	})
	require.NoError(t, err)
	assert.Len(t, img.Refs, 2)
	assert.Len(t, e.files(t), 4)
}

// failingStore fails every Save after the first ok calls.
type failingStore struct {
	storage.Store
	ok int
}

var errDiskFull = errors.New("disk full")

func (f *failingStore) Save(ctx context.Context, data []byte, name string) (string, error) {
	if f.ok == 0 {
		return "", &storage.Error{Op: "save", Path: name, Err: errDiskFull}
	}

	f.ok--

	return f.Store.Save(ctx, data, name)
}

func TestCreateRemovesWrittenFilesOnFailure(t *testing.T) {
	e := newEnv(t)
	svc := ingest.New(e.db, &failingStore{Store: e.store, ok: 3}, e.settings)

	_, err := svc.Create(context.Background(), ingest.CreateInput{
		Main: pngUpload(t, "m.png", 8, 8),
		Meta: meta("fails"),
		Refs: []ingest.Upload{
			{Name: "1.png", Data: []byte("1")},
			{Name: "2.png", Data: []byte("2")},
		},
	})
	require.ErrorIs(t, err, errDiskFull)

	var se *storage.Error
	require.ErrorAs(t, err, &se)

	assert.Empty(t, e.files(t))

	var n int64
	require.NoError(t, e.db.Model(&models.Image{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreateRemovesWrittenFilesWhenTransactionFails(t *testing.T) {
	e := newEnv(t)

	errLinkTags := errors.New("link tags failed")
	require.NoError(t, e.db.Callback().Create().Before("gorm:create").Register("test:fail_image_tags", func(d *gorm.DB) {
		if d.Statement.Table == "image_tags" {
			_ = d.AddError(errLinkTags)
		}
	}))

	_, err := e.svc.Create(context.Background(), ingest.CreateInput{
		Main: pngUpload(t, "m.png", 8, 8),
		Meta: meta("rolled back", "a", "b"),
		Refs: []ingest.Upload{{Name: "1.png", Data: []byte("1")}},
	})
	require.ErrorIs(t, err, errLinkTags)

	assert.Empty(t, e.files(t))

	for _, model := range []any{&models.Image{}, &models.ReferenceImage{}, &models.Tag{}, &models.ImageTag{}} {
		var n int64
		require.NoError(t, e.db.Model(model).Count(&n).Error)
		assert.Zero(t, n, "%T", model)
	}
}

func TestUpdateFailureLeavesImageUntouched(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	img, err := e.svc.Create(ctx, ingest.CreateInput{
		Main: pngUpload(t, "m.png", 8, 8),
		Meta: meta("before", "a", "b"),
		Refs: []ingest.Upload{
			{Name: "1.png", Data: []byte("1")},
			{Name: "2.png", Data: []byte("2")},
		},
	})
	require.NoError(t, err)

	before := e.files(t)
	require.Len(t, before, 4)

	// main and thumbnail are written, the new reference is not
	svc := ingest.New(e.db, &failingStore{Store: e.store, ok: 2}, e.settings)
	main := pngUpload(t, "n.png", 12, 12)

	_, err = svc.Update(ctx, ingest.UpdateInput{
		ID:           img.ID,
		Main:         &main,
		Meta:         meta("after", "c"),
		Refs:         []ingest.Upload{{Name: "3.png", Data: []byte("3")}},
		DeleteRefIDs: []uint64{img.Refs[0].ID},
	})
	require.ErrorIs(t, err, errDiskFull)

	assert.Equal(t, before, e.files(t))

	var got models.Image
	require.NoError(t, e.db.Preload("Tags").Preload("Refs").First(&got, img.ID).Error)
	assert.Equal(t, "before", got.Title)
	assert.Equal(t, img.FilePath, got.FilePath)
	assert.Equal(t, img.ThumbnailPath, got.ThumbnailPath)
	assert.ElementsMatch(t, []string{"a", "b"}, got.TagNames())

	require.Len(t, got.Refs, 2)

	refIDs := []uint64{got.Refs[0].ID, got.Refs[1].ID}
	assert.ElementsMatch(t, []uint64{img.Refs[0].ID, img.Refs[1].ID}, refIDs)

	var n int64
	require.NoError(t, e.db.Model(&models.Tag{}).Where("name = ?", "c").Count(&n).Error)
	assert.Zero(t, n)
}

func TestUpdateReplacesFilesAndRenumbersRefs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	img, err := e.svc.Create(ctx, ingest.CreateInput{
		Main: pngUpload(t, "m.png", 32, 32),
		Meta: meta("before", "old"),
		Refs: []ingest.Upload{
			{Name: "1.png", Data: []byte("1")},
			{Name: "2.png", Data: []byte("2")},
			{Name: "3.png", Data: []byte("3")},
		},
	})
	require.NoError(t, err)

	oldMain, oldThumb, deleted := img.FilePath, img.ThumbnailPath, img.Refs[0]

	m := meta("after", "new", "old")
	m.Category = string(models.CategoryTemplate)
	m.Type = "img2img"
	main := pngUpload(t, "n.png", 12, 12)

	updated, err := e.svc.Update(ctx, ingest.UpdateInput{
		ID:           img.ID,
		Main:         &main,
		Meta:         m,
		Refs:         []ingest.Upload{{Name: "4.png", Data: []byte("4")}},
		DeleteRefIDs: []uint64{deleted.ID, 424242},
	})
	require.NoError(t, err)

	assert.Equal(t, "after", updated.Title)
	assert.Equal(t, models.CategoryTemplate, updated.Category)
	assert.Equal(t, models.TypeImg2Img, updated.Type)
	assert.Equal(t, models.StatusPending, updated.Status)
	assert.NotEqual(t, oldMain, updated.FilePath)
	assert.ElementsMatch(t, []string{"new", "old"}, updated.TagNames())

	var refs []models.ReferenceImage
	require.NoError(t, e.db.Where("image_id = ?", img.ID).Order("position").Find(&refs).Error)
	require.Len(t, refs, 3)

	for i, r := range refs {
		assert.Equal(t, i, r.Position)
	}

	assert.Equal(t, img.Refs[1].ID, refs[0].ID)
	assert.Equal(t, img.Refs[2].ID, refs[1].ID)

	for _, gone := range []string{oldMain, oldThumb, deleted.FilePath} {
		_, err := e.fs.Stat(root + "/" + gone)
		assert.True(t, os.IsNotExist(err), gone)
	}

	assert.Len(t, e.files(t), 5)
}

func TestUpdateKeepsFilesWithoutNewMain(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	img, err := e.svc.Create(ctx, ingest.CreateInput{Main: pngUpload(t, "m.png", 8, 8), Meta: meta("keep", "a")})
	require.NoError(t, err)

	m := meta("keep")
	m.Status = string(models.StatusApproved)

	updated, err := e.svc.Update(ctx, ingest.UpdateInput{ID: img.ID, Meta: m})
	require.NoError(t, err)
	assert.Equal(t, img.FilePath, updated.FilePath)
	assert.Equal(t, img.LQIPData, updated.LQIPData)
	assert.Equal(t, models.StatusApproved, updated.Status)
	assert.Empty(t, updated.Tags)

	// status never moves back
	m.Status = string(models.StatusPending)
	updated, err = e.svc.Update(ctx, ingest.UpdateInput{ID: img.ID, Meta: m})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, updated.Status)

	assert.Len(t, e.files(t), 2)
}

func TestUpdateRespectsRemainingCapacity(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.settings.SetInt(settings.KeyMaxRefImages, 2)
	require.NoError(t, err)

	img, err := e.svc.Create(ctx, ingest.CreateInput{
		Main: pngUpload(t, "m.png", 8, 8),
		Meta: meta("cap"),
		Refs: []ingest.Upload{{Name: "1.png", Data: []byte("1")}},
	})
	require.NoError(t, err)

	updated, err := e.svc.Update(ctx, ingest.UpdateInput{
		ID:   img.ID,
		Meta: meta("cap"),
		Refs: []ingest.Upload{{Name: "2.png", Data: []byte("2")}, {Name: "3.png", Data: []byte("3")}},
	})
	require.NoError(t, err)
	assert.Len(t, updated.Refs, 2)
}

func TestUpdateUnknownImage(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.Update(context.Background(), ingest.UpdateInput{ID: 99, Meta: meta("x")})
	require.ErrorIs(t, err, ingest.ErrNotFound)
}

func TestDeleteTwice(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	img, err := e.svc.Create(ctx, ingest.CreateInput{
		Main: pngUpload(t, "m.png", 8, 8),
		Meta: meta("gone", "t"),
		Refs: []ingest.Upload{{Name: "1.png", Data: []byte("1")}},
	})
	require.NoError(t, err)
	require.Len(t, e.files(t), 3)

	ok, err := e.svc.Delete(ctx, img.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.svc.Delete(ctx, img.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Empty(t, e.files(t))

	for _, m := range []any{&models.Image{}, &models.ReferenceImage{}, &models.ImageTag{}} {
		var n int64
		require.NoError(t, e.db.Model(m).Count(&n).Error)
		assert.Zero(t, n)
	}
}

func TestDeleteMany(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a, err := e.svc.Create(ctx, ingest.CreateInput{Main: pngUpload(t, "a.png", 8, 8), Meta: meta("a")})
	require.NoError(t, err)
	b, err := e.svc.Create(ctx, ingest.CreateInput{Main: pngUpload(t, "b.png", 8, 8), Meta: meta("b")})
	require.NoError(t, err)

	n, err := e.svc.DeleteMany(ctx, []uint64{a.ID, 777, b.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
