package gallery_test

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prompt-manager/prompt-manager/internal/db/controller/images"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/ingest"
	"github.com/prompt-manager/prompt-manager/internal/web/handler/gallery"
	"github.com/prompt-manager/prompt-manager/internal/web/handler/handlertest"
)

func listing(t *testing.T, app *fiber.App, target string) gallery.Listing {
	t.Helper()

	status, body, _ := handlertest.Do(t, app, handlertest.Request(http.MethodGet, target, nil, "", ""))
	require.Equal(t, fiber.StatusOK, status, body)

	var out gallery.Listing
	require.NoError(t, json.Unmarshal([]byte(body), &out))

	return out
}

func TestAPIListsApprovedImagesOfCategory(t *testing.T) {
	env := handlertest.New(t)
	app := env.App(&gallery.Service{})

	first := env.Image(t, ingest.Metadata{Title: "first", Status: "approved", Tags: []string{"cat"}})
	env.Image(t, ingest.Metadata{Title: "pending"})
	env.Image(t, ingest.Metadata{Title: "template", Category: "template", Status: "approved"})
	second := env.Image(t, ingest.Metadata{Title: "second", Status: "approved"})

	out := listing(t, app, gallery.APIGalleryPath)
	require.Len(t, out.Data, 2)
	assert.Equal(t, int64(2), out.Total)
	assert.Equal(t, 1, out.Pages)
	assert.Equal(t, second.ID, out.Data[0].ID)
	assert.Equal(t, first.ID, out.Data[1].ID)

	item := out.Data[1]
	assert.Equal(t, "/uploads/"+first.FilePath, item.FilePath)
	assert.Equal(t, "/uploads/"+first.ThumbnailPath, item.ThumbnailPath)
	assert.Equal(t, "approved", item.Status)
	require.Len(t, item.Tags, 1)
	assert.Equal(t, "cat", item.Tags[0].Name)
	assert.NotNil(t, item.Refs)

	templates := listing(t, app, gallery.APITemplatesPath)
	require.Len(t, templates.Data, 1)
	assert.Equal(t, "template", templates.Data[0].Title)
}

func TestAPIPagination(t *testing.T) {
	env := handlertest.New(t)
	app := env.App(&gallery.Service{})

	for _, title := range []string{"a", "b", "c"} {
		env.Image(t, ingest.Metadata{Title: title, Status: "approved"})
	}

	out := listing(t, app, gallery.APIGalleryPath+"?page=2&per_page=2")
	assert.Equal(t, 2, out.CurrentPage)
	assert.Equal(t, 2, out.Pages)
	assert.Equal(t, int64(3), out.Total)
	require.Len(t, out.Data, 1)
	assert.Equal(t, "a", out.Data[0].Title)

	capped := listing(t, app, gallery.APIGalleryPath+"?per_page=1000")
	assert.Equal(t, 1, capped.Pages)
	assert.Len(t, capped.Data, 3)
}

func TestCountersRecomputeHeat(t *testing.T) {
	env := handlertest.New(t)
	app := env.App(&gallery.Service{})

	img := env.Image(t, ingest.Metadata{Title: "hot", Status: "approved"})
	id := strconv.FormatUint(img.ID, 10)

	for _, target := range []string{"/view/", "/view/", "/copy/"} {
		status, body, _ := handlertest.Do(t, app,
			handlertest.Request(http.MethodPost, gallery.StatsPath+target+id, nil, "", ""))
		assert.Equal(t, fiber.StatusOK, status)
		assert.JSONEq(t, `{"status":"ok"}`, body)
	}

	got, err := images.Get(env.Deps.DB, img.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ViewsCount)
	assert.Equal(t, int64(1), got.CopiesCount)
	assert.Equal(t, int64(12), got.HeatScore)

	status, body, _ := handlertest.Do(t, app,
		handlertest.Request(http.MethodPost, gallery.StatsPath+"/view/9999", nil, "", ""))
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestPageRendersGallery(t *testing.T) {
	env := handlertest.New(t)
	app := env.App(&gallery.Service{})

	env.Image(t, ingest.Metadata{Title: "shown", Status: "approved", Type: "text2img"})

	for _, target := range []string{"/", "/?type=text2img&sort=hot&tag=x&q=sh", gallery.TemplatesPath + "?page=3"} {
		status, body, _ := handlertest.Do(t, app, handlertest.Request(http.MethodGet, target, nil, "", ""))
		assert.Equal(t, fiber.StatusOK, status, target)
		assert.Equal(t, "gallery", body)
	}

	page, err := images.List(env.Deps.DB, images.Query{Type: models.TypeTxt2Img})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}
