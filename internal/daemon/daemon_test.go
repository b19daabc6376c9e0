package daemon

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prompt-manager/prompt-manager/internal/config"
	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()

	return &config.Config{
		Title: "Prompt Manager",
		DB: config.DB{
			GormEngine: config.EngineSQLite,
			Path:       filepath.Join(dir, "db", "test.sqlite"),
		},
		Storage: config.Storage{
			Type:         config.StorageLocal,
			UploadFolder: filepath.Join(dir, "uploads"),
			PublicPrefix: "/uploads",
		},
		Upload: config.Upload{ThumbSize: 64, ItemsPerPage: 24, AdminPerPage: 12},
		Admin:  config.Admin{Username: "root", Password: "hunter22"},
	}
}

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	require.ErrorIs(t, err, ErrNilConfig)
}

func TestNewMigratesAndSeedsOnce(t *testing.T) {
	cfg := testConfig(t)

	d, err := New(context.Background(), cfg)
	require.NoError(t, err)

	assert.IsType(t, &storage.Local{}, d.Store)
	assert.NotNil(t, d.Maintenance)

	var user models.User
	require.NoError(t, d.DB.Where("username = ?", "root").First(&user).Error)
	assert.True(t, user.Active)
	assert.True(t, user.VerifyPassword("hunter22"))
	require.NoError(t, d.Close())

	// a second start keeps the existing account
	cfg.Admin.Password = "other"

	d, err = New(context.Background(), cfg)
	require.NoError(t, err)

	var count int64
	require.NoError(t, d.DB.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.NoError(t, d.DB.Where("username = ?", "root").First(&user).Error)
	assert.True(t, user.VerifyPassword("hunter22"))
	require.NoError(t, d.Close())
}

func TestSessionStorageIsMemoryForSQLite(t *testing.T) {
	assert.Nil(t, sessionStorage(testConfig(t)))
}
