package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func projectEtc(t *testing.T) string {
	t.Helper()

	projectRoot, err := filepath.Abs("../../")
	require.NoError(t, err)

	return filepath.Join(projectRoot, "etc") + string(filepath.Separator)
}

func TestReadConfig(t *testing.T) {
	cfg, err := ReadConfig(projectEtc(t))
	require.NoError(t, err)

	assert.Equal(t, "Prompt Manager", cfg.Title)
	assert.Equal(t, 8080, cfg.Webserver.Port)
	assert.Equal(t, 24*time.Hour, cfg.Webserver.Session.ExpiryTime)
	assert.Equal(t, EngineSQLite, cfg.DB.GormEngine)
	assert.Equal(t, StorageLocal, cfg.Storage.Type)

	assert.Equal(t, 1600, cfg.Upload.ImgMaxDimension)
	assert.Equal(t, 85, cfg.Upload.ImgQuality)
	assert.Equal(t, 10, cfg.Upload.MaxRefImages)
	assert.Equal(t, "100 per hour", cfg.Upload.UploadRateLimit)
	assert.True(t, cfg.Upload.ApprovalGallery)

	assert.Equal(t, "info", cfg.Log.LogLevel)
	assert.Equal(t, "prompt-manager", cfg.Log.ServiceName)
	assert.Equal(t, "access.log", cfg.Log.File.Access.File)
	assert.True(t, cfg.Log.Console.Enabled)
}

func TestReadConfigMissingFile(t *testing.T) {
	_, err := ReadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestReadConfigDefaultsForMissingKeys(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, mainConfigFile), []byte("Title = \"Tiny\"\n"), 0o600))

	cfg, err := ReadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "Tiny", cfg.Title)
	assert.Equal(t, 8080, cfg.Webserver.Port)
	assert.Equal(t, "static/uploads", cfg.Storage.UploadFolder)
	assert.Equal(t, 24, cfg.Upload.ItemsPerPage)
	assert.Equal(t, "admin", cfg.Admin.Username)
}

func TestReadConfigWithEnvOverride(t *testing.T) {
	t.Setenv("PROMPT_MANAGER_DB_PASSWORD", "s3cret")
	t.Setenv("PROMPT_MANAGER_UPLOAD_IMGQUALITY", "70")

	cfg, err := ReadConfig(projectEtc(t))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.DB.Password)
	assert.Equal(t, 70, cfg.Upload.ImgQuality)
}

func TestReadConfigWithJSONOverride(t *testing.T) {
	t.Setenv(EnvConfigJSON, `{"Title":"Test Override","Webserver":{"Port":9090}}`)

	cfg, err := ReadConfig(projectEtc(t))
	require.NoError(t, err)

	assert.Equal(t, "Test Override", cfg.Title)
	assert.Equal(t, 9090, cfg.Webserver.Port)
	// untouched keys survive the merge
	assert.Equal(t, "http://localhost:8080", cfg.Webserver.URL)
}

func TestReadConfigWithBrokenJSONOverride(t *testing.T) {
	t.Setenv(EnvConfigJSON, `{"Title":`)

	_, err := ReadConfig(projectEtc(t))
	assert.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		return Config{
			Webserver: Webserver{Port: 8080, URL: "http://localhost:8080"},
			Storage:   Storage{UploadFolder: "static/uploads"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Webserver.Port = 0 }, wantErr: ErrWebServerPortCanNotBeZero},
		{name: "missing URL", mutate: func(c *Config) { c.Webserver.URL = "" }, wantErr: ErrEmptyURL},
		{name: "unknown engine", mutate: func(c *Config) { c.DB.GormEngine = "oracle" }, wantErr: ErrUnknownDBEngine},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Type = "ftp" }, wantErr: ErrUnknownStorageType},
		{name: "local without folder", mutate: func(c *Config) { c.Storage.UploadFolder = "" }, wantErr: ErrEmptyUploadFolder},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Storage.Type = StorageS3 }, wantErr: ErrEmptyBucket},
		{
			name: "s3 with bucket",
			mutate: func(c *Config) {
				c.Storage.Type = StorageS3
				c.Storage.S3.Bucket = "gallery"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)

			err := validate(&c)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	c := Config{Webserver: Webserver{Port: 1, URL: "http://x"}, Storage: Storage{UploadFolder: "u"}}

	require.NoError(t, validate(&c))
	assert.Equal(t, 5, c.Webserver.ShutDownTime)
	assert.Equal(t, EngineSQLite, c.DB.GormEngine)
	assert.Equal(t, StorageLocal, c.Storage.Type)
}

func TestDumpConfig(t *testing.T) {
	cfg := Config{
		Title:     "Test",
		DevMode:   true,
		Webserver: Webserver{Port: 8080, URL: "http://localhost:8080"},
	}

	tomlStr, err := DumpConfig(&cfg)
	require.NoError(t, err)
	assert.Contains(t, tomlStr, "Test")
	assert.Contains(t, tomlStr, "[Webserver]")
}

func TestDumpConfigJSON(t *testing.T) {
	cfg := Config{
		Title:     "Test",
		Webserver: Webserver{Port: 8080, URL: "http://localhost:8080"},
	}

	jsonStr, err := DumpConfigJSON(&cfg)
	require.NoError(t, err)
	assert.Contains(t, jsonStr, `"Title": "Test"`)
}
