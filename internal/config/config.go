// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes single value environment overrides, e.g. PROMPT_MANAGER_DB_PASSWORD.
	EnvPrefix = "PROMPT_MANAGER"

	// EnvConfigJSON holds a complete or partial JSON document merged over the file config.
	EnvConfigJSON = "PROMPT_MANAGER_CONFIG_JSON"

	mainConfigFile = "main.toml"
)

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c             Config
		JSONConfigEnv string
		err           error
	)

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(path, mainConfigFile))
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	if err = v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode main config file")
	}

	// override it from env
	JSONConfigEnv = os.Getenv(EnvConfigJSON)

	if JSONConfigEnv != "" {
		c, err = decodeAndMergeConfig(c, JSONConfigEnv)
		if err != nil {
			return c, err
		}
	}

	return c, validate(&c)
}

// setDefaults registers every key viper should know about, so that AutomaticEnv
// can override keys missing from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("Title", "Prompt Manager")

	v.SetDefault("DB.GormEngine", EngineSQLite)
	v.SetDefault("DB.Path", "data/prompt_manager.sqlite")
	v.SetDefault("DB.Host", "")
	v.SetDefault("DB.Port", 0)
	v.SetDefault("DB.User", "")
	v.SetDefault("DB.Password", "")
	v.SetDefault("DB.Name", "")
	v.SetDefault("DB.Extras", "")

	v.SetDefault("Webserver.Port", 8080) //nolint:mnd
	v.SetDefault("Webserver.URL", "http://localhost:8080")
	v.SetDefault("Webserver.ShutDownTime", 5) //nolint:mnd
	v.SetDefault("Webserver.BodyLimitMB", 512) //nolint:mnd
	v.SetDefault("Webserver.DataDir", "data")
	v.SetDefault("Webserver.Session.ExpiryTime", "24h")

	v.SetDefault("Storage.Type", StorageLocal)
	v.SetDefault("Storage.UploadFolder", "static/uploads")
	v.SetDefault("Storage.PublicPrefix", "/uploads")
	v.SetDefault("Storage.S3.Endpoint", "")
	v.SetDefault("Storage.S3.AccessKey", "")
	v.SetDefault("Storage.S3.SecretKey", "")
	v.SetDefault("Storage.S3.Bucket", "")
	v.SetDefault("Storage.S3.Region", "")
	v.SetDefault("Storage.S3.Domain", "")

	v.SetDefault("Upload.ImgMaxDimension", 1600) //nolint:mnd
	v.SetDefault("Upload.ImgQuality", 85)        //nolint:mnd
	v.SetDefault("Upload.EnableImgCompress", true)
	v.SetDefault("Upload.MaxRefImages", 10) //nolint:mnd
	v.SetDefault("Upload.ThumbSize", 400)   //nolint:mnd
	v.SetDefault("Upload.ThumbQuality", 88) //nolint:mnd
	v.SetDefault("Upload.ItemsPerPage", 24) //nolint:mnd
	v.SetDefault("Upload.AdminPerPage", 12) //nolint:mnd
	v.SetDefault("Upload.UseThumbnailInPreview", true)
	v.SetDefault("Upload.UploadRateLimit", "100 per hour")
	v.SetDefault("Upload.LoginRateLimit", "10 per minute")
	v.SetDefault("Upload.AllowSensitiveToggle", true)
	v.SetDefault("Upload.ApprovalGallery", true)
	v.SetDefault("Upload.ApprovalTemplate", true)

	v.SetDefault("Admin.Username", "admin")
	v.SetDefault("Admin.Password", "changeme")

	v.SetDefault("Log.LogLevel", "info")
	v.SetDefault("Log.AppName", "prompt-manager")
	v.SetDefault("Log.ServiceName", "prompt-manager")
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	err := json.Unmarshal([]byte(configAsJSON), &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	return c, nil
}

// DumpConfig config as TOML String.
func DumpConfig(c *Config) (string, error) {
	var buffer bytes.Buffer
	t := toml.NewEncoder(&buffer)

	if err := t.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c *Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate minimal config settings.
// Fills in defaults where a zero value has an obvious meaning.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = 5 // set default of 5 seconds
	}

	switch c.DB.GormEngine {
	case "":
		c.DB.GormEngine = EngineSQLite
	case EngineSQLite, EngineMySQL, EnginePostgres:
	default:
		return errors.Wrap(ErrUnknownDBEngine, invalidErrMessage)
	}

	switch c.Storage.Type {
	case "", StorageLocal:
		c.Storage.Type = StorageLocal

		if c.Storage.UploadFolder == "" {
			return errors.Wrap(ErrEmptyUploadFolder, invalidErrMessage)
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return errors.Wrap(ErrEmptyBucket, invalidErrMessage)
		}
	default:
		return errors.Wrap(ErrUnknownStorageType, invalidErrMessage)
	}

	return nil
}
