package config

import (
	"time"

	"github.com/prompt-manager/prompt-manager/internal/logger"
)

const (
	// StorageLocal keeps uploads on the local filesystem.
	StorageLocal = "local"
	// StorageS3 keeps uploads in an S3 compatible bucket.
	StorageS3 = "s3"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	Storage   Storage
	Upload    Upload
	Admin     Admin
}

// Webserver implement webserver settings.
type Webserver struct {
	BrowseStatic   bool    // enable static file browsing (for development purposes only)
	DisableRecover bool    // disable recover middleware
	Port           int     // listening port for the webserver
	ShutDownTime   int     // wait time for shutdown
	URL            string  // base url for the webserver
	BodyLimitMB    int     // max request body size, uploads and archive imports included
	DataDir        string  // scratch directory for archive imports
	Session        Session // session settings
}

// Storage selects and configures the asset store backend.
type Storage struct {
	Type         string // local or s3
	UploadFolder string // root directory of the local backend
	PublicPrefix string // url prefix local files are served under
	S3           S3
}

// S3 holds the object storage settings.
type S3 struct {
	Endpoint    string
	AccessKey   string
	SecretKey   string
	Bucket      string
	Region      string
	UseSSL      bool
	Domain      string // public base url, defaults to endpoint/bucket
	ThumbSuffix string // appended to thumbnail urls, e.g. an image-processing style
}

// Upload holds the static defaults for the runtime (hot reloadable) settings.
// Values stored in the database take precedence.
type Upload struct {
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
	AllowSensitiveToggle  bool
	ApprovalGallery       bool
	ApprovalTemplate      bool
}

// Admin is the account seeded on first start.
type Admin struct {
	Username string
	Password string
}
