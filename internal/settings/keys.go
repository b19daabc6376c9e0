package settings

// Setting names as stored in the settings table.
const (
	KeyImgMaxDimension       = "img_max_dimension"
	KeyImgQuality            = "img_quality"
	KeyEnableImgCompress     = "enable_img_compress"
	KeyMaxRefImages          = "max_ref_images"
	KeyThumbSize             = "thumb_size"
	KeyThumbQuality          = "thumb_quality"
	KeyItemsPerPage          = "items_per_page"
	KeyAdminPerPage          = "admin_per_page"
	KeyUseThumbnailInPreview = "use_thumbnail_in_preview"
	KeyUploadRateLimit       = "upload_rate_limit"
	KeyLoginRateLimit        = "login_rate_limit"
	KeyApprovalGallery       = "approval_gallery"
	KeyApprovalTemplate      = "approval_template"
	KeyAllowSensitiveToggle  = "allow_sensitive_toggle"
)

const (
	kindInt = iota
	kindBool
	kindString
)

// key describes one setting: its type, the accepted int range and where it lives in Values.
type key struct {
	kind     int
	min, max int // ints only, max 0 means unbounded
	intPtr   func(v *Values) *int
	boolPtr  func(v *Values) *bool
	strPtr   func(v *Values) *string
	validate func(s string) error // strings only
	fallback string               // strings only, used when the static value is invalid
}

var keys = map[string]key{ //nolint:gochecknoglobals
	KeyImgMaxDimension: {kind: kindInt, min: 1, intPtr: func(v *Values) *int { return &v.ImgMaxDimension }},
	KeyImgQuality:      {kind: kindInt, min: 1, max: 100, intPtr: func(v *Values) *int { return &v.ImgQuality }},
	KeyMaxRefImages:    {kind: kindInt, min: 1, intPtr: func(v *Values) *int { return &v.MaxRefImages }},
	KeyThumbSize:       {kind: kindInt, min: 32, intPtr: func(v *Values) *int { return &v.ThumbSize }},
	KeyThumbQuality:    {kind: kindInt, min: 1, max: 100, intPtr: func(v *Values) *int { return &v.ThumbQuality }},
	KeyItemsPerPage:    {kind: kindInt, min: 1, intPtr: func(v *Values) *int { return &v.ItemsPerPage }},
	KeyAdminPerPage:    {kind: kindInt, min: 1, intPtr: func(v *Values) *int { return &v.AdminPerPage }},

	KeyEnableImgCompress:     {kind: kindBool, boolPtr: func(v *Values) *bool { return &v.EnableImgCompress }},
	KeyUseThumbnailInPreview: {kind: kindBool, boolPtr: func(v *Values) *bool { return &v.UseThumbnailInPreview }},
	KeyApprovalGallery:       {kind: kindBool, boolPtr: func(v *Values) *bool { return &v.ApprovalGallery }},
	KeyApprovalTemplate:      {kind: kindBool, boolPtr: func(v *Values) *bool { return &v.ApprovalTemplate }},
	KeyAllowSensitiveToggle:  {kind: kindBool, boolPtr: func(v *Values) *bool { return &v.AllowSensitiveToggle }},

	KeyUploadRateLimit: {
		kind:     kindString,
		strPtr:   func(v *Values) *string { return &v.UploadRateLimit },
		validate: validateRate,
		fallback: "100 per hour",
	},
	KeyLoginRateLimit: {
		kind:     kindString,
		strPtr:   func(v *Values) *string { return &v.LoginRateLimit },
		validate: validateRate,
		fallback: "10 per minute",
	},
}

func (k key) clamp(n int) int {
	if n < k.min {
		n = k.min
	}

	if k.max > 0 && n > k.max {
		n = k.max
	}

	return n
}

func validateRate(s string) error {
	_, err := ParseRate(s)

	return err
}
