// Package media produces the derivatives of an uploaded image: the normalized main
// copy, the thumbnail and the inline placeholder.
//
// Every function returns a new image or new bytes, the source image is never modified.
// JPEG has no alpha channel, transparent pixels are composed onto white first.
package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // register decoder, the first frame of animations is used
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

const (
	// PlaceholderBox is the bounding box of the inline placeholder.
	PlaceholderBox = 20
	// PlaceholderQuality is the JPEG quality of the inline placeholder.
	PlaceholderQuality = 30
	// placeholderBlur softens blocky artifacts once the browser upscales the placeholder.
	placeholderBlur = 0.6

	dataURLPrefix = "data:image/jpeg;base64,"
)

// Options controls Normalize.
type Options struct {
	MaxDimension int
	Quality      int
	Compress     bool
}

// Decode decodes data with every registered format.
// The format name is returned as reported by image.Decode, e.g. "png".
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}

	return img, format, nil
}

// Normalize returns the stored main copy of an upload. With compression disabled the
// original bytes are returned unchanged and converted is false. Otherwise the image is
// scaled down to fit MaxDimension (never up) and encoded as JPEG.
func Normalize(src image.Image, original []byte, opts Options) (out []byte, converted bool, err error) {
	if !opts.Compress {
		return original, false, nil
	}

	img := src

	b := src.Bounds()
	if opts.MaxDimension > 0 && (b.Dx() > opts.MaxDimension || b.Dy() > opts.MaxDimension) {
		img = imaging.Fit(src, opts.MaxDimension, opts.MaxDimension, imaging.Lanczos)
	}

	out, err = encodeJPEG(img, opts.Quality)
	if err != nil {
		return nil, false, &EncodeError{Op: "normalize", Err: err}
	}

	return out, true, nil
}

// Thumbnail returns a JPEG whose longer edge is at most box.
func Thumbnail(src image.Image, box, quality int) ([]byte, error) {
	if box < 1 {
		return nil, &EncodeError{Op: "thumbnail", Err: fmt.Errorf("invalid box size %d", box)} //nolint:err113
	}

	out, err := encodeJPEG(imaging.Fit(src, box, box, imaging.Lanczos), quality)
	if err != nil {
		return nil, &EncodeError{Op: "thumbnail", Err: err}
	}

	return out, nil
}

// Placeholder returns a tiny blurred JPEG as a data url, or "" when none can be made.
func Placeholder(src image.Image) string {
	if src == nil || src.Bounds().Empty() {
		return ""
	}

	small := imaging.Blur(imaging.Fit(src, PlaceholderBox, PlaceholderBox, imaging.Box), placeholderBlur)

	out, err := encodeJPEG(small, PlaceholderQuality)
	if err != nil {
		return ""
	}

	return dataURLPrefix + base64.StdEncoding.EncodeToString(out)
}

// PlaceholderFromBytes decodes data and returns its placeholder, "" on any failure.
func PlaceholderFromBytes(data []byte) string {
	img, _, err := Decode(data)
	if err != nil {
		return ""
	}

	return Placeholder(img)
}

// flatten composes img onto an opaque white canvas of the same size.
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), color.White)

	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	quality = min(max(quality, 1), 100) //nolint:mnd

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flatten(img), imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err //nolint:wrapcheck
	}

	return buf.Bytes(), nil
}
