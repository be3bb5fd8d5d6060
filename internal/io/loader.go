// Image decoding, PNG export and thumbnails
package io

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	goio "io"
	"strings"
	"time"

	"github.com/nfnt/resize"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"

	"photo-booth/internal/core"
	apperrors "photo-booth/internal/errors"
)

// TimestampLayout is the YYYYMMDD_HHMMSS form used in download names
const TimestampLayout = "20060102_150405"

// DefaultMaxBytes bounds a single decoded upload
const DefaultMaxBytes = 20 << 20

var supportedFormats = []string{"jpeg", "png", "webp"}

// ImageLoader handles image decoding and encoding
type ImageLoader struct {
	logger   logrus.FieldLogger
	maxBytes int64
}

func NewImageLoader(logger logrus.FieldLogger, maxBytes int64) *ImageLoader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &ImageLoader{
		logger:   logger,
		maxBytes: maxBytes,
	}
}

// MaxBytes returns the upload size limit
func (il *ImageLoader) MaxBytes() int64 {
	return il.maxBytes
}

// Decode reads a JPEG, PNG or WEBP stream into an Image
func (il *ImageLoader) Decode(r goio.Reader) (core.Image, string, error) {
	data, err := goio.ReadAll(goio.LimitReader(r, il.maxBytes+1))
	if err != nil {
		return core.Image{}, "", apperrors.ErrMalformedImage.Wrap(err)
	}
	if int64(len(data)) > il.maxBytes {
		return core.Image{}, "", apperrors.ErrUploadTooLarge.With("max_bytes", il.maxBytes)
	}
	return il.DecodeBytes(data)
}

// DecodeBytes decodes an in-memory image
func (il *ImageLoader) DecodeBytes(data []byte) (core.Image, string, error) {
	if len(data) == 0 {
		return core.Image{}, "", apperrors.ErrMissingImage
	}

	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return core.Image{}, "", apperrors.ErrMalformedImage.Wrap(err)
	}
	if !IsSupportedFormat(format) {
		return core.Image{}, format, apperrors.ErrMalformedImage.With("format", format)
	}

	img, err := core.FromGoImage(decoded)
	if err != nil {
		return core.Image{}, format, apperrors.ErrMalformedImage.Wrap(err)
	}

	il.logger.WithFields(logrus.Fields{
		"format":   format,
		"width":    img.Width(),
		"height":   img.Height(),
		"channels": img.Channels(),
		"bytes":    len(data),
	}).Debug("Image decoded")

	return img, format, nil
}

// EncodePNG writes img as a lossless PNG
func (il *ImageLoader) EncodePNG(w goio.Writer, img core.Image) error {
	if img.Empty() {
		return fmt.Errorf("cannot encode empty image")
	}
	if err := png.Encode(w, img.ToGoImage()); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// PNGBytes is EncodePNG into a fresh buffer
func (il *ImageLoader) PNGBytes(img core.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := il.EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Thumbnail scales img so its longest side is at most maxSide. Smaller
// images are returned unchanged.
func (il *ImageLoader) Thumbnail(img core.Image, maxSide uint) (core.Image, error) {
	if img.Empty() {
		return core.Image{}, fmt.Errorf("cannot thumbnail empty image")
	}
	if uint(img.Width()) <= maxSide && uint(img.Height()) <= maxSide {
		return img.Clone(), nil
	}

	thumb := resize.Thumbnail(maxSide, maxSide, img.ToGoImage(), resize.Lanczos3)
	return core.FromGoImage(thumb)
}

// DownloadFilename returns photo_<YYYYMMDD_HHMMSS>.png
func DownloadFilename(t time.Time) string {
	return fmt.Sprintf("photo_%s.png", t.Format(TimestampLayout))
}

// IsSupportedFormat reports whether a decoder format name is accepted
func IsSupportedFormat(format string) bool {
	format = strings.ToLower(format)
	for _, f := range supportedFormats {
		if f == format {
			return true
		}
	}
	return false
}

func GetSupportedFormats() []string {
	return []string{"JPEG", "PNG", "WEBP"}
}
