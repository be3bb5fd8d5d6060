// Image acquisition from camera, upload and remote DroidCam origins
package acquire

import (
	"context"

	"photo-booth/internal/core"
	apperrors "photo-booth/internal/errors"
	"photo-booth/internal/gallery"
	"photo-booth/internal/io"
)

// Source produces one image per call. Failures are acquisition errors
// and are never retried here.
type Source interface {
	Acquire(ctx context.Context) (core.Image, error)
	Kind() gallery.Source
}

// Upload decodes a byte stream supplied by the caller
type Upload struct {
	data   []byte
	loader *io.ImageLoader
}

func NewUpload(data []byte, loader *io.ImageLoader) *Upload {
	return &Upload{data: data, loader: loader}
}

func (u *Upload) Acquire(ctx context.Context) (core.Image, error) {
	if err := ctx.Err(); err != nil {
		return core.Image{}, apperrors.ErrAcquisitionCancelled.Wrap(err)
	}
	if int64(len(u.data)) > u.loader.MaxBytes() {
		return core.Image{}, apperrors.ErrUploadTooLarge.With("max_bytes", u.loader.MaxBytes())
	}
	img, _, err := u.loader.DecodeBytes(u.data)
	return img, err
}

func (u *Upload) Kind() gallery.Source { return gallery.SourceUpload }
