package acquire

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"photo-booth/internal/core"
	apperrors "photo-booth/internal/errors"
	"photo-booth/internal/gallery"
)

// Camera grabs a single frame from a local capture device. The device is
// opened per capture and released right after, like a one-shot snapshot.
type Camera struct {
	mu       sync.Mutex
	deviceID int
	width    int
	height   int
	logger   logrus.FieldLogger
}

func NewCamera(deviceID, width, height int, logger logrus.FieldLogger) *Camera {
	return &Camera{
		deviceID: deviceID,
		width:    width,
		height:   height,
		logger:   logger,
	}
}

func (c *Camera) Kind() gallery.Source { return gallery.SourceCamera }

func (c *Camera) Acquire(ctx context.Context) (core.Image, error) {
	if err := ctx.Err(); err != nil {
		return core.Image{}, apperrors.ErrAcquisitionCancelled.Wrap(err)
	}

	// One device handle at a time
	c.mu.Lock()
	defer c.mu.Unlock()

	log := c.logger.WithField("device", c.deviceID)

	webcam, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		log.WithError(err).Warn("Camera open failed")
		return core.Image{}, apperrors.ErrDeviceUnavailable.Wrap(err).WithContext("device", c.deviceID)
	}
	defer webcam.Close()

	if !webcam.IsOpened() {
		return core.Image{}, apperrors.ErrDeviceUnavailable.With("device", c.deviceID)
	}
	if c.width > 0 && c.height > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(c.height))
	}

	frame := gocv.NewMat()
	defer frame.Close()

	if ok := webcam.Read(&frame); !ok || frame.Empty() {
		return core.Image{}, apperrors.ErrNoFrame.With("device", c.deviceID)
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	if err := gocv.CvtColor(frame, &rgb, gocv.ColorBGRToRGB); err != nil {
		return core.Image{}, apperrors.ErrNoFrame.Wrap(err).WithContext("device", c.deviceID)
	}

	img, err := core.FromMat(rgb)
	if err != nil {
		return core.Image{}, apperrors.ErrNoFrame.Wrap(err)
	}

	log.WithFields(logrus.Fields{
		"width":  img.Width(),
		"height": img.Height(),
	}).Info("Camera frame captured")

	return img, nil
}
