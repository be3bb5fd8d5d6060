package acquire

import (
	"bytes"
	"context"
	"fmt"
	goio "io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"photo-booth/internal/core"
	apperrors "photo-booth/internal/errors"
	"photo-booth/internal/gallery"
	"photo-booth/internal/io"
)

const (
	// FeedPath is the DroidCam MJPEG endpoint
	FeedPath = "/mjpegfeed"

	DefaultProbeTimeout   = 5 * time.Second
	DefaultCaptureTimeout = 10 * time.Second
	DefaultChunkSize      = 128 << 10
)

var (
	jpegStart = []byte{0xFF, 0xD8}
	jpegEnd   = []byte{0xFF, 0xD9}
)

// RemoteOptions tunes the DroidCam client
type RemoteOptions struct {
	ProbeTimeout   time.Duration
	CaptureTimeout time.Duration
	ChunkSize      int
	Client         *http.Client
}

// Remote pulls one frame from a phone running DroidCam. Only the first
// chunk of the stream is examined: a frame that does not fit inside it
// is reported as a failure rather than reassembled.
type Remote struct {
	host           string
	client         *http.Client
	loader         *io.ImageLoader
	probeTimeout   time.Duration
	captureTimeout time.Duration
	chunkSize      int
	logger         logrus.FieldLogger
}

// NewRemote validates host ("ip:port") and builds a client for it
func NewRemote(host string, opts RemoteOptions, loader *io.ImageLoader, logger logrus.FieldLogger) (*Remote, error) {
	host, err := NormalizeHost(host)
	if err != nil {
		return nil, err
	}

	r := &Remote{
		host:           host,
		client:         opts.Client,
		loader:         loader,
		probeTimeout:   opts.ProbeTimeout,
		captureTimeout: opts.CaptureTimeout,
		chunkSize:      opts.ChunkSize,
		logger:         logger.WithField("remote_host", host),
	}
	if r.client == nil {
		r.client = &http.Client{}
	}
	if r.probeTimeout <= 0 {
		r.probeTimeout = DefaultProbeTimeout
	}
	if r.captureTimeout <= 0 {
		r.captureTimeout = DefaultCaptureTimeout
	}
	if r.chunkSize <= 0 {
		r.chunkSize = DefaultChunkSize
	}
	return r, nil
}

// NormalizeHost strips an optional http:// prefix and trailing path and
// checks for host:port
func NormalizeHost(host string) (string, error) {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "http://")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}

	h, port, err := net.SplitHostPort(host)
	if err != nil || h == "" {
		return "", apperrors.ErrInvalidHost.With("host", host)
	}
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return "", apperrors.ErrInvalidHost.With("host", host)
	}
	return host, nil
}

func (r *Remote) Kind() gallery.Source { return gallery.SourceRemote }

// Host returns the normalized host:port
func (r *Remote) Host() string { return r.host }

// FeedURL returns the MJPEG feed address
func (r *Remote) FeedURL() string {
	return "http://" + r.host + FeedPath
}

// Probe checks connectivity: the feed must answer 200 within the probe
// timeout
func (r *Remote) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	resp, err := r.get(ctx)
	if err != nil {
		return err
	}
	resp.Body.Close()

	r.logger.Debug("Remote camera reachable")
	return nil
}

// Acquire reads one chunk of the MJPEG stream and decodes the JPEG
// found inside it
func (r *Remote) Acquire(ctx context.Context) (core.Image, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.captureTimeout)
	defer cancel()

	resp, err := r.get(ctx)
	if err != nil {
		return core.Image{}, err
	}
	defer resp.Body.Close()

	chunk := make([]byte, r.chunkSize)
	n, err := goio.ReadFull(resp.Body, chunk)
	switch {
	case err == nil, err == goio.ErrUnexpectedEOF, err == goio.EOF:
	default:
		return core.Image{}, apperrors.ErrRemoteUnreachable.Wrap(err).WithContext("host", r.host)
	}

	frame, err := ExtractJPEG(chunk[:n])
	if err != nil {
		r.logger.WithField("chunk_bytes", n).Warn("No JPEG frame in stream chunk")
		return core.Image{}, err
	}

	img, _, err := r.loader.DecodeBytes(frame)
	if err != nil {
		return core.Image{}, err
	}

	r.logger.WithFields(logrus.Fields{
		"frame_bytes": len(frame),
		"width":       img.Width(),
		"height":      img.Height(),
		"duration":    time.Since(start).String(),
	}).Info("Remote frame captured")

	return img, nil
}

func (r *Remote) get(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.FeedURL(), nil)
	if err != nil {
		return nil, apperrors.ErrInvalidHost.Wrap(err).WithContext("host", r.host)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, apperrors.ErrRemoteUnreachable.Wrap(err).WithContext("host", r.host)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, apperrors.ErrRemoteStatus.
			Wrap(fmt.Errorf("status %d", resp.StatusCode)).
			WithContext("host", r.host).
			WithContext("status", resp.StatusCode)
	}
	return resp, nil
}

// ExtractJPEG returns the bytes from the first SOI marker through the
// first EOI marker after it
func ExtractJPEG(chunk []byte) ([]byte, error) {
	start := bytes.Index(chunk, jpegStart)
	if start < 0 {
		return nil, apperrors.ErrMarkerNotFound.With("marker", "FFD8")
	}
	end := bytes.Index(chunk[start+len(jpegStart):], jpegEnd)
	if end < 0 {
		return nil, apperrors.ErrMarkerNotFound.With("marker", "FFD9")
	}
	end += start + len(jpegStart) + len(jpegEnd)

	frame := make([]byte, end-start)
	copy(frame, chunk[start:end])
	return frame, nil
}
