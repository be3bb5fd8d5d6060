package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo-booth/internal/config"
	"photo-booth/internal/core"
	"photo-booth/internal/effects"
	apperrors "photo-booth/internal/errors"
	"photo-booth/internal/gallery"
	"photo-booth/internal/io"
	"photo-booth/internal/notify"
	"photo-booth/internal/session"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(event notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeCamera struct {
	img core.Image
	err error
}

func (c fakeCamera) Acquire(context.Context) (core.Image, error) { return c.img, c.err }
func (c fakeCamera) Kind() gallery.Source                        { return gallery.SourceCamera }

type harness struct {
	srv      *httptest.Server
	sessions *session.Manager
	events   *recorder
}

func newHarness(t *testing.T, camera *fakeCamera) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	h := &harness{
		sessions: session.NewManager(0, logger),
		events:   &recorder{},
	}
	deps := Deps{
		Config:   config.Default(),
		Sessions: h.sessions,
		Engine:   effects.NewEngine(logger),
		Loader:   io.NewImageLoader(logger, 1<<20),
		Notifier: h.events,
		Logger:   logger,
	}
	if camera != nil {
		deps.Camera = *camera
	}
	h.srv = httptest.NewServer(New(deps).Router())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *http.Response {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, h.srv.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) createSession(t *testing.T) string {
	t.Helper()
	resp := h.do(t, http.MethodPost, "/api/sessions", nil, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.ID)
	return out.ID
}

func (h *harness) upload(t *testing.T, sid string, data []byte, fields map[string]string) *http.Response {
	t.Helper()
	body, contentType := multipartBody(t, data, fields)
	return h.do(t, http.MethodPost, "/api/sessions/"+sid+"/photos", body, contentType)
}

func multipartBody(t *testing.T, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		part, err := mw.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func solidPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type savedResponse struct {
	Photo gallery.PhotoInfo `json:"photo"`
	Stats gallery.Stats     `json:"stats"`
}

type listResponse struct {
	Photos []gallery.PhotoInfo `json:"photos"`
	Stats  gallery.Stats       `json:"stats"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestUploadListDownloadClear(t *testing.T) {
	h := newHarness(t, nil)
	sid := h.createSession(t)

	first := h.upload(t, sid, solidPNG(t, 8, 6, color.NRGBA{R: 10, G: 20, B: 30, A: 255}), nil)
	require.Equal(t, http.StatusCreated, first.StatusCode)
	saved := decode[savedResponse](t, first)
	assert.Equal(t, 1, saved.Photo.ID)
	assert.Equal(t, effects.Normal, saved.Photo.Effect)
	assert.Equal(t, gallery.SourceUpload, saved.Photo.Source)
	assert.Equal(t, core.ImageMetadata{Width: 8, Height: 6, Channels: 3}, saved.Photo.Image)

	second := h.upload(t, sid, solidPNG(t, 4, 4, color.NRGBA{R: 128, G: 128, B: 128, A: 255}),
		map[string]string{"effect": "grayscale", "source": "camera"})
	require.Equal(t, http.StatusCreated, second.StatusCode)
	saved = decode[savedResponse](t, second)
	assert.Equal(t, 2, saved.Photo.ID)
	assert.Equal(t, effects.Grayscale, saved.Photo.Effect)
	assert.Equal(t, gallery.SourceCamera, saved.Photo.Source)
	assert.Equal(t, 2, saved.Stats.Total)

	list := decode[listResponse](t, h.do(t, http.MethodGet, "/api/sessions/"+sid+"/photos", nil, ""))
	require.Len(t, list.Photos, 2)
	assert.Equal(t, 2, list.Photos[0].ID, "newest first")
	assert.Equal(t, 1, list.Photos[1].ID)
	assert.Equal(t, 2, list.Stats.LatestID)

	dl := h.do(t, http.MethodGet, "/api/sessions/"+sid+"/photos/1/download", nil, "")
	require.Equal(t, http.StatusOK, dl.StatusCode)
	assert.Equal(t, "image/png", dl.Header.Get("Content-Type"))
	assert.Regexp(t, `^attachment; filename="photo_\d{8}_\d{6}\.png"$`, dl.Header.Get("Content-Disposition"))

	decoded, err := png.Decode(dl.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), decoded.Bounds())
	r, g, b, _ := decoded.At(3, 3).RGBA()
	assert.Equal(t, []uint32{10, 20, 30}, []uint32{r >> 8, g >> 8, b >> 8})

	cleared := h.do(t, http.MethodDelete, "/api/sessions/"+sid+"/photos", nil, "")
	require.Equal(t, http.StatusOK, cleared.StatusCode)
	assert.Equal(t, 0, decode[listResponse](t, cleared).Stats.Total)

	latest := h.do(t, http.MethodGet, "/api/sessions/"+sid+"/photos/latest", nil, "")
	assert.Equal(t, http.StatusNotFound, latest.StatusCode)

	third := decode[savedResponse](t, h.upload(t, sid, solidPNG(t, 2, 2, color.NRGBA{A: 255}), nil))
	assert.Equal(t, 3, third.Photo.ID, "ids keep increasing after clear")

	assert.Equal(t, []string{
		notify.EventPhotoSaved,
		notify.EventPhotoSaved,
		notify.EventGalleryCleared,
		notify.EventPhotoSaved,
	}, h.events.types())
}

func TestSessionsAreIsolated(t *testing.T) {
	h := newHarness(t, nil)
	a := h.createSession(t)
	b := h.createSession(t)

	resp := h.upload(t, a, solidPNG(t, 2, 2, color.NRGBA{A: 255}), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	listA := decode[listResponse](t, h.do(t, http.MethodGet, "/api/sessions/"+a+"/photos", nil, ""))
	listB := decode[listResponse](t, h.do(t, http.MethodGet, "/api/sessions/"+b+"/photos", nil, ""))
	assert.Len(t, listA.Photos, 1)
	assert.Empty(t, listB.Photos)

	first := decode[savedResponse](t, h.upload(t, b, solidPNG(t, 2, 2, color.NRGBA{A: 255}), nil))
	assert.Equal(t, 1, first.Photo.ID, "each session numbers its own photos")
}

func TestUnknownSession(t *testing.T) {
	h := newHarness(t, nil)
	resp := h.do(t, http.MethodGet, "/api/sessions/does-not-exist/photos", nil, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decode[errorResponse](t, resp)
	assert.Equal(t, apperrors.ErrSessionNotFound.Code, body.Error.Code)
	assert.Equal(t, apperrors.ErrTypeNotFound, body.Error.Type)
}

func TestEndSession(t *testing.T) {
	h := newHarness(t, nil)
	sid := h.createSession(t)

	resp := h.do(t, http.MethodDelete, "/api/sessions/"+sid+"/", nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, h.sessions.Len())

	resp = h.do(t, http.MethodGet, "/api/sessions/"+sid+"/stats", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadRejectsBadInput(t *testing.T) {
	h := newHarness(t, nil)
	sid := h.createSession(t)

	garbage := h.upload(t, sid, []byte("definitely not an image"), nil)
	assert.Equal(t, http.StatusBadRequest, garbage.StatusCode)
	assert.Equal(t, apperrors.ErrMalformedImage.Code, decode[errorResponse](t, garbage).Error.Code)

	missing := h.upload(t, sid, nil, map[string]string{"effect": "sepia"})
	assert.Equal(t, http.StatusBadRequest, missing.StatusCode)
	assert.Equal(t, apperrors.ErrMissingImage.Code, decode[errorResponse](t, missing).Error.Code)

	badSource := h.upload(t, sid, solidPNG(t, 2, 2, color.NRGBA{A: 255}), map[string]string{"source": "scanner"})
	assert.Equal(t, http.StatusBadRequest, badSource.StatusCode)
	assert.Equal(t, apperrors.ErrInvalidSource.Code, decode[errorResponse](t, badSource).Error.Code)

	spoofed := h.upload(t, sid, solidPNG(t, 2, 2, color.NRGBA{A: 255}), map[string]string{"source": "remote"})
	assert.Equal(t, http.StatusBadRequest, spoofed.StatusCode)
	assert.Equal(t, apperrors.ErrInvalidSource.Code, decode[errorResponse](t, spoofed).Error.Code)

	stats := decode[gallery.Stats](t, h.do(t, http.MethodGet, "/api/sessions/"+sid+"/stats", nil, ""))
	assert.Equal(t, 0, stats.Total, "failed uploads save nothing")
}

func TestPhotoLookup(t *testing.T) {
	h := newHarness(t, nil)
	sid := h.createSession(t)
	h.upload(t, sid, solidPNG(t, 600, 300, color.NRGBA{R: 50, A: 255}), nil)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/sessions/"+sid+"/photos/abc/download", nil, "").StatusCode)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/sessions/"+sid+"/photos/7/download", nil, "").StatusCode)

	thumb := h.do(t, http.MethodGet, "/api/sessions/"+sid+"/photos/1/thumbnail", nil, "")
	require.Equal(t, http.StatusOK, thumb.StatusCode)
	assert.Empty(t, thumb.Header.Get("Content-Disposition"))
	cfg, err := png.DecodeConfig(thumb.Body)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 150, cfg.Height)

	latest := decode[gallery.PhotoInfo](t, h.do(t, http.MethodGet, "/api/sessions/"+sid+"/photos/latest", nil, ""))
	assert.Equal(t, 1, latest.ID)
}

func TestCaptureCamera(t *testing.T) {
	img, err := core.NewSolid(4, 3, 128, 128, 128)
	require.NoError(t, err)

	h := newHarness(t, &fakeCamera{img: img})
	sid := h.createSession(t)

	resp := h.do(t, http.MethodPost, "/api/sessions/"+sid+"/capture/camera?effect=bright", nil, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	saved := decode[savedResponse](t, resp)
	assert.Equal(t, effects.Bright, saved.Photo.Effect)
	assert.Equal(t, gallery.SourceCamera, saved.Photo.Source)

	dl := h.do(t, http.MethodGet, "/api/sessions/"+sid+"/photos/1/download", nil, "")
	decoded, err := png.Decode(dl.Body)
	require.NoError(t, err)
	r, _, _, _ := decoded.At(0, 0).RGBA()
	assert.Equal(t, uint32(166), r>>8)
}

func TestCaptureCameraFailures(t *testing.T) {
	h := newHarness(t, nil)
	sid := h.createSession(t)
	resp := h.do(t, http.MethodPost, "/api/sessions/"+sid+"/capture/camera", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	broken := newHarness(t, &fakeCamera{err: apperrors.ErrNoFrame})
	sid = broken.createSession(t)
	resp = broken.do(t, http.MethodPost, "/api/sessions/"+sid+"/capture/camera", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, apperrors.ErrNoFrame.Code, decode[errorResponse](t, resp).Error.Code)
	assert.Empty(t, broken.events.types())
}

func TestCaptureRemoteFailures(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(feed.Close)

	h := newHarness(t, nil)
	sid := h.createSession(t)

	resp := h.do(t, http.MethodPost, "/api/sessions/"+sid+"/capture/remote?host="+feed.URL, nil, "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, apperrors.ErrRemoteStatus.Code, decode[errorResponse](t, resp).Error.Code)

	resp = h.do(t, http.MethodPost, "/api/sessions/"+sid+"/capture/remote?host=nonsense", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, apperrors.ErrInvalidHost.Code, decode[errorResponse](t, resp).Error.Code)

	probe := h.do(t, http.MethodGet, "/api/remote/probe?host="+feed.URL, nil, "")
	assert.Equal(t, http.StatusBadGateway, probe.StatusCode)
}

func TestEffectsCatalog(t *testing.T) {
	h := newHarness(t, nil)
	resp := h.do(t, http.MethodGet, "/api/effects", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Effects []effects.Info `json:"effects"`
		Formats []string       `json:"formats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Effects, len(effects.Kinds()))
	assert.Equal(t, effects.Normal, out.Effects[0].Kind)
	assert.Contains(t, out.Formats, "WEBP")
}

func TestPreviewDoesNotSave(t *testing.T) {
	h := newHarness(t, nil)
	body, contentType := multipartBody(t, solidPNG(t, 3, 3, color.NRGBA{R: 128, G: 128, B: 128, A: 255}),
		map[string]string{"effect": "bright"})

	resp := h.do(t, http.MethodPost, "/api/preview", body, contentType)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decoded, err := png.Decode(resp.Body)
	require.NoError(t, err)
	r, _, _, _ := decoded.At(1, 1).RGBA()
	assert.Equal(t, uint32(166), r>>8)
	assert.Empty(t, h.events.types())
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	h.createSession(t)

	var out struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(h.do(t, http.MethodGet, "/healthz", nil, "").Body).Decode(&out))
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, 1, out.Sessions)
}
