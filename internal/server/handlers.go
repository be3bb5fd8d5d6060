package server

import (
	stderrors "errors"
	"fmt"
	goio "io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"photo-booth/internal/acquire"
	"photo-booth/internal/core"
	"photo-booth/internal/effects"
	apperrors "photo-booth/internal/errors"
	"photo-booth/internal/gallery"
	"photo-booth/internal/io"
	"photo-booth/internal/notify"
	"photo-booth/internal/session"
)

// multipart overhead allowed on top of the image limit
const formSlack = 1 << 20

type galleryView struct {
	Photos []gallery.PhotoInfo `json:"photos"`
	Stats  gallery.Stats       `json:"stats"`
}

type savedView struct {
	Photo gallery.PhotoInfo `json:"photo"`
	Stats gallery.Stats     `json:"stats"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) handleEffects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"effects": effects.Catalog(),
		"formats": io.GetSupportedFormats(),
	})
}

// handlePreview applies an effect to an uploaded image without saving it
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	data, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	img, err := acquire.NewUpload(data, s.loader).Acquire(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := s.engine.Apply(img, effectParam(r))
	s.writePNG(w, out, "")
}

func (s *Server) handleRemoteProbe(w http.ResponseWriter, r *http.Request) {
	remote, err := s.remoteFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := remote.Probe(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reachable": true,
		"host":      remote.Host(),
		"url":       remote.FeedURL(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":        sess.ID,
		"createdAt": sess.CreatedAt,
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	s.sessions.Delete(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Gallery.Stats())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "event stream disabled", http.StatusServiceUnavailable)
		return
	}
	if err := s.hub.ServeWS(w, r, sessionFrom(r).ID); err != nil {
		s.logger.WithError(err).Debug("Websocket upgrade failed")
	}
}

func (s *Server) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	g := sessionFrom(r).Gallery

	photos := make([]gallery.PhotoInfo, 0, g.Len())
	for record := range g.List() {
		photos = append(photos, record.Info())
	}

	writeJSON(w, http.StatusOK, galleryView{Photos: photos, Stats: g.Stats()})
}

// handleUploadPhoto saves a picture sent by the browser: either a file
// upload or a frame from the browser's own camera widget
func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	data, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	source := gallery.SourceUpload
	if v := r.FormValue("source"); v != "" {
		if source, err = gallery.ParseSource(v); err != nil {
			s.writeError(w, err)
			return
		}
		// remote frames only come from the server-side feed reader
		if source == gallery.SourceRemote {
			s.writeError(w, apperrors.ErrInvalidSource.With("source", v))
			return
		}
	}

	s.captureAndSave(w, r, uploadSource{Upload: acquire.NewUpload(data, s.loader), kind: source})
}

func (s *Server) handleCaptureCamera(w http.ResponseWriter, r *http.Request) {
	if s.camera == nil {
		s.writeError(w, apperrors.ErrDeviceUnavailable.With("reason", "no camera configured"))
		return
	}
	s.captureAndSave(w, r, s.camera)
}

func (s *Server) handleCaptureRemote(w http.ResponseWriter, r *http.Request) {
	remote, err := s.remoteFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.captureAndSave(w, r, remote)
}

func (s *Server) handleClearPhotos(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.Gallery.Clear()
	s.notifier.Publish(notify.GalleryCleared(sess.ID, s.now()))

	writeJSON(w, http.StatusOK, galleryView{Photos: []gallery.PhotoInfo{}, Stats: sess.Gallery.Stats()})
}

func (s *Server) handleLatestPhoto(w http.ResponseWriter, r *http.Request) {
	record, ok := sessionFrom(r).Gallery.Latest()
	if !ok {
		s.writeError(w, apperrors.ErrGalleryEmpty)
		return
	}
	writeJSON(w, http.StatusOK, record.Info())
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	record, err := s.photoFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writePNG(w, record.Image(), io.DownloadFilename(record.Timestamp()))
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	record, err := s.photoFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	thumb, err := s.loader.Thumbnail(record.Image(), s.cfg.Gallery.ThumbnailSize)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writePNG(w, thumb, "")
}

// captureAndSave runs one acquire -> effect -> save cycle
func (s *Server) captureAndSave(w http.ResponseWriter, r *http.Request, src acquire.Source) {
	sess := sessionFrom(r)
	kind := effectParam(r)

	img, err := src.Acquire(r.Context())
	if err != nil {
		s.writeError(w, withSessionContext(err, sess))
		return
	}

	processed := s.engine.Apply(img, kind)
	record := sess.Gallery.Save(processed, kind, src.Kind())
	stats := sess.Gallery.Stats()

	s.logger.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"photo_id":   record.ID(),
		"effect":     kind.String(),
		"source":     src.Kind(),
	}).Info("Photo saved")

	s.notifier.Publish(notify.PhotoSaved(sess.ID, record, stats.Total))
	writeJSON(w, http.StatusCreated, savedView{Photo: record.Info(), Stats: stats})
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.loader.MaxBytes()+formSlack)
	if err := r.ParseMultipartForm(s.loader.MaxBytes() + formSlack); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return nil, apperrors.ErrUploadTooLarge.With("max_bytes", s.loader.MaxBytes())
		}
		return nil, apperrors.ErrMissingImage.Wrap(err)
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, apperrors.ErrMissingImage.Wrap(err)
	}
	defer file.Close()

	data, err := goio.ReadAll(file)
	if err != nil {
		return nil, apperrors.ErrMalformedImage.Wrap(err)
	}
	return data, nil
}

func (s *Server) remoteFor(r *http.Request) (*acquire.Remote, error) {
	host := r.URL.Query().Get("host")
	if host == "" {
		host = r.FormValue("host")
	}
	if host == "" {
		host = s.cfg.Remote.DefaultHost
	}

	return acquire.NewRemote(host, acquire.RemoteOptions{
		ProbeTimeout:   s.cfg.Remote.ProbeTimeout.Duration,
		CaptureTimeout: s.cfg.Remote.CaptureTimeout.Duration,
		ChunkSize:      s.cfg.Remote.ChunkSize,
		Client:         s.client,
	}, s.loader, s.logger)
}

func (s *Server) photoFor(r *http.Request) (gallery.PhotoRecord, error) {
	raw := chi.URLParam(r, "pid")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return gallery.PhotoRecord{}, apperrors.ErrInvalidPhotoID.With("photo_id", raw)
	}

	record, ok := sessionFrom(r).Gallery.Get(id)
	if !ok {
		return gallery.PhotoRecord{}, apperrors.ErrPhotoNotFound.With("photo_id", id)
	}
	return record, nil
}

func (s *Server) writePNG(w http.ResponseWriter, img core.Image, filename string) {
	data, err := s.loader.PNGBytes(img)
	if err != nil {
		s.writeError(w, apperrors.Wrap(err, apperrors.ErrTypeInternal, "ENCODE_FAILED", "failed to encode image"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// effectParam reads ?effect= or the form field; unknown names mean normal
func effectParam(r *http.Request) effects.Kind {
	name := r.URL.Query().Get("effect")
	if name == "" {
		name = r.FormValue("effect")
	}
	return effects.ParseKind(name)
}

func withSessionContext(err error, sess *session.Session) error {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.With("session_id", sess.ID)
	}
	return err
}

// uploadSource lets a browser-camera frame keep its camera origin
type uploadSource struct {
	*acquire.Upload
	kind gallery.Source
}

func (u uploadSource) Kind() gallery.Source { return u.kind }

var _ acquire.Source = uploadSource{}
