// HTTP API for the photo booth
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"photo-booth/internal/acquire"
	"photo-booth/internal/config"
	"photo-booth/internal/effects"
	"photo-booth/internal/io"
	"photo-booth/internal/notify"
	"photo-booth/internal/session"
)

// Deps are the collaborators the API is built from
type Deps struct {
	Config   *config.Config
	Sessions *session.Manager
	Engine   *effects.Engine
	Loader   *io.ImageLoader
	Hub      *notify.Hub
	Notifier notify.Notifier
	Camera   acquire.Source
	// HTTPClient is used for remote camera requests; nil means a default client
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

// Server routes requests to the session, effect and acquisition layers.
// Each request is one independent cycle that returns updated view data.
type Server struct {
	cfg      *config.Config
	sessions *session.Manager
	engine   *effects.Engine
	loader   *io.ImageLoader
	hub      *notify.Hub
	notifier notify.Notifier
	camera   acquire.Source
	client   *http.Client
	logger   logrus.FieldLogger
	now      func() time.Time
}

func New(deps Deps) *Server {
	s := &Server{
		cfg:      deps.Config,
		sessions: deps.Sessions,
		engine:   deps.Engine,
		loader:   deps.Loader,
		hub:      deps.Hub,
		notifier: deps.Notifier,
		camera:   deps.Camera,
		client:   deps.HTTPClient,
		logger:   deps.Logger,
		now:      time.Now,
	}
	if s.cfg == nil {
		s.cfg = config.Default()
	}
	if s.notifier == nil {
		s.notifier = notify.Discard{}
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	if s.logger == nil {
		discard := logrus.New()
		discard.SetLevel(logrus.PanicLevel)
		s.logger = discard
	}
	return s
}

// Router builds the chi handler tree
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/effects", s.handleEffects)
		r.Post("/preview", s.handlePreview)
		r.Get("/remote/probe", s.handleRemoteProbe)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sid}", func(r chi.Router) {
			r.Use(s.withSession)

			r.Delete("/", s.handleEndSession)
			r.Get("/stats", s.handleStats)
			r.Get("/events", s.handleEvents)

			r.Post("/capture/camera", s.handleCaptureCamera)
			r.Post("/capture/remote", s.handleCaptureRemote)

			r.Get("/photos", s.handleListPhotos)
			r.Post("/photos", s.handleUploadPhoto)
			r.Delete("/photos", s.handleClearPhotos)
			r.Get("/photos/latest", s.handleLatestPhoto)
			r.Get("/photos/{pid}/download", s.handleDownload)
			r.Get("/photos/{pid}/thumbnail", s.handleThumbnail)
		})
	})

	return r
}
