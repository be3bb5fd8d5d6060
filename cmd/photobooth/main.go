// Photo booth web service

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"photo-booth/internal/acquire"
	"photo-booth/internal/config"
	"photo-booth/internal/effects"
	apperrors "photo-booth/internal/errors"
	"photo-booth/internal/gallery"
	"photo-booth/internal/io"
	"photo-booth/internal/notify"
	"photo-booth/internal/server"
	"photo-booth/internal/session"
)

const (
	AppName    = "Photo Booth"
	AppVersion = "1.0.0"
)

func main() {
	debugMode := flag.Bool("debug", false, "Enable debug mode with verbose logging")
	configPath := flag.String("config", "", "Path to a JSON config file (default $PHOTOBOOTH_CONFIG)")
	addr := flag.String("addr", "", "Listen address, overrides the config file")
	flag.Parse()

	logger := initLogger(*debugMode)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if appErr, ok := apperrors.As(err); ok {
			appErr.Log(logger)
		} else {
			logger.WithError(err).Error("Failed to load configuration")
		}
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	logger.WithFields(logrus.Fields{
		"version":    AppVersion,
		"debug_mode": *debugMode,
		"addr":       cfg.Addr,
	}).Info("Starting " + AppName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Server stopped with error")
		os.Exit(1)
	}

	logger.Info("Application shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	hub := notify.NewHub(logger)
	go hub.Run(ctx)

	notifiers := notify.Multi{hub}
	if cfg.MQTT.Broker != "" {
		publisher, err := notify.NewMQTTPublisher(notify.MQTTOptions{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, logger)
		if err != nil {
			// events are optional, the booth keeps working without a broker
			logger.WithError(err).Warn("MQTT disabled")
		} else {
			defer publisher.Close()
			notifiers = append(notifiers, publisher)
		}
	}

	var galleryOpts []gallery.Option
	if cfg.Gallery.ResetIDsOnClear {
		galleryOpts = append(galleryOpts, gallery.WithResetOnClear())
	}
	sessions := session.NewManager(cfg.Session.TTL.Duration, logger, galleryOpts...)
	sessions.OnExpire = func(id string) {
		notifiers.Publish(notify.SessionEnded(id, time.Now()))
	}
	go sessions.Run(ctx, cfg.Session.SweepInterval.Duration)

	api := server.New(server.Deps{
		Config:   cfg,
		Sessions: sessions,
		Engine:   effects.NewEngine(logger),
		Loader:   io.NewImageLoader(logger, cfg.MaxUploadBytes),
		Hub:      hub,
		Notifier: notifiers,
		Camera:   acquire.NewCamera(cfg.Camera.DeviceID, cfg.Camera.Width, cfg.Camera.Height, logger),
		Logger:   logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Addr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout.Duration)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// initLogger initializes the logger with appropriate level
func initLogger(debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}
