package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	apperrors "photo-booth/internal/errors"
)

// Duration reads "10s" style strings from JSON
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Config holds application configuration
type Config struct {
	Addr           string         `json:"addr"`
	MaxUploadBytes int64          `json:"maxUploadBytes"`
	Camera         CameraConfig   `json:"camera"`
	Remote         RemoteConfig   `json:"remote"`
	Gallery        GalleryConfig  `json:"gallery"`
	Session        SessionConfig  `json:"session"`
	MQTT           MQTTConfig     `json:"mqtt"`
	Shutdown       ShutdownConfig `json:"shutdown"`
}

type CameraConfig struct {
	DeviceID int `json:"deviceId"`
	Width    int `json:"width"`
	Height   int `json:"height"`
}

type RemoteConfig struct {
	DefaultHost    string   `json:"defaultHost"`
	ProbeTimeout   Duration `json:"probeTimeout"`
	CaptureTimeout Duration `json:"captureTimeout"`
	ChunkSize      int      `json:"chunkSize"`
}

type GalleryConfig struct {
	ResetIDsOnClear bool `json:"resetIdsOnClear"`
	ThumbnailSize   uint `json:"thumbnailSize"`
}

type SessionConfig struct {
	TTL           Duration `json:"ttl"`
	SweepInterval Duration `json:"sweepInterval"`
}

type MQTTConfig struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"clientId"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topicPrefix"`
}

type ShutdownConfig struct {
	Timeout Duration `json:"timeout"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Addr:           ":8080",
		MaxUploadBytes: 20 << 20,
		Camera: CameraConfig{
			DeviceID: 0,
			Width:    640,
			Height:   480,
		},
		Remote: RemoteConfig{
			ProbeTimeout:   Duration{5 * time.Second},
			CaptureTimeout: Duration{10 * time.Second},
			ChunkSize:      128 << 10,
		},
		Gallery: GalleryConfig{
			ResetIDsOnClear: false,
			ThumbnailSize:   300,
		},
		Session: SessionConfig{
			TTL:           Duration{30 * time.Minute},
			SweepInterval: Duration{time.Minute},
		},
		MQTT: MQTTConfig{
			TopicPrefix: "photobooth",
		},
		Shutdown: ShutdownConfig{
			Timeout: Duration{10 * time.Second},
		},
	}
}

// Load applies an optional JSON file and environment overrides on top of
// the defaults. An empty path falls back to PHOTOBOOTH_CONFIG; a missing
// file is not an error unless the path was given explicitly.
func Load(path string) (*Config, error) {
	config := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("PHOTOBOOTH_CONFIG")
		explicit = path != ""
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, apperrors.ErrInvalidConfig.Wrap(err).WithContext("path", path)
			}
		case os.IsNotExist(err) && !explicit:
		default:
			return nil, apperrors.ErrInvalidConfig.Wrap(err).WithContext("path", path)
		}
	}

	if err := config.loadEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) loadEnv() error {
	if v := os.Getenv("PHOTOBOOTH_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("PHOTOBOOTH_CAMERA_DEVICE"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return apperrors.ErrInvalidConfig.Wrap(err).WithContext("env", "PHOTOBOOTH_CAMERA_DEVICE")
		}
		c.Camera.DeviceID = id
	}
	if v := os.Getenv("PHOTOBOOTH_DROIDCAM_HOST"); v != "" {
		c.Remote.DefaultHost = v
	}
	if v := os.Getenv("PHOTOBOOTH_SESSION_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return apperrors.ErrInvalidConfig.Wrap(err).WithContext("env", "PHOTOBOOTH_SESSION_TTL")
		}
		c.Session.TTL = Duration{ttl}
	}
	if v := os.Getenv("PHOTOBOOTH_RESET_IDS_ON_CLEAR"); v != "" {
		reset, err := strconv.ParseBool(v)
		if err != nil {
			return apperrors.ErrInvalidConfig.Wrap(err).WithContext("env", "PHOTOBOOTH_RESET_IDS_ON_CLEAR")
		}
		c.Gallery.ResetIDsOnClear = reset
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	return nil
}

// Validate rejects values the service cannot run with
func (c *Config) Validate() error {
	var problems []string

	if c.Addr == "" {
		problems = append(problems, "addr must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		problems = append(problems, "maxUploadBytes must be positive")
	}
	if c.Camera.DeviceID < 0 {
		problems = append(problems, "camera.deviceId must not be negative")
	}
	if c.Remote.ProbeTimeout.Duration <= 0 {
		problems = append(problems, "remote.probeTimeout must be positive")
	}
	if c.Remote.CaptureTimeout.Duration <= 0 {
		problems = append(problems, "remote.captureTimeout must be positive")
	}
	if c.Remote.ChunkSize <= 0 {
		problems = append(problems, "remote.chunkSize must be positive")
	}
	if c.Gallery.ThumbnailSize == 0 {
		problems = append(problems, "gallery.thumbnailSize must be positive")
	}
	if c.Session.TTL.Duration < 0 {
		problems = append(problems, "session.ttl must not be negative")
	}
	if c.Shutdown.Timeout.Duration <= 0 {
		problems = append(problems, "shutdown.timeout must be positive")
	}

	if len(problems) > 0 {
		return apperrors.ErrInvalidConfig.With("problems", apperrors.Join(problems))
	}
	return nil
}
