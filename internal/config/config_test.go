package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "photo-booth/internal/errors"
)

func TestDefaultsAreValid(t *testing.T) {
	t.Setenv("PHOTOBOOTH_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.Remote.ProbeTimeout.Duration)
	assert.Equal(t, 10*time.Second, cfg.Remote.CaptureTimeout.Duration)
	assert.False(t, cfg.Gallery.ResetIDsOnClear)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"addr": ":9000",
		"remote": {"defaultHost": "10.0.0.2:4747", "captureTimeout": "3s"},
		"gallery": {"resetIdsOnClear": true}
	}`), 0644))

	t.Setenv("PHOTOBOOTH_CAMERA_DEVICE", "2")
	t.Setenv("PHOTOBOOTH_SESSION_TTL", "5m")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "10.0.0.2:4747", cfg.Remote.DefaultHost)
	assert.Equal(t, 3*time.Second, cfg.Remote.CaptureTimeout.Duration)
	assert.Equal(t, 5*time.Second, cfg.Remote.ProbeTimeout.Duration, "unset keys keep defaults")
	assert.True(t, cfg.Gallery.ResetIDsOnClear)
	assert.Equal(t, 2, cfg.Camera.DeviceID)
	assert.Equal(t, 5*time.Minute, cfg.Session.TTL.Duration)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
}

func TestExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.True(t, stderrors.Is(err, apperrors.ErrInvalidConfig))
}

func TestBadEnvFails(t *testing.T) {
	t.Setenv("PHOTOBOOTH_CONFIG", "")
	t.Setenv("PHOTOBOOTH_SESSION_TTL", "forever")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Remote.ChunkSize = 0
	cfg.Remote.ProbeTimeout = Duration{}

	err := cfg.Validate()
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Context["problems"], "remote.chunkSize")
	assert.Contains(t, appErr.Context["problems"], "remote.probeTimeout")
}
