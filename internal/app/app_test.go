package app

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barcodescanner/internal/config"
	"barcodescanner/internal/logger"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		CameraSource:   config.SourcePush,
		ScanMode:       config.ModeContinuous,
		DedupWindow:    2 * time.Second,
		FrameSkip:      2,
		TickInterval:   16 * time.Millisecond,
		CaptureTimeout: time.Second,
		Decoder:        config.DecoderZXing,
		DatabasePath:   filepath.Join(dir, "data", "scans.db"),
		ImageDirectory: filepath.Join(dir, "images"),
	}
}

// A WAL file exists while the database is open and is removed when the last
// connection closes.
func walFile(cfg *config.Config) string {
	return cfg.DatabasePath + "-wal"
}

func TestNewApp_WiresPushSource(t *testing.T) {
	cfg := testConfig(t)
	a, err := NewApp(cfg, logger.NewNop())
	require.NoError(t, err)

	assert.NotNil(t, a.push)
	assert.Equal(t, config.ModeContinuous, a.manager.Mode())
	assert.FileExists(t, walFile(cfg))

	a.manager.Close()
	a.releaseStores()
	assert.NoFileExists(t, walFile(cfg))
}

func TestNewApp_ReleasesStoresWhenWiringFails(t *testing.T) {
	orig := subscribeEvents
	t.Cleanup(func() { subscribeEvents = orig })
	subscribeEvents = func(*App) error { return errors.New("bus unavailable") }

	cfg := testConfig(t)
	a, err := NewApp(cfg, logger.NewNop())
	require.Error(t, err)
	assert.Nil(t, a)
	assert.FileExists(t, cfg.DatabasePath)
	assert.NoFileExists(t, walFile(cfg))
}

func TestNewApp_BadRegionsFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.RegionsFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewApp(cfg, logger.NewNop())
	require.Error(t, err)
	assert.NoFileExists(t, walFile(cfg))
}
