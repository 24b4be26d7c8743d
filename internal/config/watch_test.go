package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherNoOpOnEmptyPath(t *testing.T) {
	w, err := NewWatcher("")
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	fired := false
	w.OnReload(func(*Config) { fired = true })

	time.Sleep(20 * time.Millisecond)
	assert.False(t, fired)
}

func TestWatcherErrorsOnMissingFile(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestWatcherFiresOnReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	reloaded := make(chan *Config, 1)
	w.OnReload(func(cfg *Config) { reloaded <- cfg })

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 9090, cfg.Server.Port)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
}
