package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir so no real config or .env is read.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SUDO_USER", "")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(home))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return home
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7717", cfg.Server.Addr)
	assert.Equal(t, "sqlcipher", cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(home, ".sitefocus"), cfg.Storage.DataDir)
	assert.Equal(t, 25, cfg.Focus.DefaultMinutes)
	assert.Equal(t, []int{15, 25, 30, 45, 60, 90}, cfg.Focus.Durations)
	assert.Equal(t, time.Second, cfg.Focus.TickInterval)
	assert.True(t, cfg.Notify.Enabled)
	assert.Empty(t, cfg.Path)
}

func TestLoad_YAMLFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: 127.0.0.1:9000
storage:
  driver: file
  data_dir: ~/focus-data
focus:
  default_minutes: 45
  durations: [10, 45]
  tick_interval: 500ms
notify:
  enabled: false
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(home, "focus-data"), cfg.Storage.DataDir)
	assert.Equal(t, 45, cfg.Focus.DefaultMinutes)
	assert.Equal(t, []int{10, 45}, cfg.Focus.Durations)
	assert.Equal(t, 500*time.Millisecond, cfg.Focus.TickInterval)
	assert.False(t, cfg.Notify.Enabled)
	assert.Equal(t, "info", cfg.Log.Level, "unset sections keep defaults")
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	home := isolate(t)

	_, err := Load(filepath.Join(home, "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("SITEFOCUS_ADDR", "localhost:8123")
	t.Setenv("SITEFOCUS_STORAGE_DRIVER", "memory")
	t.Setenv("SITEFOCUS_DEFAULT_MINUTES", "30")
	t.Setenv("SITEFOCUS_DURATIONS", "5, 30 ,60")
	t.Setenv("SITEFOCUS_NOTIFY_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost:8123", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 30, cfg.Focus.DefaultMinutes)
	assert.Equal(t, []int{5, 30, 60}, cfg.Focus.Durations)
	assert.False(t, cfg.Notify.Enabled)
}

func TestLoad_DotEnv(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".sitefocus"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".sitefocus", ".env"), []byte("SITEFOCUS_LOG_LEVEL=debug\n"), 0600))
	t.Cleanup(func() { _ = os.Unsetenv("SITEFOCUS_LOG_LEVEL") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"SITEFOCUS_STORAGE_DRIVER": "postgres"}},
		{name: "bad level", env: map[string]string{"SITEFOCUS_LOG_LEVEL": "loud"}},
		{name: "non-numeric minutes", env: map[string]string{"SITEFOCUS_DEFAULT_MINUTES": "soon"}},
		{name: "zero minutes", env: map[string]string{"SITEFOCUS_DEFAULT_MINUTES": "0"}},
		{name: "negative duration entry", env: map[string]string{"SITEFOCUS_DURATIONS": "15,-1"}},
		{name: "tick too fast", env: map[string]string{"SITEFOCUS_TICK_INTERVAL": "1ms"}},
		{name: "addr without port", env: map[string]string{"SITEFOCUS_ADDR": "localhost"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
