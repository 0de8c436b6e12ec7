package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	require.Equal(t, path, resolved)
	require.Equal(t, Default(), cfg)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config file should be created")

	again, _, err := Load(nil, path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("port: 7000\nlog_level: debug\nadmins: [root, ops]\nidle_timeout: 90s\necho_posts: false\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("BETAIRC_LOG_LEVEL", "warn")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Port)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, []string{"root", "ops"}, cfg.Admins)
	require.Equal(t, 90*time.Second, cfg.IdleTimeout)
	require.False(t, cfg.EchoPosts)
	require.Equal(t, "0.0.0.0", cfg.Host)
	require.Equal(t, 4096, cfg.MaxFrameBytes)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [oops\n"), 0o600))

	_, _, err := Load(nil, path)
	require.Error(t, err)
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Port: 7777, Admins: []string{"root"}, WriteTimeout: time.Second})

	require.Equal(t, 7777, cfg.Port)
	require.Equal(t, []string{"root"}, cfg.Admins)
	require.Equal(t, time.Second, cfg.WriteTimeout)
	require.Equal(t, "0.0.0.0", cfg.Host)
	require.True(t, cfg.EchoPosts)
	require.Equal(t, "0.0.0.0:7777", cfg.ListenAddr())
}
