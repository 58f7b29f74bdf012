package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onuse/fsdiag/internal/config"
)

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.Defaults.Format)
	assert.Nil(t, cfg.Defaults.FATEntries)
	assert.Nil(t, cfg.Defaults.Sequential)
}

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "fsdiag")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	content := `
[defaults]
format = "ext4"
fat-entries = 32
sequential = true
verbose = false
log = "/var/log/fsdiag.json"
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)

	require.NotNil(t, cfg.Defaults.Format)
	assert.Equal(t, "ext4", *cfg.Defaults.Format)

	require.NotNil(t, cfg.Defaults.FATEntries)
	assert.Equal(t, 32, *cfg.Defaults.FATEntries)

	require.NotNil(t, cfg.Defaults.Sequential)
	assert.True(t, *cfg.Defaults.Sequential)

	require.NotNil(t, cfg.Defaults.Verbose)
	assert.False(t, *cfg.Defaults.Verbose)

	require.NotNil(t, cfg.Defaults.Log)
	assert.Equal(t, "/var/log/fsdiag.json", *cfg.Defaults.Log)
}

func TestLoad_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "fsdiag")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	content := `
[defaults]
sequential = true
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Nil(t, cfg.Defaults.Format)
	assert.Nil(t, cfg.Defaults.FATEntries)
	require.NotNil(t, cfg.Defaults.Sequential)
	assert.True(t, *cfg.Defaults.Sequential)
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "fsdiag")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte("invalid [[["), 0o644))

	_, err := config.Load()
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/fsdiag/config.toml", config.Path())
}
