package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanknow/internal/config"
	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
)

func TestConfigInit_WritesBacksUpAndRefuses(t *testing.T) {
	// Given: an empty working directory
	env := newTestEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, ProjectConfigFile)

	// When: initializing
	out, err := env.run("", "config", "init")

	// Then: the project config is written
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote configuration")
	assert.FileExists(t, path)

	// And: a second init without --force is refused
	_, err = env.run("", "config", "init")
	assert.Equal(t, amerrors.ErrCodeConfigInvalid, amerrors.GetCode(err))

	// And: --force keeps a backup
	out, err = env.run("", "config", "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Backup:")
	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConfigInit_User(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run("", "config", "init", "--user")

	require.NoError(t, err)
	assert.FileExists(t, config.GetUserConfigPath())
}

func TestConfigShow_AppliesFlags(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("", "config", "show", "--format", "json")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, env.dataDir, cfg.Storage.DataDir)
	assert.Equal(t, "json", cfg.Storage.Backend)

	out, err = env.run("", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "backend: json")
}

func TestConfigShow_ProjectFile(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigFile), []byte("chunking:\n  max_chars: 400\n  overlap: 40\n"), 0o644))

	out, err := env.run("", "config", "show", "--format", "json")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 400, cfg.Chunking.MaxChars)
	assert.Equal(t, 40, cfg.Chunking.Overlap)
}

func TestConfigPath(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("", "config", "path")

	require.NoError(t, err)
	assert.Contains(t, out, config.GetUserConfigPath())
	assert.Contains(t, out, ProjectConfigFile)
}
