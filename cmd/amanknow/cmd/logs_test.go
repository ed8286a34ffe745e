package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
)

func TestLogsCmd_TailWithLevel(t *testing.T) {
	// Given: a log file with mixed levels
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "amanknow.log")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"time":"2026-01-02T10:00:00Z","level":"INFO","msg":"index_rebuilt","docs":2}`+"\n"+
			`{"time":"2026-01-02T10:00:01Z","level":"WARN","msg":"inbox_file_failed","file":"a.txt"}`+"\n"), 0o644))

	// When: showing warnings only
	out, err := env.run("", "logs", "--file", path, "--level", "warn")

	// Then: only the warning is printed
	require.NoError(t, err)
	assert.Contains(t, out, "inbox_file_failed file=a.txt")
	assert.NotContains(t, out, "index_rebuilt")
}

func TestLogsCmd_MissingFile(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run("", "logs", "--file", filepath.Join(t.TempDir(), "none.log"))

	assert.ErrorIs(t, err, amerrors.ErrNotFound)
}

func TestLogsCmd_BadFilter(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "amanknow.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := env.run("", "logs", "--file", path, "--filter", "(")

	assert.ErrorIs(t, err, amerrors.ErrValidation)
}
