package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
)

// testEnv isolates a CLI run from user configuration.
type testEnv struct {
	t       *testing.T
	dataDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return &testEnv{t: t, dataDir: t.TempDir()}
}

// run executes the CLI against the env's data dir with the json backend.
func (e *testEnv) run(stdin string, args ...string) (string, error) {
	e.t.Helper()
	return e.runContext(context.Background(), stdin, args...)
}

func (e *testEnv) runContext(ctx context.Context, stdin string, args ...string) (string, error) {
	e.t.Helper()
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--data-dir", e.dataDir, "--backend", "json"}, args...))
	err := root.ExecuteContext(ctx)
	return buf.String(), err
}

// ingest stores a document and returns its id.
func (e *testEnv) ingest(title, text string, extra ...string) string {
	e.t.Helper()
	args := append([]string{"ingest", "--title", title, "--text", text, "--format", "json"}, extra...)
	out, err := e.run("", args...)
	require.NoError(e.t, err, out)

	var res struct {
		Document struct {
			ID string `json:"id"`
		} `json:"document"`
		ChunksCreated int `json:"chunks_created"`
	}
	require.NoError(e.t, json.Unmarshal([]byte(out), &res), out)
	return res.Document.ID
}

func (e *testEnv) writeInbox(name, content string) {
	e.t.Helper()
	dir := filepath.Join(e.dataDir, "inbox")
	require.NoError(e.t, os.MkdirAll(dir, 0o755))
	require.NoError(e.t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"ingest", "inbox", "watch", "search", "get", "rebuild", "check", "stats", "serve", "config", "logs", "doctor", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_VersionFlag(t *testing.T) {
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetArgs([]string{"--version"})

	require.NoError(t, root.Execute())

	assert.Contains(t, buf.String(), "amanknow version")
}

func TestRootCmd_UnknownBackend(t *testing.T) {
	env := newTestEnv(t)

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--data-dir", env.dataDir, "--backend", "postgres", "stats"})
	err := root.Execute()

	require.Error(t, err)
	assert.Equal(t, amerrors.ErrCodeConfigInvalid, amerrors.GetCode(err))
}

func TestRootCmd_ProfileFlags(t *testing.T) {
	env := newTestEnv(t)
	cpu := filepath.Join(t.TempDir(), "cpu.prof")

	_, err := env.run("", "--profile-cpu", cpu, "stats")

	require.NoError(t, err)
	info, err := os.Stat(cpu)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, validateFormat("text"))
	assert.NoError(t, validateFormat("json"))
	assert.ErrorIs(t, validateFormat("xml"), amerrors.ErrValidation)
}

func TestVersionCmd(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("", "version", "--short")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))

	out, err = env.run("", "version", "--json")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
}

func TestPrintError_FollowsFormatAndDebug(t *testing.T) {
	env := newTestEnv(t)
	notFound := amerrors.NotFound("document", "know_000000000000")

	tests := []struct {
		name string
		args []string
		err  error
		want string
	}{
		{"json format", []string{"get", "doc", "x", "--format", "json"}, notFound, `"code":"` + amerrors.ErrCodeNotFound + `"`},
		{"debug", []string{"--debug", "stats"}, amerrors.StorageUnavailable("load", errors.New("disk gone")), "Cause: disk gone"},
		{"structured", []string{"stats"}, notFound, "Code: " + amerrors.ErrCodeNotFound},
		{"plain", []string{"stats"}, errors.New("boom"), "Error: boom\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := NewRootCmd()
			cmd, _, err := root.Find(tt.args)
			require.NoError(t, err)
			require.NoError(t, cmd.ParseFlags(append([]string{"--data-dir", env.dataDir}, tt.args...)))

			var buf bytes.Buffer
			printError(&buf, cmd, tt.err)

			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
