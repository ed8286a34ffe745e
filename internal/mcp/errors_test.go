package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
	"github.com/Aman-CERP/amanknow/internal/ingest"
	"github.com/Aman-CERP/amanknow/pkg/knowledge"
)

func writeInboxFile(t *testing.T, svc *knowledge.Service, name, content string) {
	t.Helper()
	dir := filepath.Join(svc.DataDir(), "inbox")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"index", amerrors.IndexUnavailable("load index", nil), ErrCodeIndexUnavailable},
		{"storage", amerrors.StorageUnavailable("save", nil), ErrCodeStorageUnavailable},
		{"corrupt", amerrors.New(amerrors.ErrCodeCorruptStore, "bad", nil), ErrCodeStorageUnavailable},
		{"inbox", amerrors.InboxFileError("a.txt", errors.New("denied")), ErrCodeStorageUnavailable},
		{"validation", amerrors.ValidationError("overlap too large", nil), ErrCodeInvalidParams},
		{"not found", amerrors.NotFound("document", "know_x"), ErrCodeNotFound},
		{"config", amerrors.ConfigError("bad yaml", nil), ErrCodeInternalError},
		{"wrapped", fmt.Errorf("search: %w", amerrors.IndexUnavailable("x", nil)), ErrCodeIndexUnavailable},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"plain", errors.New("boom"), ErrCodeInternalError},
		{"mcp passthrough", NewInvalidParamsError("bad"), ErrCodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	err := amerrors.IndexUnavailable("load index", nil).WithSuggestion("Run 'amanknow rebuild'.")

	got := MapError(err)

	assert.Equal(t, "load index Run 'amanknow rebuild'.", got.Message)
}

func TestMCPError_Error(t *testing.T) {
	assert.Equal(t, "MCP error -32004: chunk 'chk_x' not found.", NewNotFoundError("chunk", "chk_x").Error())
}

func TestToInboxFileOutput(t *testing.T) {
	ok := ToInboxFileOutput(ingest.FileResult{Name: "a.txt", DocID: "know_1", ChunksCreated: 2})
	assert.Empty(t, ok.Error)

	failed := ToInboxFileOutput(ingest.FileResult{Name: "b.txt", Err: amerrors.InboxFileError("b.txt", errors.New("denied"))})
	assert.NotEmpty(t, failed.Error)
	assert.Empty(t, failed.DocID)
}
