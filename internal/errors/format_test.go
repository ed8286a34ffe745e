package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForUser_BasicError(t *testing.T) {
	// Given: an AmanError
	err := New(ErrCodeConfigNotFound, "file 'config.yaml' not found", nil)

	// When: formatting for user
	result := FormatForUser(err, false)

	// Then: contains message and code
	assert.Contains(t, result, "file 'config.yaml' not found")
	assert.Contains(t, result, "[ERR_101_CONFIG_NOT_FOUND]")
}

func TestFormatForUser_WithSuggestion(t *testing.T) {
	// Given: an index error, which carries a rebuild suggestion
	err := IndexUnavailable("index.json is unreadable", nil)

	// When: formatting for user
	result := FormatForUser(err, false)

	// Then: contains suggestion
	assert.Contains(t, result, "Suggestion:")
	assert.Contains(t, result, "amanknow rebuild")
}

func TestFormatForUser_DebugShowsCause(t *testing.T) {
	err := StorageUnavailable("save documents", errors.New("permission denied"))

	assert.NotContains(t, FormatForUser(err, false), "Cause:")
	assert.Contains(t, FormatForUser(err, true), "Cause: permission denied")
}

func TestFormatForUser_StandardError(t *testing.T) {
	result := FormatForUser(errors.New("something went wrong"), false)

	assert.Equal(t, "something went wrong", result)
	assert.Equal(t, "", FormatForUser(nil, false))
}

func TestFormatForCLI_WrapsPlainErrors(t *testing.T) {
	result := FormatForCLI(errors.New("boom"))

	assert.Contains(t, result, "Error: boom")
	assert.Contains(t, result, "Code: ERR_501_INTERNAL")
}

func TestFormatJSON_IncludesFields(t *testing.T) {
	// Given: a not-found error with details
	err := NotFound("chunk", "chk_00112233445566")

	// When: formatting as JSON
	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	// Then: fields round through JSON
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, ErrCodeNotFound, got["code"])
	assert.Equal(t, "VALIDATION", got["category"])
	assert.Equal(t, "chk_00112233445566", got["details"].(map[string]any)["id"])
}

func TestLogAttrs(t *testing.T) {
	attrs := LogAttrs(InboxFileError("a.txt", errors.New("eof")))

	assert.Contains(t, attrs, "error_code")
	assert.Contains(t, attrs, ErrCodeInboxFile)
	assert.Contains(t, attrs, "detail_filename")
	assert.Nil(t, LogAttrs(nil))
	assert.Equal(t, []any{"error", "plain"}, LogAttrs(errors.New("plain")))
}
