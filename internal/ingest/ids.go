package ingest

import (
	"strings"

	"github.com/google/uuid"
)

// ID prefixes and random hex lengths.
const (
	DocumentIDPrefix = "know_"
	ChunkIDPrefix    = "chk_"
	documentIDHex    = 12
	chunkIDHex       = 14
)

// randomID returns prefix followed by n hex characters of a random UUID.
func randomID(prefix string, n int) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + hex[:n]
}

// NewDocumentID returns a fresh "know_" identifier.
func NewDocumentID() string { return randomID(DocumentIDPrefix, documentIDHex) }

// NewChunkID returns a fresh "chk_" identifier.
func NewChunkID() string { return randomID(ChunkIDPrefix, chunkIDHex) }
