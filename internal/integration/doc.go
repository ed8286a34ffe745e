// Package integration holds end-to-end tests that run the ingestion,
// indexing, search, and inbox watching layers together against real
// storage backends.
package integration
