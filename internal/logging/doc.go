// Package logging configures structured slog output for AmanKnow.
//
// CLI commands log to stderr at info level. With --debug, or when serving MCP
// over stdio, JSON records also go to a size-rotated file under
// ~/.amanknow/logs/ so that stdout stays reserved for the protocol stream.
package logging
