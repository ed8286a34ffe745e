package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

// Chunking and search limits shared with the chunk and search packages.
const (
	DefaultMaxChars      = 1200
	DefaultOverlap       = 150
	DefaultSearchLimit   = 10
	MaxSearchLimit       = 50
	DefaultInboxLimit    = 25
	MaxInboxLimit        = 200
	DefaultInboxWorkers  = 4
	MaxInboxWorkers      = 32
	DefaultWatchDebounce = "500ms"
)

// Config represents the complete AmanKnow configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Chunking ChunkingConfig `yaml:"chunking" json:"chunking"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Inbox    InboxConfig    `yaml:"inbox" json:"inbox"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// StorageConfig selects the document repository.
type StorageConfig struct {
	// Backend is "sqlite" (default) or "json".
	Backend string `yaml:"backend" json:"backend"`
	// DataDir holds the database or JSON files plus inbox/ and clean/.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// SQLiteCacheMB is the page cache size for the sqlite backend.
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
	// ChunkCacheSize is the number of chunks kept in the LRU read cache.
	ChunkCacheSize int `yaml:"chunk_cache_size" json:"chunk_cache_size"`
}

// ChunkingConfig configures the fixed-window chunker.
type ChunkingConfig struct {
	MaxChars int `yaml:"max_chars" json:"max_chars"`
	Overlap  int `yaml:"overlap" json:"overlap"`
}

// SearchConfig configures query defaults.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
}

// InboxConfig configures batch inbox ingestion.
type InboxConfig struct {
	BatchLimit int `yaml:"batch_limit" json:"batch_limit"`
	// Workers bounds concurrent inbox file reads.
	Workers int `yaml:"workers" json:"workers"`
	// WatchDebounce is a duration string, e.g. "500ms".
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a Config with defaults applied.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			Backend:        BackendSQLite,
			DataDir:        DefaultDataDir(),
			SQLiteCacheMB:  16,
			ChunkCacheSize: 1024,
		},
		Chunking: ChunkingConfig{
			MaxChars: DefaultMaxChars,
			Overlap:  DefaultOverlap,
		},
		Search: SearchConfig{
			DefaultLimit: DefaultSearchLimit,
		},
		Inbox: InboxConfig{
			BatchLimit:    DefaultInboxLimit,
			Workers:       DefaultInboxWorkers,
			WatchDebounce: DefaultWatchDebounce,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// DefaultDataDir returns ~/.amanknow/data, or a temp-dir fallback.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".amanknow", "data")
	}
	return filepath.Join(home, ".amanknow", "data")
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/amanknow/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/amanknow/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "amanknow", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "amanknow", "config.yaml")
	}
	return filepath.Join(home, ".config", "amanknow", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the working directory dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/amanknow/config.yaml)
//  3. Project config (.amanknow.yaml in dir)
//  4. .env in dir (never overrides variables already set)
//  5. Environment variables (AMANKNOW_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if envPath := filepath.Join(dir, ".env"); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, amerrors.ConfigError("load "+envPath, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile loads .amanknow.yaml or .amanknow.yml from dir, if present.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".amanknow.yaml", ".amanknow.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML parses path and merges its non-zero values into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return amerrors.New(amerrors.ErrCodeConfigNotFound, "read config file "+path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return amerrors.ConfigError("parse config file "+path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Storage.Backend != "" {
		c.Storage.Backend = other.Storage.Backend
	}
	if other.Storage.DataDir != "" {
		c.Storage.DataDir = expandHome(other.Storage.DataDir)
	}
	if other.Storage.SQLiteCacheMB != 0 {
		c.Storage.SQLiteCacheMB = other.Storage.SQLiteCacheMB
	}
	if other.Storage.ChunkCacheSize != 0 {
		c.Storage.ChunkCacheSize = other.Storage.ChunkCacheSize
	}

	if other.Chunking.MaxChars != 0 {
		c.Chunking.MaxChars = other.Chunking.MaxChars
	}
	if other.Chunking.Overlap != 0 {
		c.Chunking.Overlap = other.Chunking.Overlap
	}

	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}

	if other.Inbox.BatchLimit != 0 {
		c.Inbox.BatchLimit = other.Inbox.BatchLimit
	}
	if other.Inbox.Workers != 0 {
		c.Inbox.Workers = other.Inbox.Workers
	}
	if other.Inbox.WatchDebounce != "" {
		c.Inbox.WatchDebounce = other.Inbox.WatchDebounce
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies AMANKNOW_* environment variable overrides.
// Unparseable numbers are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AMANKNOW_DATA_DIR"); v != "" {
		c.Storage.DataDir = expandHome(v)
	}
	if v := os.Getenv("AMANKNOW_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	envInt("AMANKNOW_CHUNK_MAX_CHARS", &c.Chunking.MaxChars)
	// Overlap may legitimately be zero.
	if v := os.Getenv("AMANKNOW_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Chunking.Overlap = n
		}
	}
	envInt("AMANKNOW_SEARCH_LIMIT", &c.Search.DefaultLimit)
	envInt("AMANKNOW_INBOX_LIMIT", &c.Inbox.BatchLimit)
	envInt("AMANKNOW_INBOX_WORKERS", &c.Inbox.Workers)
	if v := os.Getenv("AMANKNOW_WATCH_DEBOUNCE"); v != "" {
		c.Inbox.WatchDebounce = v
	}
	if v := os.Getenv("AMANKNOW_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Backend) {
	case BackendSQLite, BackendJSON:
	default:
		return amerrors.ConfigError(fmt.Sprintf("storage.backend must be 'sqlite' or 'json', got %q", c.Storage.Backend), nil)
	}
	if c.Storage.DataDir == "" {
		return amerrors.ConfigError("storage.data_dir must not be empty", nil)
	}
	if c.Storage.ChunkCacheSize < 0 {
		return amerrors.ConfigError(fmt.Sprintf("storage.chunk_cache_size must be non-negative, got %d", c.Storage.ChunkCacheSize), nil)
	}

	if c.Chunking.MaxChars <= 0 {
		return amerrors.ConfigError(fmt.Sprintf("chunking.max_chars must be positive, got %d", c.Chunking.MaxChars), nil)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.MaxChars {
		return amerrors.ConfigError(fmt.Sprintf("chunking.overlap must be in [0, max_chars), got %d with max_chars %d",
			c.Chunking.Overlap, c.Chunking.MaxChars), nil)
	}

	if c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > MaxSearchLimit {
		return amerrors.ConfigError(fmt.Sprintf("search.default_limit must be between 1 and %d, got %d", MaxSearchLimit, c.Search.DefaultLimit), nil)
	}
	if c.Inbox.BatchLimit < 0 || c.Inbox.BatchLimit > MaxInboxLimit {
		return amerrors.ConfigError(fmt.Sprintf("inbox.batch_limit must be between 0 and %d, got %d", MaxInboxLimit, c.Inbox.BatchLimit), nil)
	}
	if c.Inbox.Workers < 1 || c.Inbox.Workers > MaxInboxWorkers {
		return amerrors.ConfigError(fmt.Sprintf("inbox.workers must be between 1 and %d, got %d", MaxInboxWorkers, c.Inbox.Workers), nil)
	}
	if _, err := c.WatchDebounce(); err != nil {
		return amerrors.ConfigError("inbox.watch_debounce is not a duration: "+c.Inbox.WatchDebounce, err)
	}

	if !strings.EqualFold(c.Server.Transport, "stdio") {
		return amerrors.ConfigError(fmt.Sprintf("server.transport must be 'stdio', got %q", c.Server.Transport), nil)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return amerrors.ConfigError(fmt.Sprintf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %q", c.Server.LogLevel), nil)
	}

	return nil
}

// WatchDebounce parses Inbox.WatchDebounce.
func (c *Config) WatchDebounce() (time.Duration, error) {
	d, err := time.ParseDuration(c.Inbox.WatchDebounce)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}
	return d, nil
}

// InboxDir is where new files are dropped for batch ingestion.
func (c *Config) InboxDir() string {
	return filepath.Join(c.Storage.DataDir, "inbox")
}

// CleanDir receives normalized copies of ingested inbox files.
func (c *Config) CleanDir() string {
	return filepath.Join(c.Storage.DataDir, "clean")
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
