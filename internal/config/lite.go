// Package config provides configuration management for the MCP server.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig configures the standalone server. Everything has a working
// default; environment variables override individual fields.
type LiteConfig struct {
	DataDir string // base directory for the knowledge base and exports

	CacheMaxItems int           // entries kept by the in-memory caches
	CacheTTL      time.Duration // lifetime of cached directory lookups

	DirectoryURL       string // remote drug directory base URL, empty disables
	DirectoryAPIKey    string // API key for the remote directory
	HeuristicTablePath string // JSON file overriding the built-in heuristic table

	Transport string // "stdio" or "http"
	HTTPPort  int    // listen port when Transport is "http"

	LogLevel  string // debug, info, warn, error
	LogFormat string // json or text
}

// DefaultLiteConfig returns the configuration used when no environment
// variables are set.
func DefaultLiteConfig() *LiteConfig {
	home, _ := os.UserHomeDir()

	return &LiteConfig{
		DataDir:       filepath.Join(home, ".medsafety-mcp"),
		CacheMaxItems: 1000,
		CacheTTL:      24 * time.Hour,
		Transport:     "stdio",
		HTTPPort:      8080,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig reads MEDSAFETY_* environment variables over the defaults.
// Unparseable numeric values fall back to the default rather than failing.
func LoadLiteConfig() *LiteConfig {
	def := DefaultLiteConfig()

	return &LiteConfig{
		DataDir:            envStr("MEDSAFETY_DATA_DIR", def.DataDir),
		CacheMaxItems:      envPositiveInt("MEDSAFETY_CACHE_MAX_ITEMS", def.CacheMaxItems),
		CacheTTL:           envDuration("MEDSAFETY_CACHE_TTL", def.CacheTTL),
		DirectoryURL:       os.Getenv("MEDSAFETY_DIRECTORY_URL"),
		DirectoryAPIKey:    os.Getenv("MEDSAFETY_DIRECTORY_API_KEY"),
		HeuristicTablePath: os.Getenv("MEDSAFETY_HEURISTIC_TABLE"),
		Transport:          envStr("MEDSAFETY_TRANSPORT", def.Transport),
		HTTPPort:           envPositiveInt("MEDSAFETY_HTTP_PORT", def.HTTPPort),
		LogLevel:           envStr("MEDSAFETY_LOG_LEVEL", def.LogLevel),
		LogFormat:          envStr("MEDSAFETY_LOG_FORMAT", def.LogFormat),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envPositiveInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// KBPath returns the path to the knowledge base SQLite database.
func (c *LiteConfig) KBPath() string {
	return filepath.Join(c.DataDir, "kb.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory tree if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	for _, dir := range []string{c.DataDir, c.ExportDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
