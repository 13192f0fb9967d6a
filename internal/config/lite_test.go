package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// liteEnvVars lists every variable LoadLiteConfig reads.
var liteEnvVars = []string{
	"MEDSAFETY_DATA_DIR",
	"MEDSAFETY_CACHE_MAX_ITEMS",
	"MEDSAFETY_CACHE_TTL",
	"MEDSAFETY_DIRECTORY_URL",
	"MEDSAFETY_DIRECTORY_API_KEY",
	"MEDSAFETY_HEURISTIC_TABLE",
	"MEDSAFETY_TRANSPORT",
	"MEDSAFETY_HTTP_PORT",
	"MEDSAFETY_LOG_LEVEL",
	"MEDSAFETY_LOG_FORMAT",
}

// neutralizeEnv blanks the MEDSAFETY_* variables for the duration of the
// test, restoring any pre-existing values afterwards.
func neutralizeEnv(t *testing.T) {
	t.Helper()
	for _, v := range liteEnvVars {
		t.Setenv(v, "")
	}
}

func TestLiteDefaults(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "stdio", cfg.Transport)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteWithoutEnvMatchesDefaults(t *testing.T) {
	neutralizeEnv(t)

	cfg := LoadLiteConfig()

	assert.Equal(t, DefaultLiteConfig(), cfg)
	assert.Empty(t, cfg.DirectoryURL)
}

func TestLoadLiteEnvOverrides(t *testing.T) {
	neutralizeEnv(t)
	t.Setenv("MEDSAFETY_DATA_DIR", "/tmp/test-medsafety")
	t.Setenv("MEDSAFETY_CACHE_MAX_ITEMS", "500")
	t.Setenv("MEDSAFETY_CACHE_TTL", "12h")
	t.Setenv("MEDSAFETY_TRANSPORT", "http")
	t.Setenv("MEDSAFETY_HTTP_PORT", "9090")
	t.Setenv("MEDSAFETY_LOG_LEVEL", "debug")
	t.Setenv("MEDSAFETY_DIRECTORY_URL", "https://directory.example.com")
	t.Setenv("MEDSAFETY_DIRECTORY_API_KEY", "test-key")
	t.Setenv("MEDSAFETY_HEURISTIC_TABLE", "/etc/medsafety/heuristics.json")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-medsafety", cfg.DataDir)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "http", cfg.Transport)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://directory.example.com", cfg.DirectoryURL)
	assert.Equal(t, "test-key", cfg.DirectoryAPIKey)
	assert.Equal(t, "/etc/medsafety/heuristics.json", cfg.HeuristicTablePath)
}

func TestLoadLiteRejectsBadNumbers(t *testing.T) {
	neutralizeEnv(t)
	t.Setenv("MEDSAFETY_CACHE_MAX_ITEMS", "not-a-number")
	t.Setenv("MEDSAFETY_HTTP_PORT", "-1")
	t.Setenv("MEDSAFETY_CACHE_TTL", "soon")

	cfg := LoadLiteConfig()

	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
}

func TestLitePaths(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.medsafety-mcp"}

	assert.Equal(t, "/home/user/.medsafety-mcp/kb.db", cfg.KBPath())
	assert.Equal(t, "/home/user/.medsafety-mcp/exports", cfg.ExportDir())
}

func TestLiteEnsureDataDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: filepath.Join(t.TempDir(), "medsafety")}

	require.NoError(t, cfg.EnsureDataDir())

	for _, dir := range []string{cfg.DataDir, cfg.ExportDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
