package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingConfigReturnsEmpty(t *testing.T) {
	config, err := LoadClaudeDesktopConfig(filepath.Join(t.TempDir(), "claude_desktop_config.json"))
	require.NoError(t, err)
	require.NotNil(t, config)
	assert.Empty(t, config.MCPServers)
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claude_desktop_config.json")

	require.NoError(t, SaveClaudeDesktopConfig(path, &ClaudeDesktopConfig{
		MCPServers: map[string]MCPServerConfig{
			serverKey: {
				Command: "/usr/local/bin/mcp-server-lite",
				Env:     map[string]string{"MEDSAFETY_DATA_DIR": "/data"},
			},
		},
	}))

	config, err := LoadClaudeDesktopConfig(path)
	require.NoError(t, err)
	entry, ok := config.MCPServers[serverKey]
	require.True(t, ok)
	assert.Equal(t, "/usr/local/bin/mcp-server-lite", entry.Command)
	assert.Equal(t, "/data", entry.Env["MEDSAFETY_DATA_DIR"])
}

func TestSaveBacksUpPreviousConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claude_desktop_config.json")

	original := &ClaudeDesktopConfig{
		MCPServers: map[string]MCPServerConfig{
			"other-server": {Command: "/opt/other"},
		},
	}
	require.NoError(t, SaveClaudeDesktopConfig(path, original))

	// First save had nothing to back up.
	_, err := os.Stat(path + ".bak")
	assert.True(t, os.IsNotExist(err))

	updated := &ClaudeDesktopConfig{
		MCPServers: map[string]MCPServerConfig{
			"other-server": {Command: "/opt/other"},
			serverKey:      {Command: "/usr/local/bin/mcp-server-lite"},
		},
	}
	require.NoError(t, SaveClaudeDesktopConfig(path, updated))

	backup, err := LoadClaudeDesktopConfig(path + ".bak")
	require.NoError(t, err)
	_, hasOurs := backup.MCPServers[serverKey]
	assert.False(t, hasOurs, "backup should hold the pre-update contents")
	assert.Contains(t, backup.MCPServers, "other-server")
}
