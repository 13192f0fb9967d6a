// Package setup wires the lite server into MCP client configurations, so a
// single binary can register itself with Claude Desktop without hand-editing
// JSON.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// serverKey is the entry name under which the server registers itself in the
// client configuration.
const serverKey = "medication-safety"

// dataDirEnv names the environment variable the server reads its data
// directory from.
const dataDirEnv = "MEDSAFETY_DATA_DIR"

// ClaudeDesktopConfig mirrors the client's JSON configuration file. Entries
// for other servers pass through load and save untouched.
type ClaudeDesktopConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

// MCPServerConfig is one server entry in the client configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// SetupOptions selects what ConfigureClaudeDesktop writes.
type SetupOptions struct {
	ServerType  string // "lite" or "full"
	BinaryPath  string // path to the server binary, found automatically when empty
	DataDir     string // data directory, recorded in the entry's environment
	AutoConfirm bool   // skip confirmation prompts
}

// GetClaudeDesktopConfigPath returns the platform-specific location of the
// Claude Desktop configuration file.
func GetClaudeDesktopConfigPath() (string, error) {
	const configName = "claude_desktop_config.json"

	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "Claude", configName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Claude", configName), nil
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "Claude", configName), nil
		}
		return filepath.Join(home, ".config", "Claude", configName), nil
	}

	return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
}

// LoadClaudeDesktopConfig reads the client configuration. A missing file
// yields an empty configuration rather than an error.
func LoadClaudeDesktopConfig(configPath string) (*ClaudeDesktopConfig, error) {
	config := &ClaudeDesktopConfig{MCPServers: map[string]MCPServerConfig{}}

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		return config, nil
	case err != nil:
		return nil, fmt.Errorf("reading client config: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing client config %s: %w", configPath, err)
	}
	if config.MCPServers == nil {
		config.MCPServers = map[string]MCPServerConfig{}
	}
	return config, nil
}

// SaveClaudeDesktopConfig writes the client configuration, keeping a .bak
// copy of the previous contents.
func SaveClaudeDesktopConfig(configPath string, config *ClaudeDesktopConfig) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if previous, err := os.ReadFile(configPath); err == nil {
		if err := os.WriteFile(configPath+".bak", previous, 0644); err != nil {
			return fmt.Errorf("backing up existing config: %w", err)
		}
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding client config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("writing client config: %w", err)
	}
	return nil
}

// ConfigureClaudeDesktop adds or updates the medication safety server entry
// in the Claude Desktop config. Other entries are left untouched.
func ConfigureClaudeDesktop(opts SetupOptions) error {
	configPath, err := GetClaudeDesktopConfigPath()
	if err != nil {
		return err
	}

	config, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		return err
	}

	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		binaryPath, err = findBinary(opts.ServerType)
		if err != nil {
			return fmt.Errorf("locating server binary: %w", err)
		}
	}

	entry := MCPServerConfig{
		Command: binaryPath,
		Args:    []string{},
		Env:     map[string]string{},
	}
	if opts.DataDir != "" {
		entry.Env[dataDirEnv] = opts.DataDir
	}
	config.MCPServers[serverKey] = entry

	return SaveClaudeDesktopConfig(configPath, config)
}

// findBinary locates the server binary, preferring PATH over the usual
// install locations.
func findBinary(serverType string) (string, error) {
	name := "mcp-server-lite"
	if serverType == "full" {
		name = "mcp-server"
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	candidates := []string{
		filepath.Join(".", name),
		filepath.Join(".", "build", name),
		filepath.Join(os.Getenv("HOME"), ".local", "bin", name),
		filepath.Join("/usr/local/bin", name),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if abs, err := filepath.Abs(candidate); err == nil {
			return abs, nil
		}
		return candidate, nil
	}

	return "", fmt.Errorf("no %s binary on PATH or in the usual install locations", name)
}

// Status describes what the setup commands have configured so far.
type Status struct {
	ClaudeDesktopConfigured bool
	ClaudeDesktopPath       string
	ServerConfigured        bool
	ServerPath              string
	DataDir                 string
	Issues                  []string
}

// GetStatus inspects the client configuration and data directory.
func GetStatus(serverType string) (*Status, error) {
	status := &Status{Issues: []string{}}

	inspectClientEntry(status)

	if status.DataDir == "" {
		status.DataDir = GetDefaultDataDir()
	}
	if _, err := os.Stat(status.DataDir); os.IsNotExist(err) {
		status.Issues = append(status.Issues, fmt.Sprintf("Data directory %s has not been created yet", status.DataDir))
	}

	return status, nil
}

// inspectClientEntry fills the Claude Desktop portion of the status.
func inspectClientEntry(status *Status) {
	configPath, err := GetClaudeDesktopConfigPath()
	if err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("Cannot locate the Claude Desktop config: %v", err))
		return
	}
	status.ClaudeDesktopPath = configPath

	config, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("Could not load Claude Desktop config: %v", err))
		return
	}

	entry, ok := config.MCPServers[serverKey]
	if !ok {
		return
	}

	status.ClaudeDesktopConfigured = true
	status.ServerConfigured = true
	status.ServerPath = entry.Command
	status.DataDir = entry.Env[dataDirEnv]

	if _, err := os.Stat(entry.Command); os.IsNotExist(err) {
		status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found at: %s", entry.Command))
	}
}

// Validate checks that the recorded configuration would still start. The
// returned issues may be warnings only, in which case the setup is reported
// valid.
func Validate(serverType string) (bool, []string) {
	configPath, err := GetClaudeDesktopConfigPath()
	if err != nil {
		return false, []string{fmt.Sprintf("Cannot find Claude Desktop config: %v", err)}
	}
	config, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		return false, []string{fmt.Sprintf("Cannot load Claude Desktop config: %v", err)}
	}
	entry, ok := config.MCPServers[serverKey]
	if !ok {
		return false, []string{"Medication safety server not configured in Claude Desktop"}
	}

	var issues []string

	if _, err := os.Stat(entry.Command); os.IsNotExist(err) {
		issues = append(issues, fmt.Sprintf("Server binary not found: %s", entry.Command))
	} else if !executable(entry.Command) {
		issues = append(issues, fmt.Sprintf("Server binary is not executable: %s", entry.Command))
	}

	dataDir := entry.Env[dataDirEnv]
	if dataDir == "" {
		dataDir = GetDefaultDataDir()
	}
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		issues = append(issues, fmt.Sprintf("Data directory will be created on first run: %s", dataDir))
	}

	return allWarnings(issues), issues
}

// executable reports whether the file at path can be run. A failed --help
// probe is accepted as long as the execute bit is set.
func executable(path string) bool {
	if err := exec.Command(path, "--help").Run(); err == nil {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode()&0111 != 0
}

// allWarnings reports whether every issue is informational. An empty list
// counts as all warnings.
func allWarnings(issues []string) bool {
	for _, issue := range issues {
		if !strings.Contains(issue, "will be created") {
			return false
		}
	}
	return true
}

// GetDefaultDataDir returns the data directory used when none is configured.
func GetDefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".medsafety-mcp")
}

// EnsureDataDir creates the data directory and its subdirectories.
func EnsureDataDir(dataDir string) error {
	if dataDir == "" {
		dataDir = GetDefaultDataDir()
	}

	for _, dir := range []string{dataDir, filepath.Join(dataDir, "exports")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
