package setup

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CLI implements the "setup" subcommands of a server binary.
type CLI struct {
	ServerType string // "lite" or "full"
	in         *bufio.Reader
	out        io.Writer
}

// NewCLI returns a setup CLI bound to stdin and stdout.
func NewCLI(serverType string) *CLI {
	return &CLI{
		ServerType: serverType,
		in:         bufio.NewReader(os.Stdin),
		out:        os.Stdout,
	}
}

// Run dispatches one setup subcommand. No arguments prints usage.
func (c *CLI) Run(args []string) error {
	cmd := "help"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "wizard":
		return c.wizard()
	case "claude-desktop":
		return c.claudeDesktop(args)
	case "status":
		return c.status()
	case "validate":
		return c.validate()
	case "help", "--help", "-h":
		c.usage()
		return nil
	default:
		c.usage()
		return fmt.Errorf("unknown setup command %q", cmd)
	}
}

func (c *CLI) usage() {
	fmt.Fprint(c.out, `Register the medication safety server with an MCP client.

Usage:
  mcp-server-lite setup <command> [flags]

Commands:
  wizard          guided interactive setup
  claude-desktop  write the server entry into the Claude Desktop config
  status          report what is configured and what is missing
  validate        check that the recorded configuration still works
  help            print this message

Flags for claude-desktop:
  --binary, -b    path to the server binary (default: this executable)
  --data-dir, -d  directory for the knowledge base and exports
  --auto, -y      apply without prompting
`)
}

// claudeDesktop registers the server in the Claude Desktop config file,
// prompting for confirmation unless --auto is given.
func (c *CLI) claudeDesktop(args []string) error {
	opts := SetupOptions{ServerType: c.ServerType}

	fs := flag.NewFlagSet("claude-desktop", flag.ContinueOnError)
	fs.SetOutput(c.out)
	fs.Usage = c.usage
	fs.StringVar(&opts.BinaryPath, "binary", "", "path to the server binary")
	fs.StringVar(&opts.BinaryPath, "b", "", "")
	fs.StringVar(&opts.DataDir, "data-dir", "", "data directory")
	fs.StringVar(&opts.DataDir, "d", "", "")
	fs.BoolVar(&opts.AutoConfirm, "auto", false, "apply without prompting")
	fs.BoolVar(&opts.AutoConfirm, "y", false, "")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.BinaryPath == "" {
		if exe, err := os.Executable(); err == nil {
			opts.BinaryPath = exe
		}
	}

	configPath, err := GetClaudeDesktopConfigPath()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "Claude Desktop registration")
	fmt.Fprintf(c.out, "  config: %s\n", configPath)
	fmt.Fprintf(c.out, "  binary: %s\n", opts.BinaryPath)
	if opts.DataDir != "" {
		fmt.Fprintf(c.out, "  data:   %s\n", opts.DataDir)
	}
	fmt.Fprintln(c.out)

	if !opts.AutoConfirm && !c.confirm("Write this entry", true) {
		fmt.Fprintln(c.out, "Nothing written.")
		return nil
	}

	if err := ConfigureClaudeDesktop(opts); err != nil {
		return fmt.Errorf("configuring Claude Desktop: %w", err)
	}

	fmt.Fprintln(c.out, "✓ Server registered with Claude Desktop.")
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Restart Claude Desktop, then try a prompt such as:")
	fmt.Fprintln(c.out, `  "Check warfarin and aspirin for interactions"`)
	return nil
}

// status prints a line per component with a pass or fail mark, followed by
// any issues GetStatus collected.
func (c *CLI) status() error {
	st, err := GetStatus(c.ServerType)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "Setup status")
	fmt.Fprintln(c.out)

	fmt.Fprintf(c.out, "%s Claude Desktop entry\n", mark(st.ClaudeDesktopConfigured))
	fmt.Fprintf(c.out, "    config: %s\n", st.ClaudeDesktopPath)

	if st.ServerConfigured {
		_, statErr := os.Stat(st.ServerPath)
		fmt.Fprintf(c.out, "%s Server binary\n", mark(statErr == nil))
		fmt.Fprintf(c.out, "    path: %s\n", st.ServerPath)
	} else {
		fmt.Fprintf(c.out, "%s Server binary (not configured)\n", mark(false))
	}

	_, dataErr := os.Stat(st.DataDir)
	fmt.Fprintf(c.out, "%s Data directory\n", mark(dataErr == nil))
	fmt.Fprintf(c.out, "    path: %s\n", st.DataDir)
	if dataErr == nil {
		if _, err := os.Stat(filepath.Join(st.DataDir, "kb.db")); err == nil {
			fmt.Fprintln(c.out, "    knowledge base: present")
		} else {
			fmt.Fprintln(c.out, "    knowledge base: created on first run")
		}
	} else {
		fmt.Fprintln(c.out, "    created on first run")
	}

	if len(st.Issues) > 0 {
		fmt.Fprintln(c.out)
		fmt.Fprintln(c.out, "Issues:")
		for _, issue := range st.Issues {
			fmt.Fprintf(c.out, "  ⚠ %s\n", issue)
		}
	}
	return nil
}

// validate reruns the configuration checks and reports the outcome. Warnings
// alone do not fail validation.
func (c *CLI) validate() error {
	ok, issues := Validate(c.ServerType)

	switch {
	case ok && len(issues) == 0:
		fmt.Fprintln(c.out, "✓ Configuration checks passed.")
	case ok:
		fmt.Fprintln(c.out, "✓ Configuration is usable, with notes:")
	default:
		fmt.Fprintln(c.out, "✗ Configuration has problems:")
	}
	for _, issue := range issues {
		fmt.Fprintf(c.out, "  - %s\n", issue)
	}
	return nil
}

// wizard walks through binary path and data directory selection, then writes
// the Claude Desktop entry.
func (c *CLI) wizard() error {
	fmt.Fprintln(c.out, "Medication safety server setup")
	fmt.Fprintln(c.out)

	if st, err := GetStatus(c.ServerType); err == nil && st.ClaudeDesktopConfigured {
		fmt.Fprintln(c.out, "Claude Desktop already has an entry for this server.")
		if !c.confirm("Overwrite it", false) {
			fmt.Fprintln(c.out, "Keeping the existing configuration.")
			return nil
		}
		fmt.Fprintln(c.out)
	}

	exe, _ := os.Executable()
	binary := c.prompt("Server binary", exe)
	if _, err := os.Stat(binary); os.IsNotExist(err) {
		fmt.Fprintf(c.out, "⚠ No file at %s\n", binary)
		if !c.confirm("Use this path anyway", false) {
			return fmt.Errorf("setup cancelled")
		}
	}

	dataDir := c.prompt("Data directory", GetDefaultDataDir())

	fmt.Fprintln(c.out)
	if err := ConfigureClaudeDesktop(SetupOptions{
		ServerType: c.ServerType,
		BinaryPath: binary,
		DataDir:    dataDir,
	}); err != nil {
		return fmt.Errorf("configuring Claude Desktop: %w", err)
	}
	if err := EnsureDataDir(dataDir); err != nil {
		fmt.Fprintf(c.out, "⚠ Could not create %s: %v\n", dataDir, err)
	}

	fmt.Fprintln(c.out, "✓ Setup complete.")
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Restart Claude Desktop so it picks up the new entry, then try:")
	fmt.Fprintln(c.out, `  "Check warfarin and aspirin for interactions"`)
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "For other commands, run: mcp-server-lite setup help")
	return nil
}

// confirm asks a yes/no question. An empty answer takes the default.
func (c *CLI) confirm(question string, def bool) bool {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	fmt.Fprintf(c.out, "%s %s: ", question, hint)

	line, _ := c.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return def
	case "y", "yes":
		return true
	default:
		return false
	}
}

// prompt reads one line of input, substituting def when the answer is empty.
func (c *CLI) prompt(label, def string) string {
	fmt.Fprintf(c.out, "%s [%s]: ", label, def)

	line, _ := c.in.ReadString('\n')
	if line = strings.TrimSpace(line); line != "" {
		return line
	}
	return def
}

// mark renders a pass or fail prefix for status lines.
func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
