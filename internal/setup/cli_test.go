package setup

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCLI(input string) (*CLI, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &CLI{
		ServerType: "lite",
		in:         bufio.NewReader(strings.NewReader(input)),
		out:        out,
	}, out
}

func TestRunWithoutArgsPrintsUsage(t *testing.T) {
	cli, out := newTestCLI("")
	require.NoError(t, cli.Run(nil))
	assert.Contains(t, out.String(), "setup <command>")
	assert.Contains(t, out.String(), "claude-desktop")
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	cli, out := newTestCLI("")
	err := cli.Run([]string{"frobnicate"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frobnicate")
	assert.Contains(t, out.String(), "Usage:", "usage should accompany the error")
}

func TestConfirmAnswers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		def   bool
		want  bool
	}{
		{"yes", "y\n", false, true},
		{"yes word", "yes\n", false, true},
		{"no", "n\n", true, false},
		{"empty takes default true", "\n", true, true},
		{"empty takes default false", "\n", false, false},
		{"mixed case", "YES\n", false, true},
		{"garbage is no", "maybe\n", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli, _ := newTestCLI(tt.input)
			assert.Equal(t, tt.want, cli.confirm("Proceed", tt.def))
		})
	}
}

func TestConfirmShowsDefaultInHint(t *testing.T) {
	cli, out := newTestCLI("\n")
	cli.confirm("Proceed", true)
	assert.Contains(t, out.String(), "[Y/n]")

	cli, out = newTestCLI("\n")
	cli.confirm("Proceed", false)
	assert.Contains(t, out.String(), "[y/N]")
}

func TestPromptSubstitutesDefault(t *testing.T) {
	cli, _ := newTestCLI("\n")
	assert.Equal(t, "/opt/default", cli.prompt("Path", "/opt/default"))

	cli, _ = newTestCLI("  /custom/path  \n")
	assert.Equal(t, "/custom/path", cli.prompt("Path", "/opt/default"))
}

func TestMark(t *testing.T) {
	assert.Equal(t, "✓", mark(true))
	assert.Equal(t, "✗", mark(false))
}
