package cmd

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/MeKo-Tech/qrkit/internal/platform"
)

// isolate runs the test in an empty directory with no reachable config file.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

// useMemoryClipboard swaps the system clipboard for an in-memory one.
func useMemoryClipboard(t *testing.T) *platform.MemoryClipboard {
	t.Helper()
	clip := &platform.MemoryClipboard{}
	t.Cleanup(SetClipboard(clip))
	return clip
}

// executeCommand runs the root command with args and returns stdout and
// stderr separately.
func executeCommand(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	ResetFlags()
	t.Cleanup(ResetFlags)

	root := GetRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	root.SetIn(stdin)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
