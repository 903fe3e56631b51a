package support

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/qrkit/cmd/qrkit/cmd"
	"github.com/MeKo-Tech/qrkit/internal/platform"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastStderr    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	WorkingDir string
	TempDir    string
	Clipboard  *platform.MemoryClipboard

	// Server management
	ServerURL    string
	serverCancel context.CancelFunc
	serverDone   chan error

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   []byte
	LastHTTPHeaders    http.Header

	prevDir          string
	prevEnv          map[string]*string
	restoreClipboard func()
}

// NewTestContext creates a scenario context with an isolated working
// directory, home directory and in-memory clipboard.
func NewTestContext() (*TestContext, error) {
	prevDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "qrkit-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	testCtx := &TestContext{
		WorkingDir: tempDir,
		TempDir:    tempDir,
		Clipboard:  &platform.MemoryClipboard{},
		prevDir:    prevDir,
		prevEnv:    map[string]*string{},
	}

	if err := os.Chdir(tempDir); err != nil {
		return nil, fmt.Errorf("failed to enter temp directory: %w", err)
	}
	testCtx.SetEnv("HOME", tempDir)
	testCtx.SetEnv("XDG_CONFIG_HOME", tempDir)
	testCtx.restoreClipboard = cmd.SetClipboard(testCtx.Clipboard)

	return testCtx, nil
}

// Cleanup stops the server, restores the process environment and removes the
// temp directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error

	if err := testCtx.StopServer(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop server: %w", err))
	}

	testCtx.restoreClipboard()
	cmd.ResetFlags()

	for name, prev := range testCtx.prevEnv {
		if prev == nil {
			_ = os.Unsetenv(name)
		} else {
			_ = os.Setenv(name, *prev)
		}
	}

	if err := os.Chdir(testCtx.prevDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to restore working directory: %w", err))
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// SetEnv sets an environment variable for the rest of the scenario.
func (testCtx *TestContext) SetEnv(name, value string) {
	if _, seen := testCtx.prevEnv[name]; !seen {
		if prev, ok := os.LookupEnv(name); ok {
			testCtx.prevEnv[name] = &prev
		} else {
			testCtx.prevEnv[name] = nil
		}
	}
	_ = os.Setenv(name, value)
}

// Path resolves a scenario file name inside the temp directory.
func (testCtx *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, name)
}

// substituteVariables expands {tmp} and {server} placeholders.
func (testCtx *TestContext) substituteVariables(s string) string {
	s = strings.ReplaceAll(s, "{tmp}", testCtx.TempDir)
	return strings.ReplaceAll(s, "{server}", testCtx.ServerURL)
}
