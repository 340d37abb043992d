package e2e_test

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// testProject creates an isolated project directory with bmad-assist.yaml
// and a private $HOME, so tests never touch the real operator's global
// config or state.
type testProject struct {
	Dir        string
	Home       string
	BinaryPath string
	t          *testing.T
}

// newTestProject builds the bmad-assist binary and returns a testProject
// rooted in a fresh temp directory with its own $HOME.
func newTestProject(t *testing.T) *testProject {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("E2E tests are not supported on Windows")
	}

	dir := t.TempDir()
	home := t.TempDir()

	binary := filepath.Join(dir, "bmad-assist")
	build := exec.Command("go", "build", "-o", binary, "./cmd/bmad-assist")
	build.Dir = projectRoot()
	out, err := build.CombinedOutput()
	require.NoError(t, err, "building bmad-assist: %s", string(out))

	return &testProject{Dir: dir, Home: home, BinaryPath: binary, t: t}
}

// projectRoot returns the absolute path to the root of the repository. It
// uses runtime.Caller(0) to find this source file's location and navigates
// two directories up (tests/e2e/ -> tests/ -> repo root).
func projectRoot() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(thisFile), "..", "..")
}

// writeConfig writes content to bmad-assist.yaml in tp.Dir.
func (tp *testProject) writeConfig(content string) {
	tp.t.Helper()
	err := os.WriteFile(filepath.Join(tp.Dir, "bmad-assist.yaml"), []byte(content), 0o644)
	require.NoError(tp.t, err)
}

// run creates an exec.Cmd for bmad-assist with an isolated $HOME and
// --project pointed at tp.Dir.
func (tp *testProject) run(args ...string) *exec.Cmd {
	cmd := exec.Command(tp.BinaryPath, args...)
	cmd.Dir = tp.Dir
	cmd.Env = append(os.Environ(),
		"HOME="+tp.Home,
		"NO_COLOR=1",
		"BMAD_LOG_FORMAT=json",
	)
	return cmd
}

// runExpectSuccess runs bmad-assist and asserts exit code 0. Returns
// combined stdout+stderr output.
func (tp *testProject) runExpectSuccess(args ...string) string {
	tp.t.Helper()
	cmd := tp.run(args...)
	out, err := cmd.CombinedOutput()
	require.NoError(tp.t, err, "bmad-assist %v failed:\n%s", args, string(out))
	return string(out)
}

// runExpectFailure runs bmad-assist and asserts a non-zero exit code.
// Returns combined output and the exit code.
func (tp *testProject) runExpectFailure(args ...string) (string, int) {
	tp.t.Helper()
	cmd := tp.run(args...)
	out, err := cmd.CombinedOutput()
	require.Error(tp.t, err, "bmad-assist %v expected to fail but succeeded:\n%s", args, string(out))
	var exitErr *exec.ExitError
	require.True(tp.t, errors.As(err, &exitErr), "expected *exec.ExitError, got %T: %v", err, err)
	return string(out), exitErr.ExitCode()
}

// initGitRepo initialises a git repository in dir with an initial commit.
func initGitRepo(t *testing.T, dir string) {
	t.Helper()
	setupCmds := [][]string{
		{"git", "init"},
		{"git", "config", "user.email", "test@example.com"},
		{"git", "config", "user.name", "Test User"},
	}
	for _, args := range setupCmds {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "%v failed: %s", args, string(out))
	}

	keepFile := filepath.Join(dir, ".gitkeep")
	require.NoError(t, os.WriteFile(keepFile, []byte(""), 0o644))
	for _, args := range [][]string{
		{"git", "add", ".gitkeep"},
		{"git", "commit", "-m", "init"},
	} {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "%v failed: %s", args, string(out))
	}
}

// minimalConfig returns a minimal bmad-assist.yaml naming a single provider.
func minimalConfig(providerName string) string {
	return fmt.Sprintf(`project:
  name: test-project
  language: go
providers:
  %s:
    command: %s
`, providerName, providerName)
}

// qaEnabledConfig returns a minimal config with QA execution enabled.
func qaEnabledConfig(providerName string) string {
	return fmt.Sprintf(`project:
  name: test-project
  language: go
  master: %s
providers:
  %s:
    command: %s
qa:
  enabled: true
`, providerName, providerName, providerName)
}
