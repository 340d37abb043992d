package e2e_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	out := tp.runExpectSuccess("version")
	assert.Contains(t, out, "bmad-assist")
}

func TestVersionCommandJSON(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	out := tp.runExpectSuccess("version", "--json")
	assert.Contains(t, out, `"version"`)
}

func TestInitCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	out := tp.runExpectSuccess("init")
	t.Logf("init output: %s", out)

	require.DirExists(t, tp.Dir+"/.bmad-assist")
	require.FileExists(t, tp.Dir+"/.gitignore")
}

func TestInitCommandIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	tp.runExpectSuccess("init")
	out := tp.runExpectSuccess("init")
	assert.Contains(t, out, "already exists")
}

func TestConfigDebugCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	tp.writeConfig(minimalConfig("claude"))

	out := tp.runExpectSuccess("config", "debug")
	assert.Contains(t, out, "Configuration Debug")
	assert.Contains(t, out, "test-project")
}

func TestConfigDebugRedactsProviderCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	tp.writeConfig(minimalConfig("claude"))

	out := tp.runExpectSuccess("config", "debug")
	assert.Contains(t, out, "***REDACTED***")
}

func TestConfigValidateCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	tp.writeConfig(minimalConfig("claude"))

	out := tp.runExpectSuccess("config", "validate")
	assert.Contains(t, out, "Configuration Validation")
	assert.Contains(t, out, "No issues found.")
}

func TestMissingConfigExitsWithConfigError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	out, exitCode := tp.runExpectFailure("config", "debug")
	assert.Equal(t, 2, exitCode)
	assert.Contains(t, out, "bmad-assist init")
}

func TestNoArgsShowsHelp(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	out := tp.runExpectSuccess()
	assert.Contains(t, out, "bmad-assist")
	assert.Contains(t, out, "Usage")
}

func TestConfigHelpSubcommand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	out := tp.runExpectSuccess("config", "--help")
	assert.Contains(t, out, "config")
	assert.Contains(t, out, "debug")
	assert.Contains(t, out, "validate")
}

func TestStatusCommandNoRunState(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}
	t.Parallel()

	tp := newTestProject(t)
	tp.writeConfig(minimalConfig("claude"))

	out := tp.runExpectSuccess("status")
	assert.Contains(t, out, "No run state found")
}
