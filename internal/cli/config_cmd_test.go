package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmad-assist/bmad-assist-go/internal/config"
)

func withHome(t *testing.T, dir string) {
	t.Helper()
	orig := os.Getenv("HOME")
	require.NoError(t, os.Setenv("HOME", dir))
	t.Cleanup(func() { os.Setenv("HOME", orig) })
}

func TestConfigCmd_SubcommandsRegistered(t *testing.T) {
	for _, use := range []string{"debug", "validate"} {
		cmd, _, err := rootCmd.Find([]string{"config", use})
		require.NoError(t, err, "config %s must be findable", use)
		assert.Equal(t, use, cmd.Use)
	}
}

func TestPrintResolvedConfig_RedactsDangerousFields(t *testing.T) {
	cfg := config.NewDefaults()
	cfg.Notify.WebhookURL = "https://hooks.example.com/secret"
	redacted := config.Redact(cfg)

	var buf bytes.Buffer
	cmd := configDebugCmd
	cmd.SetOut(&buf)
	printResolvedConfig(cmd, "bmad-assist.yaml", redacted)

	out := buf.String()
	assert.Contains(t, out, "[project]")
	assert.Contains(t, out, "[providers.claude]")
	assert.NotContains(t, out, "https://hooks.example.com/secret")
}

func TestPrintValidationResult_NoIssues(t *testing.T) {
	var buf bytes.Buffer
	cmd := configValidateCmd
	cmd.SetOut(&buf)
	printValidationResult(cmd, nil)
	assert.Contains(t, buf.String(), "No issues found.")
}

func TestPrintValidationResult_ListsFieldErrors(t *testing.T) {
	cfg := config.NewDefaults()
	cfg.Project.Name = ""
	err := config.Validate(cfg)
	require.Error(t, err)

	var buf bytes.Buffer
	cmd := configValidateCmd
	cmd.SetOut(&buf)
	printValidationResult(cmd, err)

	out := buf.String()
	assert.Contains(t, out, "Errors:")
	assert.Contains(t, out, "project.name")
}

func TestConfigValidateCmd_ReturnsErrorWhenInvalid(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	withHome(t, home)

	require.NoError(t, os.WriteFile(filepath.Join(project, "bmad-assist.yaml"), []byte(`
project:
  name: ""
`), 0o644))

	configFlagProject = project
	t.Cleanup(func() { configFlagProject = "" })

	var buf bytes.Buffer
	configValidateCmd.SetOut(&buf)
	err := configValidateCmd.RunE(configValidateCmd, nil)
	assert.Error(t, err)
}

func TestFmtSlice(t *testing.T) {
	assert.Equal(t, "[]", fmtSlice(nil))
	assert.Equal(t, `["a", "b"]`, fmtSlice([]string{"a", "b"}))
}
