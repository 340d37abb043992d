package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmad-assist/bmad-assist-go/internal/config"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

func TestWriteEffectiveConfigSnapshot_RedactsAndWrites(t *testing.T) {
	projectRoot := t.TempDir()
	p := paths.New(projectRoot)

	cfg := config.NewDefaults()
	cfg.Project.Name = "myproj"
	cfg.Notify.SlackToken = "xoxb-secret"

	now := time.Date(2026, 1, 15, 10, 30, 0, 123456000, time.UTC)
	err := WriteEffectiveConfigSnapshot(p, cfg, "v0.1.0", now)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(projectRoot, "_bmad-output"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "effective-config-")

	data, err := os.ReadFile(filepath.Join(projectRoot, "_bmad-output", entries[0].Name()))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "xoxb-secret", "dangerous fields must be redacted in the snapshot")
	assert.Contains(t, string(data), "myproj")
}
