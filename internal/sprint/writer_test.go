package sprint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSprintStatus = `generated: "2026-01-01T00:00:00Z"
project: demo
development_status:
  1-1-first-story: done # shipped last sprint
  notes: some freeform note
epic_meta:
  epic-1: in-progress
`

func TestWriteAtomicPreservesCommentsAndOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sprint-status.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSprintStatus), 0o644))

	original, err := Parse(path)
	require.NoError(t, err)

	generated := map[string]bool{"1-1-first-story": true, "1-2-second-story": true}
	res := Reconcile(original, generated, map[string]Evidence{})

	require.NoError(t, WriteAtomic(path, res.Merged, original))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(out)

	assert.Contains(t, text, "shipped last sprint")
	assert.Contains(t, text, "notes: some freeform note")
	assert.Contains(t, text, "1-2-second-story: backlog")

	reparsed, err := ParseBytes(out)
	require.NoError(t, err)
	val, ok := reparsed.Get("1-1-first-story")
	require.True(t, ok)
	assert.Equal(t, StatusDone, val)
}

func TestWriteAtomicFreshDocumentWhenNoPriorFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sprint-status.yaml")

	merged := New()
	merged.Project = "demo"
	merged.Entries = []Entry{{Key: "1-1-first-story", Value: StatusBacklog, Type: EntryEpicStory}}
	merged.EpicMeta = map[string]string{"epic-1": StatusInProgress}

	require.NoError(t, WriteAtomic(path, merged, nil))

	reparsed, err := Parse(path)
	require.NoError(t, err)
	val, ok := reparsed.Get("1-1-first-story")
	require.True(t, ok)
	assert.Equal(t, StatusBacklog, val)
	assert.Equal(t, "demo", reparsed.Project)
}
