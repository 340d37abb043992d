package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestEmbedContext_RecencyBiasOrdering(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "docs", "general.md"), "general")
	writeFile(t, filepath.Join(root, "docs", "epics", "epic-1-foo.md"), "specific")

	files, err := EmbedContext(root, []string{"docs/*.md", "docs/epics/*.md"}, 0)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "docs/general.md", files[0].Path)
	assert.Equal(t, filepath.FromSlash("docs/epics/epic-1-foo.md"), files[1].Path)
}

func TestEmbedContext_DeduplicatesAcrossPatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), "a")

	files, err := EmbedContext(root, []string{"*.md", "a.md"}, 0)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestEmbedContext_TruncatesLargeFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "big.md"), "0123456789")

	files, err := EmbedContext(root, []string{"*.md"}, 4)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, files[0].Content, "[truncated]")
	assert.Equal(t, "0123\n...[truncated]", files[0].Content)
}
