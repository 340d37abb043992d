package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadMissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	s := NewStoreAt(filepath.Join(dir, "state.yaml"))

	st, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestStore_SaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := NewStoreAt(filepath.Join(dir, "state.yaml"))

	start := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	st := New(start)
	story := "3-2"
	st.CurrentStory = &story

	require.NoError(t, s.Save(st, start))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "3-2", *loaded.CurrentStory)
	assert.Equal(t, QACategoryA, loaded.QACategory)
}

func TestStore_Save_UpdatedAtMonotonicNonDecreasing(t *testing.T) {
	dir := t.TempDir()
	s := NewStoreAt(filepath.Join(dir, "state.yaml"))

	later := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	st := New(later)

	earlier := later.Add(-time.Hour)
	require.NoError(t, s.Save(st, earlier))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.True(t, loaded.UpdatedAt.Equal(later) || loaded.UpdatedAt.After(later),
		"UpdatedAt must never regress below a previously recorded value")
}

func TestStore_Save_TempFileRemovedOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")
	s := NewStoreAt(path)

	now := time.Now()
	require.NoError(t, s.Save(New(now), now))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should not survive a successful save")
}

func TestStore_ClearRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")
	s := NewStoreAt(path)

	now := time.Now()
	require.NoError(t, s.Save(New(now), now))
	require.True(t, s.Exists())

	require.NoError(t, s.Clear())
	assert.False(t, s.Exists())
}

func TestStore_ClearOnMissingFileIsNotError(t *testing.T) {
	dir := t.TempDir()
	s := NewStoreAt(filepath.Join(dir, "state.yaml"))

	assert.NoError(t, s.Clear())
}

func TestState_IsStoryCompleted(t *testing.T) {
	st := New(time.Now())
	st.CompletedStories = []string{"1-1", "1-2"}

	assert.True(t, st.IsStoryCompleted("1-1"))
	assert.False(t, st.IsStoryCompleted("2-1"))
}
