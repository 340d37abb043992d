//go:build !windows

package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_TryLock_SecondAttemptFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.lock")

	l1, ok, err := TryLock(path)
	require.NoError(t, err)
	require.True(t, ok)
	defer l1.Unlock()

	_, ok, err = TryLock(path)
	require.NoError(t, err)
	assert.False(t, ok, "a second TryLock while the first is held must fail")
}

func TestFileLock_UnlockThenRelockSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.lock")

	l1, ok, err := TryLock(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, l1.Unlock())

	l2, ok, err := TryLock(path)
	require.NoError(t, err)
	require.True(t, ok)
	defer l2.Unlock()
}

func TestFileLock_UnlockNilIsNoOp(t *testing.T) {
	var l *FileLock
	assert.NoError(t, l.Unlock())
}
