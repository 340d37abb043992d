package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dummyFunc(*Context, map[string]string) (*CompiledWorkflow, error) {
	return &CompiledWorkflow{}, nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("dev-story", dummyFunc)

	fn, err := r.Lookup("DEV-STORY")
	require.NoError(t, err)
	assert.NotNil(t, fn)
	assert.True(t, r.Has("dev_story"))
}

func TestRegistry_LookupMissing(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no compiler module registered")
}

func TestRegistry_LookupInvalidName(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("!!!bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid workflow name")
}

func TestRegistry_RegisterDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register("dev-story", dummyFunc)
	assert.Panics(t, func() { r.Register("dev_story", dummyFunc) })
}

func TestRegistry_RegisterNilPanics(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() { r.Register("x", nil) })
}

func TestRegistry_List_Sorted(t *testing.T) {
	r := NewRegistry()
	r.Register("zzz", dummyFunc)
	r.Register("aaa", dummyFunc)
	assert.Equal(t, []string{"aaa", "zzz"}, r.List())
}
