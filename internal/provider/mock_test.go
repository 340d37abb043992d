package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_ImplementsProvider(t *testing.T) {
	var _ Provider = (*Mock)(nil)
}

func TestMock_Run_RecordsCalls(t *testing.T) {
	m := NewMock("claude")
	_, err := m.Run(context.Background(), RunOpts{Prompt: "a"})
	require.NoError(t, err)
	_, err = m.Run(context.Background(), RunOpts{Prompt: "b"})
	require.NoError(t, err)

	require.Len(t, m.Calls, 2)
	assert.Equal(t, "a", m.Calls[0].Prompt)
	assert.Equal(t, "b", m.Calls[1].Prompt)
}

func TestMock_WithRunFunc(t *testing.T) {
	m := NewMock("claude").WithRunFunc(func(_ context.Context, _ RunOpts) (*RunResult, error) {
		return nil, errors.New("boom")
	})

	_, err := m.Run(context.Background(), RunOpts{})
	assert.EqualError(t, err, "boom")
}

func TestMock_WithPrereqError(t *testing.T) {
	m := NewMock("claude").WithPrereqError(errors.New("missing binary"))
	assert.EqualError(t, m.CheckPrerequisites(), "missing binary")
}

func TestMock_DryRunCommand_Default(t *testing.T) {
	m := NewMock("claude")
	assert.Contains(t, m.DryRunCommand(RunOpts{Prompt: "hi"}), "mock-claude")
}
