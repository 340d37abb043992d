package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodex_ImplementsProvider(t *testing.T) {
	var _ Provider = (*Codex)(nil)
}

func TestCodex_Name(t *testing.T) {
	c := NewCodex(Config{}, nil)
	assert.Equal(t, "codex", c.Name())
}

func TestCodex_CheckPrerequisites_NotFound(t *testing.T) {
	c := NewCodex(Config{Command: "bmad-nonexistent-binary-xyz"}, nil)
	assert.Error(t, c.CheckPrerequisites())
}

func TestCodex_DryRunCommand_IncludesExecFlags(t *testing.T) {
	c := NewCodex(Config{Command: "codex"}, nil)
	cmd := c.DryRunCommand(RunOpts{Prompt: "do the thing"})
	assert.Contains(t, cmd, "exec --sandbox --ephemeral -a never")
	assert.Contains(t, cmd, "do the thing")
}

func TestCodex_Run_Success(t *testing.T) {
	c := NewCodex(Config{Command: "echo"}, nil)
	result, err := c.Run(context.Background(), RunOpts{})

	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, result.Status)
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestCodex_Run_NonZeroExit(t *testing.T) {
	c := NewCodex(Config{Command: "false"}, nil)
	result, err := c.Run(context.Background(), RunOpts{})

	require.Error(t, err)
	assert.Equal(t, 1, result.ExitCode)
}
