package phase

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmad-assist/bmad-assist-go/internal/provider"
)

func newFanoutInput(t *testing.T, providers ...*provider.Mock) *Input {
	t.Helper()
	registry := provider.NewRegistry()
	for _, p := range providers {
		require.NoError(t, registry.Register(p))
	}
	return &Input{Providers: registry, StoryKey: "3-2-add-login"}
}

func TestMultiProviderHandler_AllSucceed(t *testing.T) {
	codex := provider.NewMock("codex")
	gemini := provider.NewMock("gemini")
	in := newFanoutInput(t, codex, gemini)

	h := &MultiProviderHandler{
		PhaseName:     "CODE_REVIEW",
		Evaluators:    []string{"codex", "gemini"},
		MinEvaluators: 2,
		BuildPrompt: func(in *Input, evaluatorName string) (string, error) {
			return "review this: " + evaluatorName, nil
		},
	}

	result, err := h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Outputs["evaluators_succeeded"])
	assert.Len(t, codex.Calls, 1)
	assert.Len(t, gemini.Calls, 1)
}

func TestMultiProviderHandler_PartialFailureBelowMinFails(t *testing.T) {
	codex := provider.NewMock("codex")
	gemini := provider.NewMock("gemini").WithRunFunc(func(ctx context.Context, opts provider.RunOpts) (*provider.RunResult, error) {
		return nil, errors.New("rate limited")
	})
	in := newFanoutInput(t, codex, gemini)

	h := &MultiProviderHandler{
		PhaseName:     "CODE_REVIEW",
		Evaluators:    []string{"codex", "gemini"},
		MinEvaluators: 2,
		BuildPrompt: func(in *Input, evaluatorName string) (string, error) {
			return "prompt", nil
		},
	}

	result, err := h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "insufficient reviews")
}

func TestMultiProviderHandler_PartialFailureAboveMinSucceeds(t *testing.T) {
	codex := provider.NewMock("codex")
	gemini := provider.NewMock("gemini").WithRunFunc(func(ctx context.Context, opts provider.RunOpts) (*provider.RunResult, error) {
		return nil, errors.New("rate limited")
	})
	claude := provider.NewMock("claude")
	in := newFanoutInput(t, codex, gemini, claude)

	h := &MultiProviderHandler{
		PhaseName:     "CODE_REVIEW",
		Evaluators:    []string{"codex", "gemini", "claude"},
		MinEvaluators: 2,
		BuildPrompt: func(in *Input, evaluatorName string) (string, error) {
			return "prompt", nil
		},
	}

	result, err := h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Outputs["evaluators_succeeded"])
	assert.Len(t, result.Outputs["evaluator_failures"], 1)
}

func TestMultiProviderHandler_PersistsArtifacts(t *testing.T) {
	codex := provider.NewMock("codex")
	dir := t.TempDir()
	in := newFanoutInput(t, codex)

	h := &MultiProviderHandler{
		PhaseName:     "VALIDATE_STORY",
		Evaluators:    []string{"codex"},
		MinEvaluators: 1,
		BuildPrompt: func(in *Input, evaluatorName string) (string, error) {
			return "prompt", nil
		},
		ArtifactPath: func(in *Input, evaluatorName string) (string, error) {
			return filepath.Join(dir, in.StoryKey+"-"+evaluatorName+".md"), nil
		},
	}

	result, err := h.Execute(context.Background(), in)
	require.NoError(t, err)
	require.True(t, result.Success)

	paths := result.Outputs["artifact_paths"].(map[string]string)
	require.Contains(t, paths, "codex")
	assert.FileExists(t, paths["codex"])
}

func TestMultiProviderHandler_NoEvaluators(t *testing.T) {
	in := newFanoutInput(t)
	h := &MultiProviderHandler{PhaseName: "CODE_REVIEW"}

	result, err := h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no evaluators")
}

func TestMultiProviderHandler_NilInput(t *testing.T) {
	h := &MultiProviderHandler{PhaseName: "CODE_REVIEW"}
	_, err := h.Execute(context.Background(), nil)
	assert.Error(t, err)
}

func TestMultiProviderHandler_UnknownEvaluatorCountsAsFailure(t *testing.T) {
	codex := provider.NewMock("codex")
	in := newFanoutInput(t, codex)

	h := &MultiProviderHandler{
		PhaseName:     "CODE_REVIEW",
		Evaluators:    []string{"codex", "nonexistent"},
		MinEvaluators: 1,
		BuildPrompt: func(in *Input, evaluatorName string) (string, error) {
			return "prompt", nil
		},
	}

	result, err := h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Outputs["evaluators_succeeded"])
}
