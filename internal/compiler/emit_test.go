package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmit_AssemblesSections(t *testing.T) {
	cw := &CompiledWorkflow{
		WorkflowName: "dev_story",
		Mission:      "build the thing",
		Context:      []EmbeddedFile{{Path: "a.md", Content: "file-a"}},
		Instructions: "do the work",
		OutputTemplate: "return json",
	}
	err := Emit(cw, TokenBudget{Hard: 100000}, false, nil)
	require.NoError(t, err)
	assert.Contains(t, cw.Prompt, "<task-context>")
	assert.Contains(t, cw.Prompt, "build the thing")
	assert.Contains(t, cw.Prompt, `<source-document path="a.md">`)
	assert.Contains(t, cw.Prompt, "<instructions>")
	assert.Contains(t, cw.Prompt, "<output-format>")
	assert.Greater(t, cw.TokenEstimate, 0)
}

func TestEmit_ExceedsHardBudgetErrors(t *testing.T) {
	cw := &CompiledWorkflow{WorkflowName: "dev_story", Mission: "x", Instructions: "y"}
	cw.Mission = strings.Repeat("a", 10000)
	err := Emit(cw, TokenBudget{Hard: 10}, false, nil)
	require.Error(t, err)
}

func TestEmit_NoOutputTemplateOmitsSection(t *testing.T) {
	cw := &CompiledWorkflow{WorkflowName: "x", Mission: "m", Instructions: "i"}
	err := Emit(cw, TokenBudget{}, false, nil)
	require.NoError(t, err)
	assert.NotContains(t, cw.Prompt, "<output-format>")
}
