package compiler

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmad-assist/bmad-assist-go/internal/compiler/variables"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

func TestCompile_FullPipeline(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "story.md"), "story content")

	p := paths.New(root)
	resolver, err := variables.NewResolver(p, map[string]string{"story": "story.md"}, nil, nil, "")
	require.NoError(t, err)

	ctx := &Context{
		Paths:       p,
		IR:          &WorkflowIR{WorkflowDir: root, RawInstructions: "<step>process {{story}}</step><elicit>ask</elicit>"},
		Resolver:    resolver,
		HandlerName: "dev_story",
		TokenBudget: TokenBudget{Hard: 1000000},
	}

	spec := HandlerSpec{
		Mission:        "Implement {{story}}",
		GlobPatterns:   []string{"*.md"},
		OutputTemplate: "JSON only",
	}

	cw, err := Compile(ctx, spec, map[string]string{"extra": "1"})
	require.NoError(t, err)
	assert.Equal(t, "Implement story.md", cw.Mission)
	assert.NotContains(t, cw.Instructions, "elicit")
	assert.Contains(t, cw.Instructions, "process story.md")
	require.Len(t, cw.Context, 1)
	assert.Equal(t, "story content", cw.Context[0].Content)
	assert.NotEmpty(t, cw.Prompt)
}

func TestCompile_MissingIRErrors(t *testing.T) {
	ctx := &Context{HandlerName: "dev_story"}
	_, err := Compile(ctx, HandlerSpec{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pre-load")
}

func TestNewGenericCompiler_Wraps(t *testing.T) {
	root := t.TempDir()
	p := paths.New(root)
	resolver, err := variables.NewResolver(p, nil, nil, nil, "")
	require.NoError(t, err)

	fn := NewGenericCompiler(HandlerSpec{Mission: "go"})
	ctx := &Context{
		Paths:       p,
		IR:          &WorkflowIR{WorkflowDir: root, RawInstructions: ""},
		Resolver:    resolver,
		HandlerName: "retrospective",
	}
	cw, err := fn(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "go", cw.Mission)
}
