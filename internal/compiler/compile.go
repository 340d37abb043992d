package compiler

import (
	"fmt"

	"github.com/bmad-assist/bmad-assist-go/internal/bmaderr"
)

// HandlerSpec declares how a workflow handler wants its prompt built: the
// glob patterns to embed as context, its mission statement, and an output
// template. Most workflows need nothing beyond this, so NewGenericCompiler
// wraps a HandlerSpec into a CompileFunc; a workflow with bespoke needs
// registers its own CompileFunc directly instead.
type HandlerSpec struct {
	Mission        string
	GlobPatterns   []string
	OutputTemplate string
	MaxFileBytes   int
	PatchApplied   bool
}

// NewGenericCompiler returns a CompileFunc implementing the compiler's
// standard seven-step pipeline (pre-load is assumed already done by the
// caller via ctx.IR) for handlers that don't need custom logic beyond
// declaring a mission, glob patterns, and an output template.
func NewGenericCompiler(spec HandlerSpec) CompileFunc {
	return func(ctx *Context, params map[string]string) (*CompiledWorkflow, error) {
		return Compile(ctx, spec, params)
	}
}

// Compile runs steps 3 through 7 of the pipeline against an already
// pre-loaded Context (ctx.IR populated by the patch cache, step 2) and a
// resolved sprint-status path (ctx.SprintStatusPath, step 4).
func Compile(ctx *Context, spec HandlerSpec, params map[string]string) (*CompiledWorkflow, error) {
	if ctx.IR == nil {
		return nil, &bmaderr.CompilerError{
			Workflow: ctx.HandlerName,
			Stage:    "pre-load",
			Err:      fmt.Errorf("context has no pre-loaded WorkflowIR"),
		}
	}

	// Step 3: variable resolution. ctx.Resolver already carries defaults and
	// external config; invocation params are merged in last so they win.
	ctx.Resolver.MergeInvocation(params)
	resolved := ctx.Resolver

	mission, err := resolved.Substitute(spec.Mission)
	if err != nil {
		return nil, &bmaderr.CompilerError{Workflow: ctx.HandlerName, Stage: "variable-resolution", Err: err}
	}

	// Step 5: context embedding.
	patterns := make([]string, len(spec.GlobPatterns))
	for i, p := range spec.GlobPatterns {
		sp, err := resolved.Substitute(p)
		if err != nil {
			return nil, &bmaderr.CompilerError{Workflow: ctx.HandlerName, Stage: "context-embedding", Err: err}
		}
		patterns[i] = sp
	}
	embedded, err := EmbedContext(ctx.IR.WorkflowDir, patterns, spec.MaxFileBytes)
	if err != nil {
		return nil, &bmaderr.CompilerError{Workflow: ctx.HandlerName, Stage: "context-embedding", Err: err}
	}

	// Step 6: instruction filtering.
	instructions, err := FilterInstructions(ctx.IR.RawInstructions, resolved.Substitute)
	if err != nil {
		return nil, &bmaderr.CompilerError{Workflow: ctx.HandlerName, Stage: "instruction-filtering", Err: err}
	}

	outputTemplate, err := resolved.Substitute(spec.OutputTemplate)
	if err != nil {
		return nil, &bmaderr.CompilerError{Workflow: ctx.HandlerName, Stage: "instruction-filtering", Err: err}
	}

	cw := &CompiledWorkflow{
		WorkflowName:   ctx.HandlerName,
		Mission:        mission,
		Context:        embedded,
		Variables:      resolved.All(),
		Instructions:   instructions,
		OutputTemplate: outputTemplate,
	}

	// Step 7: emission.
	if err := Emit(cw, ctx.TokenBudget, spec.PatchApplied, ctx.Logger); err != nil {
		return nil, err
	}

	return cw, nil
}
