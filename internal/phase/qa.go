package phase

import (
	"context"
	"fmt"
)

// QAHandler implements the QA phases (QA_PLAN_GENERATE, QA_PLAN_EXECUTE,
// QA_REMEDIATE). Unlike the provider-invoking handlers, these use *direct
// invocation*: Run calls straight into the QA Plan Generator/Executor rather
// than compiling a prompt through internal/compiler.
type QAHandler struct {
	// PhaseName labels this handler, e.g. "QA_PLAN_EXECUTE".
	PhaseName string

	// Run performs the phase's work and returns the outputs to surface on a
	// successful Result. A returned error becomes a failed Result with the
	// error's message — Run is expected to produce actionable messages for
	// expected failure modes (e.g. "no QA plan for epic 3: run QA_PLAN_GENERATE first").
	Run func(ctx context.Context, in *Input) (map[string]any, error)
}

func (h *QAHandler) Execute(ctx context.Context, in *Input) (*Result, error) {
	if in == nil {
		return nil, fmt.Errorf("phase %s: nil input", h.PhaseName)
	}
	if h.Run == nil {
		return nil, fmt.Errorf("phase %s: no Run implementation wired", h.PhaseName)
	}

	outputs, err := h.Run(ctx, in)
	if err != nil {
		return Fail("%s: %v", h.PhaseName, err), nil
	}
	return Ok(outputs), nil
}
