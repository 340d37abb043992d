// Package phase implements the per-phase handlers that drive one step of a
// story through the phase graph: build a context from state and paths,
// compile a prompt (internal/compiler), invoke one or more providers
// (internal/provider), capture artifacts to disk, and report a result the
// Loop Runner uses to decide whether to advance.
package phase

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/bmad-assist/bmad-assist-go/internal/compiler"
	"github.com/bmad-assist/bmad-assist-go/internal/config"
	"github.com/bmad-assist/bmad-assist-go/internal/debuglog"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
	"github.com/bmad-assist/bmad-assist-go/internal/provider"
	"github.com/bmad-assist/bmad-assist-go/internal/state"
)

// Handler is the uniform per-phase contract: build context from state and
// paths, compile a prompt, invoke providers, capture artifacts, return a
// Result. Handlers never mutate Input.State themselves; the Loop Runner owns
// state transitions between phase boundaries.
type Handler interface {
	Execute(ctx context.Context, in *Input) (*Result, error)
}

// Input bundles everything a Handler needs: the immutable state snapshot it
// runs against, resolved paths, effective config, the provider and compiler
// registries, a logger, and a debug-log sink factory (one Writer per
// provider session).
type Input struct {
	State     *state.State
	Paths     *paths.Paths
	Config    *config.Config
	Providers *provider.Registry
	Compiler  *compiler.Registry
	Logger    *log.Logger

	// NewDebugSink creates a fresh debug-log writer for one provider
	// invocation. May be nil, in which case debug capture is skipped.
	NewDebugSink func() *debuglog.Writer

	// CompilerCtx is the pre-loaded workflow-compiler context for this
	// phase run: the Loop Runner resolves the workflow's WorkflowIR via
	// internal/compiler/patch before invoking Execute and stores it here so
	// handlers can compile their prompt via internal/compiler.Compile.
	CompilerCtx *compiler.Context

	// EpicID, StoryKey identify the story this phase run concerns, e.g.
	// EpicID "3", StoryKey "3-2-add-login". Most handlers need these to
	// compute artifact paths.
	EpicID   paths.EpicID
	StoryKey string
}

// Result is a phase's outcome: success, outputs, and an error message.
// Outputs carries handler-specific data the Loop Runner or a downstream
// synthesis handler may need (artifact paths, session ids, extracted
// metrics).
type Result struct {
	Success bool
	Outputs map[string]any
	Error   string
}

// Ok returns a successful Result carrying outputs.
func Ok(outputs map[string]any) *Result {
	if outputs == nil {
		outputs = map[string]any{}
	}
	return &Result{Success: true, Outputs: outputs}
}

// Fail returns a failed Result with a formatted, descriptive message. This
// is how handlers report provider errors, missing inputs, and validation
// failures — Execute's Go error return is reserved for infrastructure
// failures that indicate a wiring bug rather than a normal phase failure.
func Fail(format string, args ...any) *Result {
	return &Result{Success: false, Error: fmt.Sprintf(format, args...)}
}
