package compiler

import (
	"github.com/charmbracelet/log"

	"github.com/bmad-assist/bmad-assist-go/internal/compiler/variables"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

// WorkflowIR is the intermediate representation of a compiled-but-unrendered
// workflow, produced by the patch cache (either from a cache hit or by
// compiling the raw files on a miss).
type WorkflowIR struct {
	RawConfig       map[string]any
	RawInstructions string
	ConfigPath      string
	WorkflowDir     string
	FromCache       bool
}

// EmbeddedFile is one context file discovered by a handler's glob patterns
// and embedded verbatim into the compiled prompt.
type EmbeddedFile struct {
	Path    string
	Content string
}

// CompiledWorkflow is the final object handed to a provider.
type CompiledWorkflow struct {
	WorkflowName  string
	Mission       string
	Context       []EmbeddedFile
	Variables     map[string]string
	Instructions  string
	OutputTemplate string
	Prompt         string
	TokenEstimate  int
}

// Context carries everything a CompileFunc needs: resolved paths, a logger,
// the pre-loaded WorkflowIR, and a variable resolver seeded with defaults
// and external config (invocation params are merged in by the caller).
type Context struct {
	Paths      *paths.Paths
	Logger     *log.Logger
	IR         *WorkflowIR
	Resolver   *variables.Resolver
	SprintStatusPath string // resolved by ResolveSprintStatusPath: a file path, or "none"
	HandlerName string
	GlobPatterns []string // declared by the handler, relative to WorkflowDir
	TokenBudget  TokenBudget
}

// TokenBudget configures the soft/hard prompt-size validation performed at
// emission time.
type TokenBudget struct {
	Hard int
	Soft int // defaults to a fraction of Hard when zero; see DefaultSoftBudget
}

// DefaultSoftBudget returns 80% of hard, the default soft-limit fraction.
func DefaultSoftBudget(hard int) int {
	return (hard * 8) / 10
}
