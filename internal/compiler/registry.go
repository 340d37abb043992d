// Package compiler turns a workflow name into a single standalone prompt:
// lookup a compiler module, pre-load the workflow (through the patch cache),
// resolve variables, embed context files, filter instructions, and emit an
// XML prompt within a token budget.
package compiler

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/bmad-assist/bmad-assist-go/internal/bmaderr"
)

// CompileFunc produces a CompiledWorkflow for one workflow given its
// resolved directory and invocation params. Each workflow family registers
// its own CompileFunc; most share the generic Compile implementation via
// NewGenericCompiler.
type CompileFunc func(ctx *Context, params map[string]string) (*CompiledWorkflow, error)

var nameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*$`)

// Registry maps a normalized workflow name to its CompileFunc.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]CompileFunc
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]CompileFunc)}
}

// Register adds fn under name. name is normalized (lowercased, hyphens to
// underscores) before being stored; registering the same normalized name
// twice panics, matching the workflow engine's registry discipline of
// failing loudly at wiring time rather than silently overwriting.
func (r *Registry) Register(name string, fn CompileFunc) {
	if fn == nil {
		panic("compiler: Register called with nil CompileFunc for " + name)
	}
	key, err := normalizeName(name)
	if err != nil {
		panic("compiler: Register: " + err.Error())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[key]; exists {
		panic("compiler: duplicate registration for workflow " + key)
	}
	r.funcs[key] = fn
}

// Lookup normalizes name and returns its CompileFunc. Errors are distinct
// CompilerErrors for an invalid name versus a missing implementation, per
// the lookup step's contract.
func (r *Registry) Lookup(name string) (CompileFunc, error) {
	key, err := normalizeName(name)
	if err != nil {
		return nil, &bmaderr.CompilerError{Workflow: name, Stage: "lookup", Err: err}
	}

	r.mu.RLock()
	fn, ok := r.funcs[key]
	r.mu.RUnlock()
	if !ok {
		return nil, &bmaderr.CompilerError{
			Workflow: name,
			Stage:    "lookup",
			Err:      fmt.Errorf("no compiler module registered for %q", key),
		}
	}
	return fn, nil
}

// Has reports whether name (after normalization) is registered.
func (r *Registry) Has(name string) bool {
	key, err := normalizeName(name)
	if err != nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[key]
	return ok
}

// List returns every registered workflow name, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for k := range r.funcs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// normalizeName lowercases name and turns hyphens into underscores, per
// step 1 of the compiler's lookup contract. Empty names and names with
// characters outside [a-z0-9_-] are rejected as invalid.
func normalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("empty workflow name")
	}
	key := strings.ReplaceAll(strings.ToLower(trimmed), "-", "_")
	if !nameRe.MatchString(key) {
		return "", fmt.Errorf("invalid workflow name %q", name)
	}
	return key, nil
}
