// Package bmaderr defines the error taxonomy shared across bmad-assist's
// core packages. Each kind wraps an underlying cause so callers can use
// errors.As/errors.Is against either the concrete kind or the cause.
package bmaderr

import "fmt"

// ConfigError reports a failure loading, parsing, or validating configuration.
// It is fatal at startup; Path and Hint give the operator enough context to
// fix the file without re-reading source.
type ConfigError struct {
	Path string
	Hint string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("config error in %s: %v (%s)", e.Path, e.Err, e.Hint)
	}
	return fmt.Sprintf("config error in %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// FieldError is one structured validation failure, matching the
// (location, message, kind) shape needed by the dashboard's config-import
// preview.
type FieldError struct {
	Loc  string
	Msg  string
	Kind string
}

// ConfigValidationError carries one or more structured field failures.
type ConfigValidationError struct {
	Errors []FieldError
}

func (e *ConfigValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("config validation: %s: %s", e.Errors[0].Loc, e.Errors[0].Msg)
	}
	return fmt.Sprintf("config validation: %d errors", len(e.Errors))
}

// ProviderTimeoutError reports a provider subprocess that exceeded its
// configured timeout and was killed.
type ProviderTimeoutError struct {
	Provider string
	Timeout  string
}

func (e *ProviderTimeoutError) Error() string {
	return fmt.Sprintf("provider %s: timed out after %s", e.Provider, e.Timeout)
}

// ProviderExitCodeError reports a provider subprocess that exited non-zero.
type ProviderExitCodeError struct {
	Provider     string
	ExitCode     int
	StderrPreview string
}

func (e *ProviderExitCodeError) Error() string {
	return fmt.Sprintf("provider %s: exit code %d: %s", e.Provider, e.ExitCode, e.StderrPreview)
}

// InsufficientReviewsError reports that fewer evaluators succeeded than the
// configured minimum for a multi-provider phase.
type InsufficientReviewsError struct {
	Phase     string
	Required  int
	Succeeded int
}

func (e *InsufficientReviewsError) Error() string {
	return fmt.Sprintf("%s: insufficient reviews: need %d, got %d", e.Phase, e.Required, e.Succeeded)
}

// CompilerError reports a workflow-compilation failure (lookup, pre-load,
// variable resolution, or emission).
type CompilerError struct {
	Workflow string
	Stage    string
	Err      error
}

func (e *CompilerError) Error() string {
	return fmt.Sprintf("compiler: %s: %s: %v", e.Workflow, e.Stage, e.Err)
}

func (e *CompilerError) Unwrap() error { return e.Err }

// ParserError reports a failure parsing a structured artifact (QA plan,
// sprint-status, story file).
type ParserError struct {
	Source string
	Err    error
}

func (e *ParserError) Error() string { return fmt.Sprintf("parser: %s: %v", e.Source, e.Err) }
func (e *ParserError) Unwrap() error { return e.Err }

// VariableError reports a failure resolving a workflow variable, including
// sprint-status ambiguity and path-containment violations.
type VariableError struct {
	Variable string
	Reason   string
}

func (e *VariableError) Error() string {
	return fmt.Sprintf("variable %s: %s", e.Variable, e.Reason)
}

// AmbiguousFileError reports that more than one candidate file exists where
// exactly one was expected (e.g. two sprint-status.yaml locations).
type AmbiguousFileError struct {
	What       string
	Candidates []string
}

func (e *AmbiguousFileError) Error() string {
	return fmt.Sprintf("ambiguous %s: found at %v", e.What, e.Candidates)
}

// PatchError reports a patch that is structurally invalid or whose transform
// success rate fell below threshold. Callers should fall back to the
// uncached workflow rather than fail the phase.
type PatchError struct {
	Patch string
	Err   error
}

func (e *PatchError) Error() string { return fmt.Sprintf("patch %s: %v", e.Patch, e.Err) }
func (e *PatchError) Unwrap() error { return e.Err }

// StorageError reports a non-fatal benchmarking store read/write failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// DashboardError reports an HTTP-surfaced failure (bad port, path escape).
// It carries the HTTP status the dashboard should return.
type DashboardError struct {
	Status int
	Msg    string
}

func (e *DashboardError) Error() string { return e.Msg }
