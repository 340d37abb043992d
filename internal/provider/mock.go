package provider

import (
	"context"
	"fmt"
	"time"
)

// Compile-time check that Mock implements Provider.
var _ Provider = (*Mock)(nil)

// Mock is a configurable Provider implementation for tests. It records
// every Run call and supports customizable behavior via function fields.
type Mock struct {
	ProviderName string

	// RunFunc, when set, is called by Run instead of the default behavior.
	RunFunc func(ctx context.Context, opts RunOpts) (*RunResult, error)

	// PrereqError is returned by CheckPrerequisites.
	PrereqError error

	// DryRunOutput is returned by DryRunCommand when non-empty.
	DryRunOutput string

	// Calls records every RunOpts passed to Run, in order.
	Calls []RunOpts
}

// NewMock creates a Mock provider with the given name.
func NewMock(name string) *Mock {
	return &Mock{ProviderName: name}
}

// Name returns the provider's identifier.
func (m *Mock) Name() string { return m.ProviderName }

// Run records the call and delegates to RunFunc if set, otherwise returns a
// default success result.
func (m *Mock) Run(ctx context.Context, opts RunOpts) (*RunResult, error) {
	m.Calls = append(m.Calls, opts)
	if m.RunFunc != nil {
		return m.RunFunc(ctx, opts)
	}
	return &RunResult{
		Stdout:    "mock output",
		ExitCode:  0,
		Status:    ExitSuccess,
		Duration:  100 * time.Millisecond,
		SessionID: "mock-session",
	}, nil
}

// CheckPrerequisites returns PrereqError, nil by default.
func (m *Mock) CheckPrerequisites() error { return m.PrereqError }

// DryRunCommand returns DryRunOutput when set, otherwise a formatted default.
func (m *Mock) DryRunCommand(opts RunOpts) string {
	if m.DryRunOutput != "" {
		return m.DryRunOutput
	}
	return fmt.Sprintf("mock-%s --prompt %q", m.ProviderName, opts.Prompt)
}

// WithRunFunc sets a custom Run function and returns the receiver.
func (m *Mock) WithRunFunc(fn func(ctx context.Context, opts RunOpts) (*RunResult, error)) *Mock {
	m.RunFunc = fn
	return m
}

// WithPrereqError configures CheckPrerequisites to return err.
func (m *Mock) WithPrereqError(err error) *Mock {
	m.PrereqError = err
	return m
}
