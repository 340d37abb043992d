package qa

import (
	"context"
	"fmt"

	"github.com/bmad-assist/bmad-assist-go/internal/provider"
)

// fakeProvider is a test double satisfying provider.Provider, returning a
// scripted response (or error) without spawning any subprocess.
type fakeProvider struct {
	name     string
	stdout   string
	status   provider.ExitStatus
	runErr   error
	calls    int
	lastOpts provider.RunOpts
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Run(ctx context.Context, opts provider.RunOpts) (*provider.RunResult, error) {
	f.calls++
	f.lastOpts = opts
	if f.runErr != nil {
		return nil, f.runErr
	}
	status := f.status
	if status == "" {
		status = provider.ExitSuccess
	}
	return &provider.RunResult{Stdout: f.stdout, Status: status}, nil
}

func (f *fakeProvider) CheckPrerequisites() error { return nil }

func (f *fakeProvider) DryRunCommand(opts provider.RunOpts) string {
	return fmt.Sprintf("fake-provider %s", f.name)
}

func newFakeRegistry(p *fakeProvider) *provider.Registry {
	reg := provider.NewRegistry()
	if err := reg.Register(p); err != nil {
		panic(err)
	}
	return reg
}
