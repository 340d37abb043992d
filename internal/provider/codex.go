package provider

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Compile-time check that Codex implements Provider.
var _ Provider = (*Codex)(nil)

// codexNonRetriableExit marks exit codes the Codex CLI uses for permanent
// usage errors.
var codexNonRetriableExit = map[int]bool{2: true}

// Codex is a Provider adapter that executes prompts via the Codex CLI,
// delivering the prompt on argv and decoding stream-json init events of the
// form {type:"thread.started", thread_id}.
type Codex struct {
	cfg    Config
	logger debugLogger
}

// NewCodex creates a Codex provider with the given configuration and logger.
func NewCodex(cfg Config, logger debugLogger) *Codex {
	return &Codex{cfg: cfg, logger: logger}
}

// Name returns the provider identifier "codex".
func (c *Codex) Name() string { return "codex" }

// CheckPrerequisites verifies the Codex CLI executable is on PATH.
func (c *Codex) CheckPrerequisites() error {
	cmd := c.cfg.Command
	if cmd == "" {
		cmd = "codex"
	}
	if _, err := exec.LookPath(cmd); err != nil {
		return fmt.Errorf("codex CLI not found (looked for %q): %w", cmd, err)
	}
	return nil
}

// Run executes the given prompt using the Codex CLI.
func (c *Codex) Run(ctx context.Context, opts RunOpts) (*RunResult, error) {
	return runProvider(ctx, "codex", c.cfg, opts, c.logger, c.buildArgs)
}

// DryRunCommand returns the command line that would be executed.
func (c *Codex) DryRunCommand(opts RunOpts) string {
	args := c.buildArgs(opts, true)
	cmd := c.cfg.Command
	if cmd == "" {
		cmd = "codex"
	}
	return cmd + " " + strings.Join(args, " ")
}

// buildArgs constructs the Codex CLI argument slice.
func (c *Codex) buildArgs(opts RunOpts, dryRun bool) []string {
	args := []string{"exec", "--sandbox", "--ephemeral", "-a", "never", "--json"}

	model := opts.Model
	if model == "" {
		model = c.cfg.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}

	switch {
	case opts.PromptFile != "":
		args = append(args, "--prompt-file", opts.PromptFile)
	case opts.Prompt != "":
		prompt := opts.Prompt
		if dryRun && len([]rune(prompt)) > maxDryRunPromptLen {
			prompt = string([]rune(prompt)[:maxDryRunPromptLen]) + "..."
		}
		args = append(args, "--prompt", prompt)
	}

	return args
}
