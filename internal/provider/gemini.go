package provider

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Compile-time check that Gemini implements Provider.
var _ Provider = (*Gemini)(nil)

// geminiNonRetriableExit marks exit codes the Gemini CLI uses for permanent
// usage errors.
var geminiNonRetriableExit = map[int]bool{2: true}

// Gemini is a Provider adapter that executes prompts via the Gemini CLI,
// delivering the prompt on argv and decoding stream-json init events of the
// form {type:"init", session_id}.
type Gemini struct {
	cfg    Config
	logger debugLogger
}

// NewGemini creates a Gemini provider with the given configuration and
// logger.
func NewGemini(cfg Config, logger debugLogger) *Gemini {
	return &Gemini{cfg: cfg, logger: logger}
}

// Name returns the provider identifier "gemini".
func (g *Gemini) Name() string { return "gemini" }

// CheckPrerequisites verifies the Gemini CLI executable is on PATH.
func (g *Gemini) CheckPrerequisites() error {
	cmd := g.cfg.Command
	if cmd == "" {
		cmd = "gemini"
	}
	if _, err := exec.LookPath(cmd); err != nil {
		return fmt.Errorf("gemini CLI not found (looked for %q): %w", cmd, err)
	}
	return nil
}

// Run executes the given prompt using the Gemini CLI.
func (g *Gemini) Run(ctx context.Context, opts RunOpts) (*RunResult, error) {
	return runProvider(ctx, "gemini", g.cfg, opts, g.logger, g.buildArgs)
}

// DryRunCommand returns the command line that would be executed.
func (g *Gemini) DryRunCommand(opts RunOpts) string {
	args := g.buildArgs(opts, true)
	cmd := g.cfg.Command
	if cmd == "" {
		cmd = "gemini"
	}
	return cmd + " " + strings.Join(args, " ")
}

// buildArgs constructs the Gemini CLI argument slice.
func (g *Gemini) buildArgs(opts RunOpts, dryRun bool) []string {
	args := []string{"--output-format", "stream-json", "--yolo"}

	model := opts.Model
	if model == "" {
		model = g.cfg.Model
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
