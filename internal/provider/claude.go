package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/bmad-assist/bmad-assist-go/internal/bmaderr"
)

// Compile-time check that Claude implements Provider.
var _ Provider = (*Claude)(nil)

// claudeNonRetriableExit marks exit codes the Claude CLI uses for permanent
// usage errors (bad flags, missing prompt) rather than transient failures.
var claudeNonRetriableExit = map[int]bool{2: true}

// maxInlinePromptBytes is the threshold above which a prompt is written to a
// temp file instead of being passed directly on the command line.
const maxInlinePromptBytes = 100 * 1024 // 100 KiB

// maxDryRunPromptLen caps how much of a prompt DryRunCommand echoes inline.
const maxDryRunPromptLen = 120

// debugLogger is the minimal logging interface a Provider may use.
type debugLogger interface {
	Debug(msg string, keyvals ...interface{})
}

// Claude is a Provider adapter that executes prompts via the Claude CLI,
// delivering the prompt on argv (or a temp file for long prompts) and
// decoding stream-json init events of the form
// {type:"system",subtype:"init",session_id}.
type Claude struct {
	cfg    Config
	logger debugLogger
}

// NewClaude creates a Claude provider with the given configuration and
// logger. The logger may be nil, in which case debug messages are discarded.
func NewClaude(cfg Config, logger debugLogger) *Claude {
	return &Claude{cfg: cfg, logger: logger}
}

// Name returns the provider identifier "claude".
func (c *Claude) Name() string { return "claude" }

// CheckPrerequisites verifies the Claude CLI executable is on PATH.
func (c *Claude) CheckPrerequisites() error {
	cmd := c.cfg.Command
	if cmd == "" {
		cmd = "claude"
	}
	if _, err := exec.LookPath(cmd); err != nil {
		return fmt.Errorf("claude CLI not found (looked for %q): %w", cmd, err)
	}
	return nil
}

// Run executes the given prompt using the Claude CLI. If opts.TimeoutSec is
// positive, the subprocess is killed with SIGKILL once the deadline elapses
// and the result carries Status ExitTimeout plus a ProviderTimeoutError.
func (c *Claude) Run(ctx context.Context, opts RunOpts) (*RunResult, error) {
	return runProvider(ctx, "claude", c.cfg, opts, c.logger, c.buildArgs)
}

// DryRunCommand returns the command line that would be executed.
func (c *Claude) DryRunCommand(opts RunOpts) string {
	args := c.buildArgs(opts, true)
	cmd := c.cfg.Command
	if cmd == "" {
		cmd = "claude"
	}
	return cmd + " " + strings.Join(args, " ")
}

// buildArgs constructs the Claude CLI argument slice. When dryRun is true,
// long prompts are truncated in the output instead of spilled to a temp file.
func (c *Claude) buildArgs(opts RunOpts, dryRun bool) []string {
	var args []string

	args = append(args, "--permission-mode", "accept", "--print")

	model := opts.Model
	if model == "" {
		model = c.cfg.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}

	allowedTools := opts.AllowedTools
	if allowedTools == "" {
		allowedTools = c.cfg.AllowedTools
	}
	if allowedTools != "" {
		args = append(args, "--allowedTools", allowedTools)
	}

	if opts.OutputFormat != "" {
		args = append(args, "--output-format", opts.OutputFormat)
	}

	switch {
	case opts.PromptFile != "":
		args = append(args, "--prompt-file", opts.PromptFile)
	case opts.Prompt != "" && len(opts.Prompt) > maxInlinePromptBytes:
		if dryRun {
			truncated := opts.Prompt
			if len(truncated) > maxDryRunPromptLen {
				truncated = truncated[:maxDryRunPromptLen] + "..."
			}
			args = append(args, "--prompt", truncated)
		} else if f, err := os.CreateTemp("", "bmad-claude-prompt-*.md"); err == nil {
			if _, werr := f.WriteString(opts.Prompt); werr == nil {
				_ = f.Close()
				args = append(args, "--prompt-file", f.Name())
			} else {
				_ = f.Close()
				args = append(args, "--prompt", opts.Prompt)
			}
		} else {
			args = append(args, "--prompt", opts.Prompt)
		}
	case opts.Prompt != "":
		args = append(args, "--prompt", opts.Prompt)
	}

	return args
}

// runProvider is the subprocess-execution shape shared by every provider:
// build argv, pipe stdout/stderr, tee stdout through a StreamDecoder to
// extract the init session/thread id regardless of whether the caller wants
// live streaming, enforce the opts.TimeoutSec deadline, and classify the
// outcome into ExitStatus.
func runProvider(
	ctx context.Context,
	name string,
	cfg Config,
	opts RunOpts,
	logger debugLogger,
	buildArgs func(RunOpts, bool) []string,
) (*RunResult, error) {
	start := time.Now()

	runCtx := ctx
	var cancel context.CancelFunc
	if opts.TimeoutSec > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutSec)*time.Second)
		defer cancel()
	}

	command := cfg.Command
	if command == "" {
		command = name
	}
	args := buildArgs(opts, false)

	cmd := exec.CommandContext(runCtx, command, args...)
	setProcGroup(cmd)
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	env := os.Environ()
	effort := opts.Effort
	if effort == "" {
		effort = cfg.Effort
	}
	if effort != "" {
		env = append(env, "BMAD_PROVIDER_EFFORT="+effort)
	}
	env = append(env, opts.Env...)
	cmd.Env = env

	if logger != nil {
		logger.Debug("running provider", "provider", name, "args", cmd.Args, "work_dir", cmd.Dir)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	var (
		stdoutBuf bytes.Buffer
		stderrBuf bytes.Buffer
		wg        sync.WaitGroup
		sessionID string
		threadID  string
		truncated bool
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		tee := io.TeeReader(stdoutPipe, &stdoutBuf)
		decoder := NewStreamDecoder(tee)
		for {
			event, derr := decoder.Next()
			if derr != nil {
				break
			}
			if event.IsInit() {
				if event.SessionID != "" {
					sessionID = event.SessionID
				}
				if event.ThreadID != "" {
					threadID = event.ThreadID
				}
			}
			if opts.StreamEvents != nil {
				select {
				case opts.StreamEvents <- *event:
				default:
				}
			}
		}
		truncated = decoder.Truncated()
	}()
	go func() {
		defer wg.Done()
		_, _ = stderrBuf.ReadFrom(stderrPipe)
	}()

	if err := cmd.Start(); err != nil {
		wg.Wait()
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}

	wg.Wait()
	waitErr := cmd.Wait()
	duration := time.Since(start)

	result := &RunResult{
		Stdout:    stdoutBuf.String(),
		Stderr:    stderrBuf.String(),
		Duration:  duration,
		SessionID: sessionID,
		ThreadID:  threadID,
		Truncated: truncated,
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.Status = ExitTimeout
		result.ExitCode = -1
		return result, &bmaderr.ProviderTimeoutError{Provider: name, Timeout: fmt.Sprintf("%ds", opts.TimeoutSec)}
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("waiting for %s: %w", name, waitErr)
		}
	}

	result.RateLimit = parseRateLimit(result.Stdout + result.Stderr)

	result.Status = classifyExit(result.ExitCode, nonRetriableExitCodes(name))
	if result.Status != ExitSuccess {
		preview := result.Stderr
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		return result, &bmaderr.ProviderExitCodeError{Provider: name, ExitCode: result.ExitCode, StderrPreview: preview}
	}

	return result, nil
}

// nonRetriableExitCodes returns the per-provider set of exit codes that
// indicate a permanent failure rather than a transient one.
func nonRetriableExitCodes(name string) map[int]bool {
	switch name {
	case "claude":
		return claudeNonRetriableExit
	case "codex":
		return codexNonRetriableExit
	case "gemini":
		return geminiNonRetriableExit
	default:
		return nil
	}
}
