package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/bmad-assist/bmad-assist-go/internal/bmaderr"
	"github.com/bmad-assist/bmad-assist-go/internal/config"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

// configCmd is the parent "config" namespace command. It has no action of
// its own -- it groups debug and validate subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  "Inspect and validate bmad-assist's resolved configuration.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configFlagProject string

// configDebugCmd implements "bmad-assist config debug".
// It prints the fully-resolved, redacted configuration.
var configDebugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Show the resolved configuration (secrets redacted)",
	Long: `Display the configuration after the global/project deep merge,
with every field tagged dangerous (provider commands, webhook URLs, tokens)
replaced by a redaction placeholder.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectRoot, err := paths.ResolveProjectRoot(configFlagProject)
		if err != nil {
			return err
		}
		cfg, err := config.Load(projectRoot)
		if err != nil {
			return err
		}
		printResolvedConfig(cmd, paths.New(projectRoot).ProjectConfig(), config.Redact(cfg))
		return nil
	},
}

// configValidateCmd implements "bmad-assist config validate".
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and report issues",
	Long:  "Load the resolved configuration and check it for structural errors.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectRoot, err := paths.ResolveProjectRoot(configFlagProject)
		if err != nil {
			return err
		}
		cfg, err := config.Load(projectRoot)
		if err != nil {
			return err
		}
		validateErr := config.Validate(cfg)
		printValidationResult(cmd, validateErr)
		if validateErr != nil {
			return fmt.Errorf("configuration is invalid")
		}
		return nil
	},
}

func init() {
	configCmd.PersistentFlags().StringVar(&configFlagProject, "project", "", "Project root directory (defaults to BMAD_ORIGINAL_CWD or the current directory)")
	configCmd.AddCommand(configDebugCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

// ---- Lipgloss styles --------------------------------------------------------

var (
	styleHeader    = lipgloss.NewStyle().Bold(true)
	styleSeparator = lipgloss.NewStyle()
	styleSection   = lipgloss.NewStyle().Bold(true)
	styleErrorLbl  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true) // red
	styleSuccess   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))           // green
)

// ---- printResolvedConfig ----------------------------------------------------

const fieldWidth = 24 // column width for field names

// printResolvedConfig writes the formatted, redacted configuration to cmd's
// output writer.
func printResolvedConfig(cmd *cobra.Command, path string, cfg *config.Config) {
	out := cmd.OutOrStdout()

	header := styleHeader.Render("Configuration Debug")
	sep := styleSeparator.Render(strings.Repeat("=", len("Configuration Debug")))
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, sep)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Project config: %s\n\n", path)

	fmt.Fprintln(out, styleSection.Render("[project]"))
	p := cfg.Project
	printField(out, "name", fmtStr(p.Name))
	printField(out, "language", fmtStr(p.Language))
	printField(out, "tasks_dir", fmtStr(p.TasksDir))
	printField(out, "log_dir", fmtStr(p.LogDir))
	printField(out, "prompt_dir", fmtStr(p.PromptDir))
	printField(out, "branch_template", fmtStr(p.BranchTemplate))
	printField(out, "verification_commands", fmtSlice(p.VerificationCommands))
	printField(out, "master", fmtStr(p.Master))
	fmt.Fprintln(out)

	if len(cfg.Providers) > 0 {
		names := make([]string, 0, len(cfg.Providers))
		for n := range cfg.Providers {
			names = append(names, n)
		}
		sort.Strings(names)

		for _, name := range names {
			pv := cfg.Providers[name]
			fmt.Fprintln(out, styleSection.Render(fmt.Sprintf("[providers.%s]", name)))
			printField(out, "command", fmtStr(pv.Command))
			printField(out, "model", fmtStr(pv.Model))
			printField(out, "effort", fmtStr(pv.Effort))
			printField(out, "allowed_tools", fmtStr(pv.AllowedTools))
			printField(out, "timeout_sec", fmt.Sprintf("%d", pv.TimeoutSec))
			fmt.Fprintln(out)
		}
	}

	fmt.Fprintln(out, styleSection.Render("[review]"))
	r := cfg.Review
	printField(out, "extensions", fmtStr(r.Extensions))
	printField(out, "risk_patterns", fmtStr(r.RiskPatterns))
	printField(out, "evaluators", fmtSlice(r.Evaluators))
	printField(out, "min_evaluators", fmt.Sprintf("%d", r.MinEvaluators))
	fmt.Fprintln(out)

	fmt.Fprintln(out, styleSection.Render("[dashboard]"))
	d := cfg.Dashboard
	printField(out, "host", fmtStr(d.Host))
	printField(out, "port", fmt.Sprintf("%d", d.Port))
	printField(out, "no_auto_port", fmt.Sprintf("%t", d.NoAutoPort))
	fmt.Fprintln(out)

	fmt.Fprintln(out, styleSection.Render("[qa]"))
	q := cfg.QA
	printField(out, "enabled", fmt.Sprintf("%t", q.Enabled))
	printField(out, "batch", fmt.Sprintf("%t", q.Batch))
	printField(out, "batch_size", fmt.Sprintf("%d", q.BatchSize))
	fmt.Fprintln(out)

	if len(cfg.Workflows) > 0 {
		wfNames := make([]string, 0, len(cfg.Workflows))
		for n := range cfg.Workflows {
			wfNames = append(wfNames, n)
		}
		sort.Strings(wfNames)

		for _, name := range wfNames {
			wf := cfg.Workflows[name]
			fmt.Fprintln(out, styleSection.Render(fmt.Sprintf("[workflows.%s]", name)))
			printField(out, "description", fmtStr(wf.Description))
			printField(out, "steps", fmtSlice(wf.Steps))
			fmt.Fprintln(out)
		}
	}
}

// printField writes a single key = value line, left-padded to fieldWidth.
func printField(out interface{ Write([]byte) (int, error) }, name, value string) {
	padded := fmt.Sprintf("  %-*s", fieldWidth, name)
	fmt.Fprintf(out, "%s = %s\n", padded, value)
}

// fmtStr formats a string value for display (quoted).
func fmtStr(s string) string {
	return fmt.Sprintf("%q", s)
}

// fmtSlice formats a string slice for display.
func fmtSlice(ss []string) string {
	if len(ss) == 0 {
		return "[]"
	}
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// ---- printValidationResult --------------------------------------------------

// printValidationResult writes the formatted validation report to cmd's
// output writer. err is either nil or a wrapped *bmaderr.ConfigValidationError.
func printValidationResult(cmd *cobra.Command, err error) {
	out := cmd.OutOrStdout()

	header := styleHeader.Render("Configuration Validation")
	sep := styleSeparator.Render(strings.Repeat("=", len("Configuration Validation")))
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, sep)
	fmt.Fprintln(out)

	if err == nil {
		fmt.Fprintln(out, styleSuccess.Render("No issues found."))
		return
	}

	fmt.Fprintln(out, styleErrorLbl.Render("Errors:"))

	var validationErr *bmaderr.ConfigValidationError
	if errors.As(err, &validationErr) {
		for _, issue := range validationErr.Errors {
			fmt.Fprintf(out, "  [%s] %s\n", issue.Loc, issue.Msg)
		}
		fmt.Fprintf(out, "%d error(s)\n", len(validationErr.Errors))
		return
	}

	fmt.Fprintf(out, "  %v\n", err)
}
