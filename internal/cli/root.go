package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/bmad-assist/bmad-assist-go/internal/bmaderr"
	"github.com/bmad-assist/bmad-assist-go/internal/logging"
)

// Exit codes: 0 success, 1 generic error, 2 config error.
const (
	ExitSuccess     = 0
	ExitGenericErr  = 1
	ExitConfigError = 2
)

// Global flag values accessible to all subcommands.
var (
	flagVerbose bool
	flagQuiet   bool
	flagConfig  string
	flagDir     string
	flagDryRun  bool
	flagNoColor bool
)

// rootCmd is the base command for bmad-assist.
var rootCmd = &cobra.Command{
	Use:   "bmad-assist",
	Short: "Autonomous multi-LLM software-development orchestrator",
	Long: `bmad-assist sequences phases through a state machine over persisted
project state, compiles workflow prompt templates into standalone prompts,
launches provider subprocesses in parallel, reconciles on-disk sprint
status, and streams execution over server-sent events to dashboard
clients.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// RunE shows full help when invoked with no subcommand. Without RunE,
	// Cobra only prints the Long description (omitting Usage and Flags).
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Check env vars for flags not explicitly set on command line.
		if !cmd.Flags().Changed("verbose") && os.Getenv("BMAD_VERBOSE") != "" {
			flagVerbose = true
		}
		if !cmd.Flags().Changed("quiet") && os.Getenv("BMAD_QUIET") != "" {
			flagQuiet = true
		}
		if !cmd.Flags().Changed("no-color") && (os.Getenv("NO_COLOR") != "" || os.Getenv("BMAD_NO_COLOR") != "") {
			flagNoColor = true
		}

		// Initialize logging.
		jsonFormat := os.Getenv("BMAD_LOG_FORMAT") == "json"
		logging.Setup(flagVerbose, flagQuiet, jsonFormat)

		// Handle --no-color: disable colored output.
		if flagNoColor {
			lipgloss.SetColorProfile(termenv.Ascii)
		}

		// Handle --dir (change working directory).
		if flagDir != "" {
			if err := os.Chdir(flagDir); err != nil {
				return fmt.Errorf("changing directory to %s: %w", flagDir, err)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose (debug) output (env: BMAD_VERBOSE)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress all output except errors (env: BMAD_QUIET)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to bmad-assist.yaml config file")
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "Override working directory")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "Show planned actions without executing")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output (env: BMAD_NO_COLOR, NO_COLOR)")
}

// Execute runs the root command and returns the process exit code, mapping
// a bmaderr.ConfigError to its own dedicated code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var cfgErr *bmaderr.ConfigError
		if errors.As(err, &cfgErr) {
			return ExitConfigError
		}
		return ExitGenericErr
	}
	return ExitSuccess
}

// NewRootCmd returns a new instance of the root command for use in external
// tools such as the shell completion generator. It initialises a fresh cobra
// command tree so that it can be used independently of the global rootCmd.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           rootCmd.Use,
		Short:         rootCmd.Short,
		Long:          rootCmd.Long,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// Attach all registered subcommands from the global tree.
	for _, child := range rootCmd.Commands() {
		cmd.AddCommand(child)
	}
	return cmd
}
