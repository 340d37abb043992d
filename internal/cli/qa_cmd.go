package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bmad-assist/bmad-assist-go/internal/config"
	"github.com/bmad-assist/bmad-assist-go/internal/logging"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
	"github.com/bmad-assist/bmad-assist-go/internal/qa"
)

var (
	qaFlagEpic           string
	qaFlagCategory       string
	qaFlagBatch          bool
	qaFlagNoBatch        bool
	qaFlagBatchSize      int
	qaFlagRetry          bool
	qaFlagRetryRun       string
	qaFlagIncludeSkipped bool
	qaFlagProject        string
)

var qaCmd = &cobra.Command{
	Use:   "qa",
	Short: "Generate and execute epic QA test plans",
}

var qaGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an epic's end-to-end test plan",
	Args:  cobra.NoArgs,
	RunE:  runQAGenerate,
}

var qaExecuteCmd = &cobra.Command{
	Use:   "execute",
	Short: "Execute an epic's generated test plan",
	Args:  cobra.NoArgs,
	RunE:  runQAExecute,
}

func init() {
	qaCmd.PersistentFlags().StringVar(&qaFlagEpic, "epic", "", "Epic identifier, e.g. 3 or a tagged name (required)")
	qaCmd.PersistentFlags().StringVar(&qaFlagProject, "project", "", "Project root directory (defaults to BMAD_ORIGINAL_CWD or the current directory)")
	_ = qaCmd.MarkPersistentFlagRequired("epic")

	qaExecuteCmd.Flags().StringVar(&qaFlagCategory, "category", "all", "Test category to run: A or all")
	qaExecuteCmd.Flags().BoolVar(&qaFlagBatch, "batch", false, "Force batch execution mode")
	qaExecuteCmd.Flags().BoolVar(&qaFlagNoBatch, "no-batch", false, "Force single-run execution mode")
	qaExecuteCmd.Flags().IntVar(&qaFlagBatchSize, "batch-size", 10, "Number of tests per batch")
	qaExecuteCmd.Flags().BoolVar(&qaFlagRetry, "retry", false, "Retry only previously failed/errored tests")
	qaExecuteCmd.Flags().StringVar(&qaFlagRetryRun, "retry-run", "", "Run ID to retry failures from (defaults to the latest run)")
	qaExecuteCmd.Flags().BoolVar(&qaFlagIncludeSkipped, "include-skipped", false, "Include previously skipped tests when retrying")

	qaCmd.AddCommand(qaGenerateCmd, qaExecuteCmd)
	rootCmd.AddCommand(qaCmd)
}

// loadQAContext resolves the project config, paths, and epic ID shared by
// both qa subcommands, failing fast if BMAD_QA_ENABLED/qa.enabled gates QA
// off.
func loadQAContext() (*config.Config, *paths.Paths, paths.EpicID, error) {
	projectRoot, err := paths.ResolveProjectRoot(qaFlagProject)
	if err != nil {
		return nil, nil, paths.EpicID{}, err
	}

	cfg, err := config.Load(projectRoot)
	if err != nil {
		return nil, nil, paths.EpicID{}, err
	}

	if os.Getenv("BMAD_QA_ENABLED") == "1" {
		cfg.QA.Enabled = true
	}
	if !cfg.QA.Enabled {
		return nil, nil, paths.EpicID{}, fmt.Errorf("qa: disabled; set qa.enabled: true or BMAD_QA_ENABLED=1")
	}

	p := paths.New(projectRoot)
	epic := paths.ParseEpicID(qaFlagEpic)
	return cfg, p, epic, nil
}

func runQAGenerate(cmd *cobra.Command, args []string) error {
	cfg, p, epic, err := loadQAContext()
	if err != nil {
		return err
	}

	if flagDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "Would generate QA plan for epic %s (dry-run)\n", epic.String())
		return nil
	}

	logger := logging.New("qa-generate")
	providers, err := buildProviderRegistry(cfg, logger)
	if err != nil {
		return err
	}

	gen := &qa.Generator{
		Paths:        p,
		Providers:    providers,
		ProviderName: cfg.Project.Master,
		TimeoutSec:   cfg.Providers[cfg.Project.Master].TimeoutSec,
		Logger:       logger,
	}

	planPath, err := gen.Generate(cmd.Context(), epic)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Generated QA plan: %s\n", planPath)
	return nil
}

// parseQACategoryFlag validates --category against the two values qa
// execute accepts.
func parseQACategoryFlag(raw string) (qa.Category, error) {
	category := qa.Category(raw)
	if category != qa.CategoryA && category != qa.CategoryAll {
		return "", fmt.Errorf("qa: --category must be \"A\" or \"all\", got %q", raw)
	}
	return category, nil
}

func runQAExecute(cmd *cobra.Command, args []string) error {
	cfg, p, epic, err := loadQAContext()
	if err != nil {
		return err
	}

	category, err := parseQACategoryFlag(qaFlagCategory)
	if err != nil {
		return err
	}

	if qaFlagBatch && qaFlagNoBatch {
		return fmt.Errorf("qa: --batch and --no-batch are mutually exclusive")
	}

	if flagDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "Would execute QA plan for epic %s, category %s (dry-run)\n", epic.String(), category)
		return nil
	}

	plan, err := qa.Parse(p.QATestPlanFile(epic))
	if err != nil {
		return fmt.Errorf("qa: loading plan for epic %s: %w", epic.String(), err)
	}

	logger := logging.New("qa-execute")
	exec := &qa.Executor{Paths: p, Concurrency: qaFlagBatchSize, Logger: logger}

	var batch *bool
	switch {
	case qaFlagBatch:
		v := true
		batch = &v
	case qaFlagNoBatch:
		v := false
		batch = &v
	}

	results, err := exec.Execute(cmd.Context(), plan, qa.ExecuteOpts{
		Epic:           epic,
		Category:       category,
		Batch:          batch,
		BatchSize:      qaFlagBatchSize,
		Retry:          qaFlagRetry,
		RetryRun:       qaFlagRetryRun,
		IncludeSkipped: qaFlagIncludeSkipped,
		WorkDir:        p.ProjectRoot,
		TimeoutSec:     cfg.QA.TimeoutSec,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "QA run %s: %d results, pass rate %.1f%%\n",
		results.RunID, len(results.Results), results.PassRate()*100)
	return nil
}
