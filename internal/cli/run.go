package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/bmad-assist/bmad-assist-go/internal/bench"
	"github.com/bmad-assist/bmad-assist-go/internal/compiler"
	"github.com/bmad-assist/bmad-assist-go/internal/compiler/variables"
	"github.com/bmad-assist/bmad-assist-go/internal/config"
	"github.com/bmad-assist/bmad-assist-go/internal/debuglog"
	"github.com/bmad-assist/bmad-assist-go/internal/loop"
	"github.com/bmad-assist/bmad-assist-go/internal/logging"
	"github.com/bmad-assist/bmad-assist-go/internal/notify"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
	"github.com/bmad-assist/bmad-assist-go/internal/phase"
	"github.com/bmad-assist/bmad-assist-go/internal/provider"
	"github.com/bmad-assist/bmad-assist-go/internal/sprint"
	"github.com/bmad-assist/bmad-assist-go/internal/state"
)

var runFlagProject string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive the story backlog through the phase graph",
	Long: `Start the Loop Runner: pick the next backlog story from
sprint-status.yaml, drive it through every phase the Guardian allows,
persist state after each phase, and repeat until the backlog is
exhausted, the Guardian halts on a failed phase, or the process is
signaled to stop.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runFlagProject, "project", "", "Project root directory (defaults to BMAD_ORIGINAL_CWD or the current directory)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	projectRoot, err := paths.ResolveProjectRoot(runFlagProject)
	if err != nil {
		return err
	}

	cfg, err := config.Load(projectRoot)
	if err != nil {
		return err
	}

	if flagDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "Would run the loop for project %s (dry-run)\n", projectRoot)
		return nil
	}

	logger := logging.New("loop")
	p := paths.New(projectRoot)

	providers, err := buildProviderRegistry(cfg, logger)
	if err != nil {
		return err
	}

	bstore := bench.NewStore(p, logger, nil)
	reg := phase.NewRegistry(cfg, bstore)
	reconciler := sprint.NewReconciler(cfg, p, logger, nil)
	sinks := notify.BuildSinks(cfg.Notify, logger)
	dispatcher := notify.NewDispatcher(logger, sinks...)
	compilerRegistry := compiler.NewRegistry()

	r := &loop.Runner{
		Paths:    p,
		Store:    state.NewStore(p),
		Config:   cfg,
		Guardian: loop.NewGuardian(cfg),
		Phases:   reg,
		Logger:   logger,
		NewInput: func(st *state.State) *phase.Input {
			return buildPhaseInput(p, cfg, st, providers, compilerRegistry, logger)
		},
		SprintSync: reconciler.Sync,
		Notify: func(summary loop.RunSummary) {
			dispatcher.Dispatch(context.Background(), notify.Event{
				Type:    notify.EventPhaseFinish,
				Message: fmt.Sprintf("run stopped: %s (%d phases, %d stories)", summary.Reason, summary.PhasesExecuted, summary.StoriesCompleted),
			})
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	summary, err := r.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run stopped: %s (%d phases, %d stories completed)\n",
		summary.Reason, summary.PhasesExecuted, summary.StoriesCompleted)
	return nil
}

// buildPhaseInput assembles a phase.Input for one handler invocation from
// the current story cursor in st. The compiler.Context's WorkflowIR is left
// unresolved: loading it requires the workflow-patch pipeline
// (internal/compiler/patch), which has no process entrypoint of its own
// yet, so a handler that reaches compiler.Compile without a pre-loaded IR
// fails loudly with a CompilerError rather than sending an unrendered
// prompt to a provider.
func buildPhaseInput(p *paths.Paths, cfg *config.Config, st *state.State, providers *provider.Registry, compilerReg *compiler.Registry, logger *log.Logger) *phase.Input {
	var epicID paths.EpicID
	if st.CurrentEpic != nil {
		epicID = *st.CurrentEpic
	}
	var storyKey string
	if st.CurrentStory != nil {
		storyKey = *st.CurrentStory
	}

	resolver, err := variables.NewResolver(p, nil, nil, nil, "")
	if err != nil {
		logger.Warn("loop: building variable resolver failed", "error", err)
	}

	return &phase.Input{
		State:     st,
		Paths:     p,
		Config:    cfg,
		Providers: providers,
		Compiler:  compilerReg,
		Logger:    logger,
		NewDebugSink: func() *debuglog.Writer {
			return debuglog.New(p, nil)
		},
		CompilerCtx: &compiler.Context{
			Paths:       p,
			Logger:      logger,
			Resolver:    resolver,
			TokenBudget: compiler.TokenBudget{Hard: 50000},
		},
		EpicID:   epicID,
		StoryKey: storyKey,
	}
}
