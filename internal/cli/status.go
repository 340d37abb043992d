package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/bmad-assist/bmad-assist-go/internal/paths"
	"github.com/bmad-assist/bmad-assist-go/internal/state"
)

// statusFlags holds the flag values for the status command.
type statusFlags struct {
	JSON    bool
	Project string
}

// statusOutput is the JSON output shape for "bmad-assist status --json".
type statusOutput struct {
	CurrentEpic      string   `json:"current_epic,omitempty"`
	CurrentStory     string   `json:"current_story,omitempty"`
	CurrentPhase     string   `json:"current_phase,omitempty"`
	PhaseOrdinal     int      `json:"phase_ordinal"`
	PhaseTotal       int      `json:"phase_total"`
	CompletedEpics   []string `json:"completed_epics"`
	CompletedStories []string `json:"completed_stories"`
	StartedAt        string   `json:"started_at,omitempty"`
	UpdatedAt        string   `json:"updated_at,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current run's epic, story, and phase progress",
	Long: `Display the Loop Runner's persisted state: which epic/story/phase
is active, how far the fixed phase graph has progressed, and the
completed-epics/completed-stories history.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd, statusCmdFlags)
	},
}

var statusCmdFlags statusFlags

func init() {
	statusCmd.Flags().BoolVar(&statusCmdFlags.JSON, "json", false, "Output structured JSON to stdout")
	statusCmd.Flags().StringVar(&statusCmdFlags.Project, "project", "", "Project root directory (defaults to BMAD_ORIGINAL_CWD or the current directory)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, flags statusFlags) error {
	projectRoot, err := paths.ResolveProjectRoot(flags.Project)
	if err != nil {
		return err
	}

	store := state.NewStore(paths.New(projectRoot))
	st, err := store.Load()
	if err != nil {
		return fmt.Errorf("loading run state: %w", err)
	}
	if st == nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "No run state found. Run `bmad-assist serve` or start a loop run to create one.")
		return nil
	}

	if flags.JSON {
		return renderStatusJSON(cmd.OutOrStdout(), st)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), renderStatusSummary(st))
	return nil
}

func renderStatusJSON(w io.Writer, st *state.State) error {
	out := statusOutput{
		CompletedEpics:   make([]string, 0, len(st.CompletedEpics)),
		CompletedStories: append([]string{}, st.CompletedStories...),
		PhaseTotal:       len(state.Ordered),
		StartedAt:        st.StartedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:        st.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	for _, e := range st.CompletedEpics {
		out.CompletedEpics = append(out.CompletedEpics, e.String())
	}
	if st.CurrentEpic != nil {
		out.CurrentEpic = st.CurrentEpic.String()
	}
	if st.CurrentStory != nil {
		out.CurrentStory = *st.CurrentStory
	}
	if st.CurrentPhase != nil {
		out.CurrentPhase = string(*st.CurrentPhase)
		out.PhaseOrdinal = state.Ordinal(*st.CurrentPhase) + 1
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// renderStatusSummary renders a human-readable progress view:
//
//	bmad-assist status
//	===================
//	Epic: 3   Story: 3.2
//	████████████░░░░░░░░ 50% (6/12 phases)
//	Phase: DEV_STORY
//	Completed epics: 1, 2
func renderStatusSummary(st *state.State) string {
	headerStyle := lipgloss.NewStyle().Bold(true)
	phaseStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	title := "bmad-assist status"
	sep := strings.Repeat("=", len(title))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(title))
	sb.WriteString("\n")
	sb.WriteString(sep)
	sb.WriteString("\n")

	epic := "(none)"
	if st.CurrentEpic != nil {
		epic = st.CurrentEpic.String()
	}
	story := "(none)"
	if st.CurrentStory != nil {
		story = *st.CurrentStory
	}
	sb.WriteString(fmt.Sprintf("Epic: %s   Story: %s\n", epic, story))

	ordinal := 0
	if st.CurrentPhase != nil {
		ordinal = state.Ordinal(*st.CurrentPhase) + 1
	}
	total := len(state.Ordered)
	pct := 0.0
	if total > 0 {
		pct = float64(ordinal) / float64(total)
	}

	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)
	sb.WriteString(bar.ViewAs(pct))
	sb.WriteString(fmt.Sprintf(" %.0f%% (%d/%d phases)\n", pct*100, ordinal, total))

	if st.CurrentPhase != nil {
		sb.WriteString(phaseStyle.Render(fmt.Sprintf("Phase: %s", *st.CurrentPhase)))
		sb.WriteString("\n")
	}

	if len(st.CompletedEpics) > 0 {
		names := make([]string, len(st.CompletedEpics))
		for i, e := range st.CompletedEpics {
			names[i] = e.String()
		}
		sb.WriteString(fmt.Sprintf("Completed epics: %s\n", strings.Join(names, ", ")))
	}
	if len(st.CompletedStories) > 0 {
		sb.WriteString(fmt.Sprintf("Completed stories: %s\n", strings.Join(st.CompletedStories, ", ")))
	}

	return sb.String()
}
