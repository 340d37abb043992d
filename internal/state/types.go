// Package state persists and reloads bmad-assist's singular run State:
// current epic/story/phase, completion history, and phase timing anchors.
// It is the Loop Runner's exclusive domain between phase boundaries.
package state

import (
	"time"

	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

// Phase is one node of the fixed phase graph.
type Phase string

const (
	PhaseCreateStory             Phase = "CREATE_STORY"
	PhaseValidateStory           Phase = "VALIDATE_STORY"
	PhaseValidateStorySynthesis  Phase = "VALIDATE_STORY_SYNTHESIS"
	PhaseATDD                    Phase = "ATDD"
	PhaseDevStory                Phase = "DEV_STORY"
	PhaseCodeReview              Phase = "CODE_REVIEW"
	PhaseCodeReviewSynthesis     Phase = "CODE_REVIEW_SYNTHESIS"
	PhaseTestReview              Phase = "TEST_REVIEW"
	PhaseRetrospective           Phase = "RETROSPECTIVE"
	PhaseQAPlanGenerate          Phase = "QA_PLAN_GENERATE"
	PhaseQAPlanExecute           Phase = "QA_PLAN_EXECUTE"
	PhaseQARemediate             Phase = "QA_REMEDIATE"
)

// Ordered is the fixed phase graph in ordinal order. Optional phases (ATDD,
// TEST_REVIEW, QA_*) are included here; the Guardian (internal/loop) decides
// at runtime whether an optional phase is skipped based on feature flags.
var Ordered = []Phase{
	PhaseCreateStory,
	PhaseValidateStory,
	PhaseValidateStorySynthesis,
	PhaseATDD,
	PhaseDevStory,
	PhaseCodeReview,
	PhaseCodeReviewSynthesis,
	PhaseTestReview,
	PhaseRetrospective,
	PhaseQAPlanGenerate,
	PhaseQAPlanExecute,
	PhaseQARemediate,
}

// Ordinal returns p's position in Ordered, or -1 if p is not a recognized
// phase.
func Ordinal(p Phase) int {
	for i, candidate := range Ordered {
		if candidate == p {
			return i
		}
	}
	return -1
}

// TestarchPreflight records the one-time testarch preparation marker.
type TestarchPreflight struct {
	CompletedAt time.Time `yaml:"completed_at"`
	TestDesign  string    `yaml:"test_design"`
	Framework   string    `yaml:"framework"`
	CI          string    `yaml:"ci"`
}

// QACategory controls which QA test classes a run executes.
type QACategory string

const (
	QACategoryA   QACategory = "A"
	QACategoryAll QACategory = "all"
)

// State is bmad-assist's singular persisted run state, written atomically to
// .bmad-assist/state.yaml. Exactly one writer (the Loop Runner) holds it
// between phase boundaries; it is never mutated mid-phase.
type State struct {
	CurrentEpic  *paths.EpicID `yaml:"current_epic"`
	CurrentStory *string       `yaml:"current_story"`
	CurrentPhase *Phase        `yaml:"current_phase"`

	CompletedEpics   []paths.EpicID `yaml:"completed_epics"`
	CompletedStories []string       `yaml:"completed_stories"`

	StartedAt time.Time `yaml:"started_at"`
	UpdatedAt time.Time `yaml:"updated_at"`

	PhaseStartedAt *time.Time `yaml:"phase_started_at"`
	StoryStartedAt *time.Time `yaml:"story_started_at"`
	EpicStartedAt  *time.Time `yaml:"epic_started_at"`

	TestarchPreflight *TestarchPreflight `yaml:"testarch_preflight"`
	QACategory        QACategory         `yaml:"qa_category"`
}

// New returns a freshly initialized State as the Runner creates it on first
// start: no current epic/story/phase, empty history, QA category defaulted
// to "A".
func New(now time.Time) *State {
	now = now.UTC()
	return &State{
		CompletedEpics:   []paths.EpicID{},
		CompletedStories: []string{},
		StartedAt:        now,
		UpdatedAt:        now,
		QACategory:       QACategoryA,
	}
}

// IsStoryCompleted reports whether storyKey is already in CompletedStories.
func (s *State) IsStoryCompleted(storyKey string) bool {
	for _, k := range s.CompletedStories {
		if k == storyKey {
			return true
		}
	}
	return false
}
