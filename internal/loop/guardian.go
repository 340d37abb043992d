package loop

import (
	"github.com/bmad-assist/bmad-assist-go/internal/config"
	"github.com/bmad-assist/bmad-assist-go/internal/phase"
	"github.com/bmad-assist/bmad-assist-go/internal/state"
)

// Verdict is the Guardian's post-phase decision: whether the Runner should
// keep going or halt the loop to avoid looping forever against a phase that
// cannot succeed.
type Verdict int

const (
	Continue Verdict = iota
	Halt
)

// Guardian decides the next phase in the fixed phase graph, filtered by
// feature flags, and judges whether a completed phase's result allows the
// loop to proceed.
type Guardian struct {
	TestarchEnabled bool
	QAEnabled       bool
}

// NewGuardian builds a Guardian from the project's feature-flag config.
func NewGuardian(cfg *config.Config) *Guardian {
	return &Guardian{
		TestarchEnabled: cfg.Testarch.Enabled,
		QAEnabled:       cfg.QA.Enabled,
	}
}

// NextPhase returns the successor of current in state.Ordered, skipping any
// phase this Guardian's flags disable. A nil current starts at the
// beginning of the graph. A nil return means the project (or this story's
// remaining graph) is complete: either state.Ordered is exhausted, or
// RETROSPECTIVE was reached with every downstream QA phase disabled.
func (g *Guardian) NextPhase(current *state.Phase) *state.Phase {
	start := 0
	if current != nil {
		ord := state.Ordinal(*current)
		if ord < 0 {
			return nil
		}
		start = ord + 1
	}

	for i := start; i < len(state.Ordered); i++ {
		p := state.Ordered[i]
		if g.skip(p) {
			continue
		}
		next := p
		return &next
	}
	return nil
}

// skip reports whether p should be skipped given this Guardian's flags.
func (g *Guardian) skip(p state.Phase) bool {
	switch p {
	case state.PhaseATDD, state.PhaseTestReview:
		return !g.TestarchEnabled
	case state.PhaseQAPlanGenerate, state.PhaseQAPlanExecute, state.PhaseQARemediate:
		return !g.QAEnabled
	default:
		return false
	}
}

// CheckAnomaly judges a completed phase's result: any failure halts the
// loop (preventing an infinite retry against a phase that cannot succeed);
// success continues.
func (g *Guardian) CheckAnomaly(result *phase.Result) Verdict {
	if result == nil || !result.Success {
		return Halt
	}
	return Continue
}

// IsLastPhaseForStory reports whether completing p with this Guardian's
// flags finishes the current story's phase graph (i.e. NextPhase(p) would
// return nil).
func (g *Guardian) IsLastPhaseForStory(p state.Phase) bool {
	return g.NextPhase(&p) == nil
}
