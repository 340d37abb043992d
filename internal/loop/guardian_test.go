package loop

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bmad-assist/bmad-assist-go/internal/phase"
	"github.com/bmad-assist/bmad-assist-go/internal/state"
)

func TestGuardian_NextPhase_StartsAtBeginning(t *testing.T) {
	g := &Guardian{}
	next := g.NextPhase(nil)
	require := assert.New(t)
	require.NotNil(next)
	require.Equal(state.PhaseCreateStory, *next)
}

func TestGuardian_NextPhase_SkipsOptionalPhasesWhenDisabled(t *testing.T) {
	g := &Guardian{TestarchEnabled: false, QAEnabled: false}
	current := state.PhaseValidateStorySynthesis
	next := g.NextPhase(&current)
	assert.Equal(t, state.PhaseDevStory, *next)
}

func TestGuardian_NextPhase_IncludesOptionalPhasesWhenEnabled(t *testing.T) {
	g := &Guardian{TestarchEnabled: true}
	current := state.PhaseValidateStorySynthesis
	next := g.NextPhase(&current)
	assert.Equal(t, state.PhaseATDD, *next)
}

func TestGuardian_NextPhase_NilAfterRetrospectiveWhenQADisabled(t *testing.T) {
	g := &Guardian{QAEnabled: false}
	current := state.PhaseRetrospective
	next := g.NextPhase(&current)
	assert.Nil(t, next)
}

func TestGuardian_NextPhase_ReachesQAWhenEnabled(t *testing.T) {
	g := &Guardian{QAEnabled: true}
	current := state.PhaseRetrospective
	next := g.NextPhase(&current)
	assert.Equal(t, state.PhaseQAPlanGenerate, *next)
}

func TestGuardian_NextPhase_NilAtEndOfGraph(t *testing.T) {
	g := &Guardian{QAEnabled: true}
	current := state.PhaseQARemediate
	next := g.NextPhase(&current)
	assert.Nil(t, next)
}

func TestGuardian_NextPhase_UnknownPhaseReturnsNil(t *testing.T) {
	g := &Guardian{}
	current := state.Phase("NOT_A_PHASE")
	next := g.NextPhase(&current)
	assert.Nil(t, next)
}

func TestGuardian_CheckAnomaly(t *testing.T) {
	g := &Guardian{}
	assert.Equal(t, Continue, g.CheckAnomaly(&phase.Result{Success: true}))
	assert.Equal(t, Halt, g.CheckAnomaly(&phase.Result{Success: false}))
	assert.Equal(t, Halt, g.CheckAnomaly(nil))
}

func TestGuardian_IsLastPhaseForStory(t *testing.T) {
	g := &Guardian{QAEnabled: false}
	assert.True(t, g.IsLastPhaseForStory(state.PhaseRetrospective))
	assert.False(t, g.IsLastPhaseForStory(state.PhaseCreateStory))
}
