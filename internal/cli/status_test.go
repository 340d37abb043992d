package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmad-assist/bmad-assist-go/internal/paths"
	"github.com/bmad-assist/bmad-assist-go/internal/state"
)

func TestStatusCmd_Registered(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"status"})
	require.NoError(t, err)
	assert.Equal(t, "status", cmd.Use)
}

func TestRenderStatusSummary_FreshState(t *testing.T) {
	st := state.New(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	out := renderStatusSummary(st)
	assert.Contains(t, out, "Epic: (none)")
	assert.Contains(t, out, "Story: (none)")
	assert.Contains(t, out, "0% (0/")
}

func TestRenderStatusSummary_InProgress(t *testing.T) {
	st := state.New(time.Now())
	epic := paths.NewEpicNum(3)
	story := "3.2"
	phase := state.PhaseDevStory
	st.CurrentEpic = &epic
	st.CurrentStory = &story
	st.CurrentPhase = &phase
	st.CompletedEpics = []paths.EpicID{paths.NewEpicNum(1), paths.NewEpicNum(2)}
	st.CompletedStories = []string{"1.1", "2.1"}

	out := renderStatusSummary(st)
	assert.Contains(t, out, "Epic: 3")
	assert.Contains(t, out, "Story: 3.2")
	assert.Contains(t, out, "Phase: DEV_STORY")
	assert.Contains(t, out, "Completed epics: 1, 2")
	assert.Contains(t, out, "Completed stories: 1.1, 2.1")
}

func TestRenderStatusJSON_EncodesCurrentAndCompleted(t *testing.T) {
	st := state.New(time.Now())
	epic := paths.NewEpicNum(5)
	story := "5.1"
	phase := state.PhaseCodeReview
	st.CurrentEpic = &epic
	st.CurrentStory = &story
	st.CurrentPhase = &phase
	st.CompletedEpics = []paths.EpicID{paths.NewEpicNum(4)}

	var buf bytes.Buffer
	require.NoError(t, renderStatusJSON(&buf, st))

	var out statusOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "5", out.CurrentEpic)
	assert.Equal(t, "5.1", out.CurrentStory)
	assert.Equal(t, "CODE_REVIEW", out.CurrentPhase)
	assert.Equal(t, state.Ordinal(state.PhaseCodeReview)+1, out.PhaseOrdinal)
	assert.Equal(t, len(state.Ordered), out.PhaseTotal)
	assert.Equal(t, []string{"4"}, out.CompletedEpics)
}

func TestRenderStatusJSON_EmptyStateOmitsCurrentFields(t *testing.T) {
	st := state.New(time.Now())

	var buf bytes.Buffer
	require.NoError(t, renderStatusJSON(&buf, st))
	assert.NotContains(t, buf.String(), `"current_epic"`)
	assert.NotContains(t, buf.String(), `"current_phase"`)
}
