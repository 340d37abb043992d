package loop

import (
	"fmt"

	"github.com/bmad-assist/bmad-assist-go/internal/paths"
	"github.com/bmad-assist/bmad-assist-go/internal/sprint"
	"github.com/bmad-assist/bmad-assist-go/internal/state"
)

// nextBacklogStory picks the next story for the Runner to work, by scanning
// sprint-status.yaml's development_status entries in document order for the
// first EPIC_STORY/MODULE_STORY key that is neither "done"/"deferred" nor
// already recorded in st.CompletedStories. found is false once every known
// story is accounted for (or no sprint-status.yaml exists yet), which is
// how the Runner tells "start the next story" apart from "project
// complete" without relying on the Guardian's per-story phase-ordinal walk.
func nextBacklogStory(p *paths.Paths, st *state.State) (epic paths.EpicID, storyKey string, found bool, err error) {
	path := p.SprintStatusFile()
	if !fileExists(path) {
		return paths.EpicID{}, "", false, nil
	}

	ss, err := sprint.Parse(path)
	if err != nil {
		return paths.EpicID{}, "", false, fmt.Errorf("loop: reading sprint status: %w", err)
	}

	for _, e := range ss.Entries {
		if e.Type != sprint.EntryEpicStory && e.Type != sprint.EntryModuleStory {
			continue
		}
		if e.Value == sprint.StatusDone || e.Value == "deferred" {
			continue
		}
		if st.IsStoryCompleted(e.Key) {
			continue
		}
		return paths.ParseEpicID(sprint.EpicOfStoryKey(e.Key)), e.Key, true, nil
	}

	return paths.EpicID{}, "", false, nil
}
