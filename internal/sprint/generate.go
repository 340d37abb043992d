package sprint

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmad-assist/bmad-assist-go/internal/paths"
	"github.com/bmad-assist/bmad-assist-go/internal/state"
)

var storyFileNameRe = regexp.MustCompile(`^(.+)\.md$`)

// GenerateExpectedKeys derives the "generated expectation" input to the
// three-way merge: the set of EPIC_STORY and MODULE_STORY keys that should
// exist, from story files on disk and tool State (the current and completed
// stories, in case an artifact hasn't been written yet). Epic docs are not
// read here. Unlike
// ScanStory, this does not check artifact content — only membership.
//
// Grounded on the story-file naming convention in paths.Paths.StoryFile
// ("{E}-{S}-{slug}.md"): every file under implementation-artifacts matching
// that shape is a generated key, regardless of whether sprint-status
// already mentions it.
func GenerateExpectedKeys(p *paths.Paths, st *state.State) (map[string]bool, error) {
	keys := map[string]bool{}

	matches, err := filepath.Glob(filepath.Join(p.ImplementationArtifactsDir(), "*.md"))
	if err != nil {
		return nil, fmt.Errorf("sprint: globbing story files: %w", err)
	}
	for _, m := range matches {
		base := filepath.Base(m)
		sub := storyFileNameRe.FindStringSubmatch(base)
		if sub == nil {
			continue
		}
		key := sub[1]
		if classifyEntry(key) == EntryEpicStory || classifyEntry(key) == EntryModuleStory {
			keys[key] = true
		}
	}

	if st != nil {
		if st.CurrentStory != nil && *st.CurrentStory != "" {
			keys[*st.CurrentStory] = true
		}
		for _, s := range st.CompletedStories {
			keys[s] = true
		}
	}

	return keys, nil
}

// epicIDsFromDocs collects the distinct epic identifiers named by epic
// docs, in the order first seen.
func epicIDsFromDocs(docs []EpicDoc) []string {
	seen := map[string]bool{}
	var ids []string
	for _, d := range docs {
		id := strings.TrimSpace(d.EpicNum)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
