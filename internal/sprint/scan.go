package sprint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

// ScanStory builds Evidence for one EPIC_STORY/MODULE_STORY key by checking
// the artifacts the inference hierarchy references: the story file's own
// Status: field, a master (or any) code-review artifact, a validation
// report, and the story file's mere existence.
func ScanStory(p *paths.Paths, key string, evaluators []string, master string) (Evidence, error) {
	epicStr, storyNum, slug, err := splitStoryKey(key)
	if err != nil {
		return Evidence{}, err
	}
	epic := paths.ParseEpicID(epicStr)

	var ev Evidence

	storyPath := p.StoryFile(epic, storyNum, slug)
	if fileExists(storyPath) {
		ev.HasStoryFile = true
		status, err := ExtractStoryFileStatus(storyPath)
		if err != nil {
			return Evidence{}, fmt.Errorf("sprint: reading story file %q: %w", storyPath, err)
		}
		ev.ExplicitStatus = status
	}

	if master != "" && fileExists(p.CodeReviewFile(epic, storyNum, master)) {
		ev.HasMasterCodeReview = true
	}
	if fileExists(p.CodeReviewFile(epic, storyNum, master+"-synthesis")) {
		ev.HasMasterCodeReview = true
	}
	for _, evaluator := range evaluators {
		if fileExists(p.CodeReviewFile(epic, storyNum, evaluator)) {
			ev.HasAnyCodeReview = true
		}
		if fileExists(p.ValidationFile(epic, storyNum, evaluator)) {
			ev.HasValidationReport = true
		}
	}

	return ev, nil
}

// splitStoryKey parses "{epic}-{story}-{slug}" into its parts. epic may be
// numeric or a tag, so only the story-number segment is required to parse
// as an integer.
func splitStoryKey(key string) (epic string, story int, slug string, err error) {
	parts := strings.SplitN(key, "-", 3)
	if len(parts) < 3 {
		return "", 0, "", fmt.Errorf("sprint: malformed story key %q", key)
	}
	n, convErr := strconv.Atoi(parts[1])
	if convErr != nil {
		return "", 0, "", fmt.Errorf("sprint: malformed story key %q: story segment not numeric: %w", key, convErr)
	}
	return parts[0], n, parts[2], nil
}
