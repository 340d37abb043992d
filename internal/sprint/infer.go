package sprint

import (
	"os"
	"regexp"
	"strings"
)

// Normalized story status values.
const (
	StatusBacklog    = "backlog"
	StatusReadyForDev = "ready-for-dev"
	StatusInProgress = "in-progress"
	StatusReview     = "review"
	StatusDone       = "done"
)

// Evidence is the artifact-derived evidence scanned for one story, feeding
// the inference hierarchy below.
type Evidence struct {
	// ExplicitStatus is the story file's own Status: field, normalized, or
	// "" if the story file has no such field (or doesn't exist).
	ExplicitStatus string

	HasMasterCodeReview bool
	HasAnyCodeReview    bool
	HasValidationReport bool
	HasStoryFile        bool
}

// InferStatus applies the six-tier inference hierarchy: the story file's own
// Status: field wins outright; failing that, progressively weaker artifact
// evidence; failing all evidence, the existing on-disk value, or "backlog"
// if there was none.
func InferStatus(ev Evidence, existing string) string {
	switch {
	case ev.ExplicitStatus != "":
		return ev.ExplicitStatus
	case ev.HasMasterCodeReview:
		return StatusDone
	case ev.HasAnyCodeReview:
		return StatusReview
	case ev.HasValidationReport:
		return StatusReadyForDev
	case ev.HasStoryFile:
		return StatusInProgress
	case existing != "":
		return existing
	default:
		return StatusBacklog
	}
}

var statusFieldRe = regexp.MustCompile(`(?mi)^\s*Status:\s*(.+?)\s*$`)

// normalizations maps the free-form spellings a story author might write
// after "Status:" to the canonical value set.
var normalizations = map[string]string{
	"backlog":       StatusBacklog,
	"ready for dev": StatusReadyForDev,
	"ready-for-dev": StatusReadyForDev,
	"in progress":   StatusInProgress,
	"in-progress":   StatusInProgress,
	"review":        StatusReview,
	"in review":     StatusReview,
	"done":          StatusDone,
	"complete":      StatusDone,
	"completed":     StatusDone,
}

// ExtractStoryFileStatus reads a story markdown file and returns its
// normalized Status: field, or "" if the file has no recognizable Status:
// line. A normalization miss (an unrecognized spelling) also returns "",
// since the top inference tier requires the field to resolve to one of
// the five canonical values to be authoritative.
func ExtractStoryFileStatus(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	m := statusFieldRe.FindStringSubmatch(string(data))
	if m == nil {
		return "", nil
	}
	normalized, ok := normalizations[strings.ToLower(strings.TrimSpace(m[1]))]
	if !ok {
		return "", nil
	}
	return normalized, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
