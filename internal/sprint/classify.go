// Package sprint implements the Sprint-Status Reconciler: parsing the
// authoritative sprint-status.yaml ledger, inferring story status from
// on-disk artifacts, three-way merging that evidence against epic docs and
// tool State, and writing the result back with comments and ordering
// preserved.
//
// Grounded on _examples/MBFrosty-BMAD-Runner/internal/status/parser.go's
// yaml.Node-based ordered-entry extraction, extended here into a full
// round-trip reader/writer since the Reconciler must also rewrite the
// document rather than only read it.
package sprint

import "regexp"

// EntryType classifies a sprint-status entry key, driving how the
// reconciler treats it during merge: only EPIC_STORY entries are subject to
// evidence-based conflict resolution, EPIC_META is always recalculated, and
// everything else is preserved untouched.
type EntryType int

const (
	EntryUnknown EntryType = iota
	EntryEpicStory
	EntryEpicMeta
	EntryModuleStory
	EntryRetrospective
	EntryStandalone
)

func (t EntryType) String() string {
	switch t {
	case EntryEpicStory:
		return "EPIC_STORY"
	case EntryEpicMeta:
		return "EPIC_META"
	case EntryModuleStory:
		return "MODULE_STORY"
	case EntryRetrospective:
		return "RETROSPECTIVE"
	case EntryStandalone:
		return "STANDALONE"
	default:
		return "UNKNOWN"
	}
}

var (
	epicStoryRe    = regexp.MustCompile(`^\d+-\d+-.+$`)
	moduleStoryRe  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*-\d+-.+$`)
	epicMetaRe     = regexp.MustCompile(`^epic-(\d+|[A-Za-z][A-Za-z0-9_-]*)$`)
	retrospectiveRe = regexp.MustCompile(`^epic-(\d+|[A-Za-z][A-Za-z0-9_-]*)-retro(spective)?$`)
	standaloneRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

// classifyEntry determines an entry's type from its key, highest-specificity
// pattern first: a retrospective key also matches the looser epic-meta
// pattern, so it must be checked first.
func classifyEntry(key string) EntryType {
	switch {
	case retrospectiveRe.MatchString(key):
		return EntryRetrospective
	case epicMetaRe.MatchString(key):
		return EntryEpicMeta
	case epicStoryRe.MatchString(key):
		return EntryEpicStory
	case moduleStoryRe.MatchString(key):
		return EntryModuleStory
	case standaloneRe.MatchString(key):
		return EntryStandalone
	default:
		return EntryUnknown
	}
}

// EpicOfStoryKey extracts the epic identifier prefix from an EPIC_STORY or
// MODULE_STORY key, e.g. "3-2-add-login" → "3", "testarch-1-trace" →
// "testarch".
func EpicOfStoryKey(key string) string {
	for i, r := range key {
		if r == '-' {
			return key[:i]
		}
	}
	return key
}

// epicOfStoryKey is the package-internal alias used by callers within
// sprint; kept separate from the exported name so external callers (the
// Loop Runner's backlog picker) have a stable entry point.
func epicOfStoryKey(key string) string {
	return EpicOfStoryKey(key)
}
