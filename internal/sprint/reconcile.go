package sprint

import "sort"

// ConflictResolution records which input won a merged EPIC_STORY entry's
// final value.
type ConflictResolution int

const (
	ResolvedUnchanged ConflictResolution = iota
	ResolvedExplicitFile
	ResolvedEvidence
	ResolvedExisting
	ResolvedDefault
)

func (r ConflictResolution) String() string {
	switch r {
	case ResolvedExplicitFile:
		return "explicit-file"
	case ResolvedEvidence:
		return "evidence"
	case ResolvedExisting:
		return "existing"
	case ResolvedDefault:
		return "default"
	default:
		return "unchanged"
	}
}

// StatusChange records one entry's value changing during reconciliation.
type StatusChange struct {
	Key        string
	Type       EntryType
	Previous   string
	New        string
	Resolution ConflictResolution
}

// Result is the outcome of a reconciliation pass.
type Result struct {
	Merged  *SprintStatus
	Changes []StatusChange
	Removed []string
}

// Reconcile performs the three-way merge: existing entries are the
// baseline; generatedKeys is the set of EPIC_STORY/
// MODULE_STORY keys that should exist; evidence supplies artifact-inferred
// status for each such key. Non-EPIC_STORY entries (STANDALONE,
// MODULE_STORY, UNKNOWN, RETROSPECTIVE) pass through untouched.
// EPIC_META is recalculated fresh from the merged story statuses.
func Reconcile(existing *SprintStatus, generatedKeys map[string]bool, evidence map[string]Evidence) *Result {
	res := &Result{Merged: &SprintStatus{
		Generated:     existing.Generated,
		Project:       existing.Project,
		StoryLocation: existing.StoryLocation,
		EpicMeta:      map[string]string{},
	}}

	existingByKey := map[string]Entry{}
	for _, e := range existing.Entries {
		existingByKey[e.Key] = e
	}

	order := mergedKeyOrder(existing.Entries, generatedKeys)

	for _, key := range order {
		prevEntry, hadPrev := existingByKey[key]
		entryType := classifyEntry(key)
		if hadPrev {
			entryType = prevEntry.Type
		}

		preserve := entryType != EntryEpicStory && entryType != EntryModuleStory
		if entryType == EntryModuleStory && hadPrev {
			preserve = true
		}
		if preserve {
			// Preserve byte-for-byte: only EPIC_STORY entries, and
			// MODULE_STORY keys with no existing entry, are merged.
			if hadPrev {
				res.Merged.Entries = append(res.Merged.Entries, prevEntry)
			}
			continue
		}

		newValue, resolution := mergeStoryEntry(prevEntry.Value, hadPrev, evidence[key])
		res.Merged.Entries = append(res.Merged.Entries, Entry{Key: key, Value: newValue, Type: entryType})

		if !hadPrev || prevEntry.Value != newValue {
			res.Changes = append(res.Changes, StatusChange{
				Key: key, Type: entryType, Previous: prevEntry.Value, New: newValue, Resolution: resolution,
			})
		}
	}

	for key := range existingByKey {
		t := existingByKey[key].Type
		if (t == EntryEpicStory || t == EntryModuleStory) && !generatedKeys[key] {
			res.Removed = append(res.Removed, key)
		}
	}
	sort.Strings(res.Removed)

	res.Merged.EpicMeta = recalculateEpicMeta(res.Merged.Entries)

	return res
}

// mergedKeyOrder preserves existing document order, appending any
// generated-only keys (new stories with no prior entry) at the end in
// sorted order for determinism.
func mergedKeyOrder(existing []Entry, generatedKeys map[string]bool) []string {
	var order []string
	seen := map[string]bool{}
	for _, e := range existing {
		order = append(order, e.Key)
		seen[e.Key] = true
	}

	var fresh []string
	for k := range generatedKeys {
		if !seen[k] {
			fresh = append(fresh, k)
		}
	}
	sort.Strings(fresh)
	order = append(order, fresh...)
	return order
}

// mergeStoryEntry resolves one EPIC_STORY/MODULE_STORY entry's value:
// explicit story-file status wins outright; failing that, weaker artifact
// evidence; failing all evidence, the existing value; failing that, the
// default "backlog".
func mergeStoryEntry(existingValue string, hadExisting bool, ev Evidence) (string, ConflictResolution) {
	switch {
	case ev.ExplicitStatus != "":
		return ev.ExplicitStatus, ResolvedExplicitFile
	case ev.HasMasterCodeReview || ev.HasAnyCodeReview || ev.HasValidationReport || ev.HasStoryFile:
		inferred := InferStatus(ev, existingValue)
		return inferred, ResolvedEvidence
	case hadExisting && existingValue != "":
		return existingValue, ResolvedExisting
	default:
		return StatusBacklog, ResolvedDefault
	}
}

// recalculateEpicMeta derives each epic's overall status from its merged
// story entries: "done" when every story under that epic is done or
// deferred, "in-progress" otherwise (as long as at least one story exists).
func recalculateEpicMeta(entries []Entry) map[string]string {
	type tally struct {
		total, doneOrDeferred int
	}
	byEpic := map[string]*tally{}

	for _, e := range entries {
		if e.Type != EntryEpicStory && e.Type != EntryModuleStory {
			continue
		}
		epic := epicOfStoryKey(e.Key)
		t, ok := byEpic[epic]
		if !ok {
			t = &tally{}
			byEpic[epic] = t
		}
		t.total++
		if e.Value == StatusDone || e.Value == "deferred" {
			t.doneOrDeferred++
		}
	}

	meta := map[string]string{}
	for epic, t := range byEpic {
		key := "epic-" + epic
		if t.total > 0 && t.doneOrDeferred == t.total {
			meta[key] = StatusDone
		} else {
			meta[key] = StatusInProgress
		}
	}
	return meta
}
