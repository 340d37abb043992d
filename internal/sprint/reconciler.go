package sprint

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bmad-assist/bmad-assist-go/internal/config"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
	"github.com/bmad-assist/bmad-assist-go/internal/state"
)

// Reconciler is the sole writer of sprint-status.yaml. It runs the three-way
// merge (existing ∪ generated ∪ artifact evidence), decides whether the
// result needs operator confirmation based on divergence, and writes the
// merged document atomically.
type Reconciler struct {
	Paths  *paths.Paths
	Config *config.Config
	Logger *log.Logger
	Dialog Dialog
	Now    func() time.Time

	// syncing guards against reentrant Sync calls: the reconciler's own
	// write is not itself a State save, but a caller wiring Sync as a
	// post-save callback could otherwise recurse if that callback chain
	// loops back here.
	syncing atomic.Bool
}

// NewReconciler builds a Reconciler. dialog may be nil, in which case a
// DashboardDialog (auto-decline) is used for any high-divergence merge.
func NewReconciler(cfg *config.Config, p *paths.Paths, logger *log.Logger, dialog Dialog) *Reconciler {
	if dialog == nil {
		dialog = DashboardDialog{}
	}
	return &Reconciler{Paths: p, Config: cfg, Logger: logger, Dialog: dialog}
}

// Sync runs one full reconciliation pass against the current State. It is
// non-fatal by design for most failure modes (missing epic docs, a
// malformed individual story file are logged and skipped) but returns an
// error for I/O failures reading or writing sprint-status.yaml itself.
func (r *Reconciler) Sync(ctx context.Context, st *state.State) error {
	if !r.syncing.CompareAndSwap(false, true) {
		r.Logger.Warn("sprint: Sync called reentrantly, skipping")
		return nil
	}
	defer r.syncing.Store(false)

	path := r.Paths.SprintStatusFile()

	var existing *SprintStatus
	if fileExists(path) {
		var err error
		existing, err = Parse(path)
		if err != nil {
			return fmt.Errorf("sprint: parsing %q: %w", path, err)
		}
	} else {
		existing = New()
	}

	generatedKeys, err := GenerateExpectedKeys(r.Paths, st)
	if err != nil {
		return fmt.Errorf("sprint: generating expected keys: %w", err)
	}
	for _, e := range existing.Entries {
		if e.Type == EntryEpicStory || e.Type == EntryModuleStory {
			generatedKeys[e.Key] = true
		}
	}

	evidence := map[string]Evidence{}
	master := r.Config.Project.Master
	evaluators := r.Config.Review.Evaluators
	for key := range generatedKeys {
		ev, err := ScanStory(r.Paths, key, evaluators, master)
		if err != nil {
			r.Logger.Warn("sprint: scanning story evidence failed, skipping", "key", key, "error", err)
			continue
		}
		evidence[key] = ev
	}

	res := Reconcile(existing, generatedKeys, evidence)
	res.Merged.Generated = r.now().UTC().Format(time.RFC3339)
	if res.Merged.Project == "" {
		res.Merged.Project = r.Config.Project.Name
	}

	r.flagUndocumentedEpics(res)

	total := len(res.Merged.Entries)
	ratio := DivergenceRatio(len(res.Changes), total)
	mode := DecideMode(ratio, r.threshold())

	if mode == RepairInteractive && len(res.Changes) > 0 {
		proceed, err := r.Dialog.Confirm(ctx, SummarizeChanges(res))
		if err != nil {
			return fmt.Errorf("sprint: repair confirmation: %w", err)
		}
		if !proceed {
			r.Logger.Warn("sprint: high-divergence reconciliation declined, leaving sprint-status unchanged",
				"ratio", ratio, "changes", len(res.Changes))
			return nil
		}
	}

	if err := WriteAtomic(path, res.Merged, existing); err != nil {
		return fmt.Errorf("sprint: writing %q: %w", path, err)
	}

	if len(res.Removed) > 0 {
		r.Logger.Warn("sprint: detected stories removed from epic docs", "keys", res.Removed)
	}

	return nil
}

// flagUndocumentedEpics warns about epics carrying status entries but no
// corresponding epic doc under docs/epics, without touching EpicMeta: a
// missing doc is as likely a not-yet-written epic brief as a stale entry,
// so this only flags, it never removes.
func (r *Reconciler) flagUndocumentedEpics(res *Result) {
	docs, err := ReadEpicDocs(r.Paths)
	if err != nil {
		r.Logger.Warn("sprint: reading epic docs failed, skipping undocumented-epic check", "error", err)
		return
	}
	known := map[string]bool{}
	for _, id := range epicIDsFromDocs(docs) {
		known[id] = true
	}
	for epicKey := range res.Merged.EpicMeta {
		id := epicKey
		if len(id) > len("epic-") {
			id = epicKey[len("epic-"):]
		}
		if !known[id] {
			r.Logger.Warn("sprint: epic has status entries but no epic doc", "epic", id)
		}
	}
}

func (r *Reconciler) threshold() float64 {
	t := r.Config.Sprint.DivergenceThreshold
	if t <= 0 {
		return 0.3
	}
	return t
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
