package loop

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bmad-assist/bmad-assist-go/internal/config"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
	"github.com/bmad-assist/bmad-assist-go/internal/phase"
	"github.com/bmad-assist/bmad-assist-go/internal/state"
)

// EventType identifies the kind of structured event the Runner emits during
// a run, for dashboard/SSE consumption.
type EventType string

const (
	EventWorkflowStatus  EventType = "workflow_status"
	EventStoryTransition EventType = "story_transition"
	EventStoryStatus     EventType = "story_status"
	EventLoopPaused      EventType = "LOOP_PAUSED"
	EventLoopResumed     EventType = "LOOP_RESUMED"
	EventLoopHalted      EventType = "loop_halted"
	EventLoopError       EventType = "loop_error"
)

// Event is a structured event the Runner emits to its events channel.
type Event struct {
	Type      EventType
	Phase     state.Phase
	Epic      string
	Story     string
	Message   string
	Timestamp time.Time
}

// StopReason explains why Run returned.
type StopReason string

const (
	StopShutdown       StopReason = "shutdown"
	StopProjectDone    StopReason = "project_complete"
	StopGuardianHalted StopReason = "guardian_halted"
)

// RunSummary is passed to notification sinks on normal termination.
type RunSummary struct {
	Reason           StopReason
	PhasesExecuted   int
	StoriesCompleted int
	HaltedPhase      state.Phase
	HaltedReason     string
}

// DebugStepper is consulted between phases when the Runner runs in DEBUG
// mode, implementing the "[n]ext / [i]nteractive / [q]uit" operator prompt.
// A nil Runner.Debug skips this entirely.
type DebugStepper interface {
	// Step blocks for operator input and returns the chosen action: "quit"
	// stops the loop; "next" and any other action continue to the next
	// phase. The Runner does not use freeformPrompt.
	Step(ctx context.Context) (action string, freeformPrompt string, err error)
}

// Runner drives the phase graph to completion for one project: acquire the
// state lock, install signal handlers, load state, and repeatedly determine
// the next phase via the Guardian, dispatch its handler, and persist state,
// honoring the pause flag file and a DEBUG-mode interactive stepper.
type Runner struct {
	Paths     *paths.Paths
	Store     *state.Store
	Config    *config.Config
	Guardian  *Guardian
	Phases    phase.Registry
	Logger    *log.Logger
	Events    chan<- Event
	NewInput  func(st *state.State) *phase.Input

	// SprintSync is invoked after every successful phase persist to trigger
	// the Sprint-Status Reconciler. May be nil.
	SprintSync func(ctx context.Context, st *state.State) error

	// Notify is invoked once on normal termination with the run summary.
	// May be nil.
	Notify func(summary RunSummary)

	// Debug, when non-nil, puts the Runner in DEBUG mode: DebugStepper.Step
	// is consulted after every phase.
	Debug DebugStepper

	// PausePollInterval is the interval the Runner polls the pause flag file.
	// Defaults to 1s.
	PausePollInterval time.Duration

	// Now returns the current time; overridable in tests.
	Now func() time.Time

	shutdown atomic.Bool
}

// Run drives stories through the phase graph until the backlog is
// exhausted, the Guardian halts on a failed phase, or shutdown is
// requested.
func (r *Runner) Run(ctx context.Context) (RunSummary, error) {
	now := r.nowFunc()

	if err := os.MkdirAll(r.Paths.ToolDir(), 0o755); err != nil {
		return RunSummary{}, fmt.Errorf("loop: creating tool directory: %w", err)
	}

	lock, err := state.Lock(r.Paths.LockFile())
	if err != nil {
		return RunSummary{}, fmt.Errorf("loop: acquiring state lock: %w", err)
	}
	defer lock.Unlock()

	stop := r.installSignalHandlers()
	defer stop()

	st, err := r.Store.Load()
	if err != nil {
		return RunSummary{}, fmt.Errorf("loop: loading state: %w", err)
	}
	if st == nil {
		st = state.New(now)
	}

	r.writeEffectiveConfigSnapshot(now)

	summary := RunSummary{}

	for {
		if r.shutdown.Load() {
			if err := r.Store.Save(st, r.nowFunc()); err != nil {
				return summary, fmt.Errorf("loop: persisting state on shutdown: %w", err)
			}
			summary.Reason = StopShutdown
			r.notify(summary)
			return summary, nil
		}

		if err := r.waitWhilePaused(ctx); err != nil {
			return summary, err
		}

		if st.CurrentStory == nil {
			epic, storyKey, found, err := nextBacklogStory(r.Paths, st)
			if err != nil {
				return summary, fmt.Errorf("loop: picking next backlog story: %w", err)
			}
			if !found {
				summary.Reason = StopProjectDone
				if err := r.Store.Save(st, r.nowFunc()); err != nil {
					return summary, fmt.Errorf("loop: persisting state at project completion: %w", err)
				}
				r.notify(summary)
				return summary, nil
			}
			storyStart := r.nowFunc()
			st.CurrentEpic = &epic
			st.CurrentStory = &storyKey
			st.StoryStartedAt = &storyStart
			r.emit(Event{
				Type:      EventStoryTransition,
				Epic:      epic.String(),
				Story:     storyKey,
				Message:   "started",
				Timestamp: storyStart,
			})
		}

		next := r.Guardian.NextPhase(st.CurrentPhase)
		if next == nil {
			// Unreachable in normal operation: completeStory always resets
			// CurrentPhase to nil before the next iteration picks a fresh
			// story, and CREATE_STORY is never skippable, so NextPhase(nil)
			// always yields a phase. A non-nil CurrentPhase landing here
			// means the Guardian's phase graph is misconfigured.
			return summary, fmt.Errorf("loop: no next phase for current state (phase graph misconfigured)")
		}

		phaseStart := r.nowFunc()
		st.CurrentPhase = next
		st.PhaseStartedAt = &phaseStart

		r.emit(Event{
			Type:      EventWorkflowStatus,
			Phase:     *next,
			Epic:      epicString(st),
			Story:     storyString(st),
			Message:   fmt.Sprintf("starting %s", *next),
			Timestamp: phaseStart,
		})

		handler, err := r.Phases.Get(*next)
		if err != nil {
			return summary, fmt.Errorf("loop: %w", err)
		}

		result, err := handler.Execute(ctx, r.NewInput(st))
		if err != nil {
			return summary, fmt.Errorf("loop: phase %s: %w", *next, err)
		}

		summary.PhasesExecuted++

		if r.Guardian.CheckAnomaly(result) == Halt {
			r.Logger.Error("guardian halted the loop", "phase", *next, "error", result.Error)
			r.emit(Event{
				Type:      EventLoopHalted,
				Phase:     *next,
				Epic:      epicString(st),
				Story:     storyString(st),
				Message:   result.Error,
				Timestamp: r.nowFunc(),
			})
			if saveErr := r.Store.Save(st, r.nowFunc()); saveErr != nil {
				r.Logger.Warn("loop: persisting state after halt failed", "error", saveErr)
			}
			summary.Reason = StopGuardianHalted
			summary.HaltedPhase = *next
			summary.HaltedReason = result.Error
			r.notify(summary)
			return summary, fmt.Errorf("loop: halted in phase %s: %s", *next, result.Error)
		}

		if r.Guardian.IsLastPhaseForStory(*next) {
			r.completeStory(st, summary.StoriesCompleted)
			summary.StoriesCompleted++
		}

		if err := r.Store.Save(st, r.nowFunc()); err != nil {
			return summary, fmt.Errorf("loop: persisting state after phase %s: %w", *next, err)
		}

		if r.SprintSync != nil {
			if err := r.SprintSync(ctx, st); err != nil {
				r.Logger.Warn("loop: sprint-status sync failed", "error", err)
			}
		}

		if r.Debug != nil {
			if err := r.stepDebug(ctx); err != nil {
				return summary, err
			}
		}
	}
}

// stepDebug consults the DebugStepper between phases. A "quit" action sets
// the shutdown flag; anything else (including "next") falls through to the
// next loop iteration.
func (r *Runner) stepDebug(ctx context.Context) error {
	action, _, err := r.Debug.Step(ctx)
	if err != nil {
		return fmt.Errorf("loop: debug stepper: %w", err)
	}
	if action == "quit" {
		r.shutdown.Store(true)
	}
	return nil
}

// completeStory marks the current story completed and clears the story
// cursor, so the next loop iteration calls nextBacklogStory to pick the
// following story (or discover the backlog is exhausted).
func (r *Runner) completeStory(st *state.State, storiesCompletedSoFar int) {
	if st.CurrentStory == nil {
		return
	}
	storyKey := *st.CurrentStory
	if !st.IsStoryCompleted(storyKey) {
		st.CompletedStories = append(st.CompletedStories, storyKey)
	}

	r.emit(Event{
		Type:      EventStoryTransition,
		Epic:      epicString(st),
		Story:     storyKey,
		Message:   "completed",
		Timestamp: r.nowFunc(),
	})
	r.emit(Event{
		Type:      EventStoryStatus,
		Epic:      epicString(st),
		Story:     storyKey,
		Message:   "done",
		Timestamp: r.nowFunc(),
	})

	st.CurrentStory = nil
	st.CurrentPhase = nil
	st.StoryStartedAt = nil
}

// waitWhilePaused blocks while the pause flag file exists, polling at
// PausePollInterval, emitting LOOP_PAUSED once on entry and LOOP_RESUMED
// once the flag is removed. Shutdown unblocks it immediately.
func (r *Runner) waitWhilePaused(ctx context.Context) error {
	path := r.Paths.PauseFlagFile()
	if !fileExists(path) {
		return nil
	}

	r.emit(Event{Type: EventLoopPaused, Message: "pause flag present", Timestamp: r.nowFunc()})

	interval := r.PausePollInterval
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if r.shutdown.Load() {
			return nil
		}
		if !fileExists(path) {
			r.emit(Event{Type: EventLoopResumed, Message: "pause flag removed", Timestamp: r.nowFunc()})
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// installSignalHandlers registers SIGINT/SIGTERM handlers that set the
// shutdown flag, checked between phases (never mid-phase). It returns a
// stop function the caller must defer.
func (r *Runner) installSignalHandlers() func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case <-ch:
			r.shutdown.Store(true)
		case <-done:
		}
	}()

	return func() {
		close(done)
		signal.Stop(ch)
	}
}

// writeEffectiveConfigSnapshot persists a copy of the resolved configuration
// for auditability. Failure is logged, not fatal.
func (r *Runner) writeEffectiveConfigSnapshot(now time.Time) {
	path := r.Paths.EffectiveConfigSnapshot(now.UTC().Format("2006-01-02T15:04:05.000000Z07:00"))
	data, err := encodeConfigSnapshot(r.Config)
	if err != nil {
		r.Logger.Warn("loop: encoding effective-config snapshot failed", "error", err)
		return
	}
	if err := writeSnapshot(path, data); err != nil {
		r.Logger.Warn("loop: writing effective-config snapshot failed", "error", err)
	}
}

func (r *Runner) notify(summary RunSummary) {
	if r.Notify != nil {
		r.Notify(summary)
	}
}

func (r *Runner) emit(ev Event) {
	if r.Events == nil {
		return
	}
	select {
	case r.Events <- ev:
	default:
	}
}

func (r *Runner) nowFunc() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func epicString(st *state.State) string {
	if st.CurrentEpic == nil {
		return ""
	}
	return st.CurrentEpic.String()
}

func storyString(st *state.State) string {
	if st.CurrentStory == nil {
		return ""
	}
	return *st.CurrentStory
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
