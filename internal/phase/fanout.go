package phase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bmad-assist/bmad-assist-go/internal/bench"
	"github.com/bmad-assist/bmad-assist-go/internal/bmaderr"
	"github.com/bmad-assist/bmad-assist-go/internal/provider"
)

// evaluatorOutcome is one evaluator's result from a fan-out run, collected
// under mu before consolidation.
type evaluatorOutcome struct {
	name string
	run  *provider.RunResult
	err  error
}

// MultiProviderHandler implements the multi-provider phases (VALIDATE_STORY,
// CODE_REVIEW): fan a compiled prompt out to every configured evaluator
// concurrently, persist each evaluator's raw artifact, and gate on a minimum
// number of successful evaluations. Per-evaluator failures never abort the
// fan-out; only an under-threshold success count fails the phase.
type MultiProviderHandler struct {
	// PhaseName labels this handler, e.g. "CODE_REVIEW".
	PhaseName string

	// Evaluators names the providers to invoke, in order. Normally sourced
	// from config.Config.Review.Evaluators.
	Evaluators []string

	// MinEvaluators is the minimum number of evaluators that must succeed
	// for the phase to be considered successful.
	MinEvaluators int

	// BuildPrompt produces the prompt for one evaluator. Most phases use the
	// same compiled prompt for every evaluator and ignore evaluatorName.
	BuildPrompt func(in *Input, evaluatorName string) (string, error)

	// ArtifactPath computes the path one evaluator's raw output is persisted
	// to. May be nil to skip persistence.
	ArtifactPath func(in *Input, evaluatorName string) (string, error)

	// Bench, when non-nil, records each evaluator's duration and outcome to
	// the benchmarking store.
	Bench *bench.Store

	TimeoutSec int
}

func (h *MultiProviderHandler) Execute(ctx context.Context, in *Input) (*Result, error) {
	if in == nil {
		return nil, fmt.Errorf("phase %s: nil input", h.PhaseName)
	}
	if len(h.Evaluators) == 0 {
		return Fail("%s: no evaluators configured", h.PhaseName), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(h.Evaluators))

	var mu sync.Mutex
	var outcomes []evaluatorOutcome

	for _, name := range h.Evaluators {
		name := name

		g.Go(func() error {
			run, err := h.runOne(gctx, in, name)

			mu.Lock()
			outcomes = append(outcomes, evaluatorOutcome{name: name, run: run, err: err})
			mu.Unlock()

			// Per-evaluator errors never abort the fan-out.
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("phase %s: evaluator workers: %w", h.PhaseName, err)
	}

	succeeded := 0
	artifacts := map[string]string{}
	metrics := map[string]SeverityCounts{}
	var failures []string

	for _, o := range outcomes {
		if o.err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", o.name, o.err))
			if in.Logger != nil {
				in.Logger.Warn("phase: evaluator failed", "phase", h.PhaseName, "evaluator", o.name, "error", o.err)
			}
			h.recordBench(in, o.name, 0, false)
			continue
		}
		succeeded++
		h.recordBench(in, o.name, o.run.Duration, o.run.Success())
		metrics[o.name] = ExtractSeverityCounts(o.run.Stdout)

		if h.ArtifactPath == nil {
			continue
		}
		path, err := h.ArtifactPath(in, o.name)
		if err != nil {
			if in.Logger != nil {
				in.Logger.Warn("phase: computing artifact path failed", "phase", h.PhaseName, "evaluator", o.name, "error", err)
			}
			continue
		}
		if err := writeArtifact(path, o.run.Stdout); err != nil {
			if in.Logger != nil {
				in.Logger.Warn("phase: persisting artifact failed", "phase", h.PhaseName, "evaluator", o.name, "error", err)
			}
			continue
		}
		artifacts[o.name] = path
	}

	if succeeded < h.MinEvaluators {
		err := &bmaderr.InsufficientReviewsError{Phase: h.PhaseName, Required: h.MinEvaluators, Succeeded: succeeded}
		return Fail("%s", err.Error()), nil
	}

	outputs := map[string]any{
		"evaluators_succeeded": succeeded,
		"evaluators_total":     len(h.Evaluators),
		"artifact_paths":       artifacts,
		"metrics_header":       FormatMarkdownHeader(metrics),
	}
	if len(failures) > 0 {
		outputs["evaluator_failures"] = failures
	}

	return Ok(outputs), nil
}

func (h *MultiProviderHandler) recordBench(in *Input, evaluatorName string, d time.Duration, success bool) {
	if h.Bench == nil {
		return
	}
	rec := bench.Record{Timestamp: time.Now(), Phase: h.PhaseName, Evaluator: evaluatorName, Provider: evaluatorName, Duration: d, Success: success}
	if err := h.Bench.Record(in.EpicID, rec); err != nil && in.Logger != nil {
		in.Logger.Warn("phase: bench recording failed", "phase", h.PhaseName, "evaluator", evaluatorName, "error", err)
	}
}

func (h *MultiProviderHandler) runOne(ctx context.Context, in *Input, evaluatorName string) (*provider.RunResult, error) {
	prompt, err := h.BuildPrompt(in, evaluatorName)
	if err != nil {
		return nil, fmt.Errorf("building prompt: %w", err)
	}

	prov, err := in.Providers.Get(evaluatorName)
	if err != nil {
		return nil, fmt.Errorf("resolving provider: %w", err)
	}

	opts := provider.RunOpts{Prompt: prompt, TimeoutSec: h.TimeoutSec}
	run, err := prov.Run(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("running provider: %w", err)
	}
	return run, nil
}
