package phase

import (
	"context"
	"fmt"
	"time"

	"github.com/bmad-assist/bmad-assist-go/internal/bench"
	"github.com/bmad-assist/bmad-assist-go/internal/provider"
)

// SingleProviderHandler implements the common shape of the single-provider
// phases (CREATE_STORY, DEV_STORY, ATDD, TEST_REVIEW): build one prompt,
// invoke one configured provider once, persist the raw output.
// RETROSPECTIVE has its own RetrospectiveHandler.
type SingleProviderHandler struct {
	// PhaseName labels this handler in outputs/logs, e.g. "DEV_STORY".
	PhaseName string

	// ProviderName selects which configured provider acts as the master for
	// this phase (usually "claude", but configurable per project).
	ProviderName string

	// BuildPrompt produces the compiled prompt for this invocation.
	BuildPrompt func(in *Input) (string, error)

	// ArtifactPath computes where the raw provider output is persisted.
	// May be nil, in which case nothing is persisted; NewRegistry leaves it
	// nil for ATDD, DEV_STORY and TEST_REVIEW.
	ArtifactPath func(in *Input) (string, error)

	// Bench, when non-nil, records this invocation's duration and outcome
	// to the benchmarking store. Recording failures are logged, never
	// fatal to the phase.
	Bench *bench.Store

	TimeoutSec int
}

func (h *SingleProviderHandler) Execute(ctx context.Context, in *Input) (*Result, error) {
	if in == nil {
		return nil, fmt.Errorf("phase %s: nil input", h.PhaseName)
	}

	prompt, err := h.BuildPrompt(in)
	if err != nil {
		return Fail("%s: building prompt: %v", h.PhaseName, err), nil
	}

	prov, err := in.Providers.Get(h.ProviderName)
	if err != nil {
		return Fail("%s: resolving provider %q: %v", h.PhaseName, h.ProviderName, err), nil
	}

	opts := provider.RunOpts{Prompt: prompt, TimeoutSec: h.TimeoutSec}
	result, runErr := prov.Run(ctx, opts)
	if runErr != nil {
		h.recordBench(in, 0, false)
		return Fail("%s: provider %s: %v", h.PhaseName, h.ProviderName, runErr), nil
	}
	h.recordBench(in, result.Duration, result.Success())

	outputs := map[string]any{
		"provider":   h.ProviderName,
		"session_id": result.SessionID,
		"duration":   result.Duration.String(),
	}

	if h.ArtifactPath != nil {
		path, err := h.ArtifactPath(in)
		if err != nil {
			if in.Logger != nil {
				in.Logger.Warn("phase: computing artifact path failed", "phase", h.PhaseName, "error", err)
			}
		} else {
			if err := writeArtifact(path, result.Stdout); err != nil {
				if in.Logger != nil {
					in.Logger.Warn("phase: persisting artifact failed", "phase", h.PhaseName, "error", err)
				}
			} else {
				outputs["artifact_path"] = path
			}
		}
	}

	return Ok(outputs), nil
}

func (h *SingleProviderHandler) recordBench(in *Input, d time.Duration, success bool) {
	if h.Bench == nil {
		return
	}
	rec := bench.Record{Timestamp: time.Now(), Phase: h.PhaseName, Evaluator: h.ProviderName, Provider: h.ProviderName, Duration: d, Success: success}
	if err := h.Bench.Record(in.EpicID, rec); err != nil && in.Logger != nil {
		in.Logger.Warn("phase: bench recording failed", "phase", h.PhaseName, "error", err)
	}
}
