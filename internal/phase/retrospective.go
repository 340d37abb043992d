package phase

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/bmad-assist/bmad-assist-go/internal/bench"
	"github.com/bmad-assist/bmad-assist-go/internal/provider"
)

// retroReportRe extracts the marker-delimited report body a retrospective
// provider is instructed to wrap its output in.
var retroReportRe = regexp.MustCompile(`(?s)<retrospective-report>(.*?)</retrospective-report>`)

// RetrospectiveHandler implements the RETROSPECTIVE phase: an optional
// non-blocking testarch trace pre-step, a single master-provider invocation,
// marker-delimited report extraction, and a save to
// retrospectives/epic-{id}-retro-{YYYYMMDD}.md that overwrites any existing
// file for the same day with a logged warning.
type RetrospectiveHandler struct {
	ProviderName string

	// TestarchTrace is an optional non-blocking pre-step (e.g. a test
	// architecture trace run) whose output is embedded as extra context.
	// A nil field or a returned error skips it without failing the phase.
	TestarchTrace func(ctx context.Context, in *Input) (string, error)

	BuildPrompt func(in *Input, traceContext string) (string, error)

	// ArtifactPath computes the retrospective file's path, normally
	// in.Paths.RetrospectiveFile(in.EpicID, yyyymmdd) for the handler's Now().
	ArtifactPath func(in *Input, now time.Time) (string, error)

	// Now returns the current time; overridable in tests. Defaults to
	// time.Now when nil.
	Now func() time.Time

	// Bench, when non-nil, records this invocation's duration and outcome.
	Bench *bench.Store

	TimeoutSec int
}

func (h *RetrospectiveHandler) Execute(ctx context.Context, in *Input) (*Result, error) {
	if in == nil {
		return nil, fmt.Errorf("retrospective: nil input")
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	var traceContext string
	if h.TestarchTrace != nil {
		trace, err := h.TestarchTrace(ctx, in)
		if err != nil {
			if in.Logger != nil {
				in.Logger.Warn("retrospective: testarch trace step failed, continuing without it", "error", err)
			}
		} else {
			traceContext = trace
		}
	}

	prompt, err := h.BuildPrompt(in, traceContext)
	if err != nil {
		return Fail("retrospective: building prompt: %v", err), nil
	}

	prov, err := in.Providers.Get(h.ProviderName)
	if err != nil {
		return Fail("retrospective: resolving provider %q: %v", h.ProviderName, err), nil
	}

	run, err := prov.Run(ctx, provider.RunOpts{Prompt: prompt, TimeoutSec: h.TimeoutSec})
	if err != nil {
		h.recordBench(in, 0, false)
		return Fail("retrospective: provider %s: %v", h.ProviderName, err), nil
	}
	h.recordBench(in, run.Duration, run.Success())

	report := extractRetroReport(run.Stdout)

	outputs := map[string]any{
		"provider":   h.ProviderName,
		"session_id": run.SessionID,
	}

	if h.ArtifactPath != nil {
		path, err := h.ArtifactPath(in, now())
		if err != nil {
			if in.Logger != nil {
				in.Logger.Warn("retrospective: computing artifact path failed", "error", err)
			}
		} else {
			if _, statErr := os.Stat(path); statErr == nil && in.Logger != nil {
				in.Logger.Warn("retrospective: overwriting existing retrospective", "path", path)
			}
			if err := writeArtifact(path, report); err != nil {
				if in.Logger != nil {
					in.Logger.Warn("retrospective: persisting report failed", "error", err)
				}
			} else {
				outputs["artifact_path"] = path
			}
		}
	}

	return Ok(outputs), nil
}

func (h *RetrospectiveHandler) recordBench(in *Input, d time.Duration, success bool) {
	if h.Bench == nil {
		return
	}
	rec := bench.Record{Timestamp: time.Now(), Phase: "RETROSPECTIVE", Evaluator: h.ProviderName, Provider: h.ProviderName, Duration: d, Success: success}
	if err := h.Bench.Record(in.EpicID, rec); err != nil && in.Logger != nil {
		in.Logger.Warn("retrospective: bench recording failed", "error", err)
	}
}

// extractRetroReport returns the content of the first <retrospective-report>
// block, or the raw output verbatim if the provider didn't wrap it.
func extractRetroReport(raw string) string {
	m := retroReportRe.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	return strings.TrimSpace(m[1])
}
