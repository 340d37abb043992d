package phase

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bmad-assist/bmad-assist-go/internal/bench"
	"github.com/bmad-assist/bmad-assist-go/internal/jsonutil"
	"github.com/bmad-assist/bmad-assist-go/internal/provider"
)

// synthesisMetricsRe extracts the marker-delimited JSON metrics block a
// synthesis provider is instructed to emit, e.g.
// <synthesis-metrics>{"verdict":"pass","blocking_count":0}</synthesis-metrics>.
var synthesisMetricsRe = regexp.MustCompile(`(?s)<synthesis-metrics>(.*?)</synthesis-metrics>`)

// SynthesisHandler implements the synthesis phases (VALIDATE_STORY_SYNTHESIS,
// CODE_REVIEW_SYNTHESIS): embed every evaluator's raw output from the
// preceding fan-out as context, invoke the master provider once, extract its
// marker-delimited JSON metrics, and persist the report with a deterministic
// metrics header prepended.
type SynthesisHandler struct {
	PhaseName    string
	ProviderName string

	// LoadEvaluatorArtifacts returns the raw outputs produced by the
	// preceding fan-out phase, keyed by evaluator name.
	LoadEvaluatorArtifacts func(in *Input) (map[string]string, error)

	// BuildPrompt composes the synthesis prompt, embedding evaluatorOutputs
	// as context.
	BuildPrompt func(in *Input, evaluatorOutputs map[string]string) (string, error)

	// ArtifactPath computes where the synthesis report is persisted.
	ArtifactPath func(in *Input) (string, error)

	// Bench, when non-nil, records this invocation's duration and outcome.
	Bench *bench.Store

	TimeoutSec int
}

func (h *SynthesisHandler) Execute(ctx context.Context, in *Input) (*Result, error) {
	if in == nil {
		return nil, fmt.Errorf("phase %s: nil input", h.PhaseName)
	}

	evaluatorOutputs, err := h.LoadEvaluatorArtifacts(in)
	if err != nil {
		return Fail("%s: loading evaluator artifacts: %v", h.PhaseName, err), nil
	}
	if len(evaluatorOutputs) == 0 {
		return Fail("%s: no evaluator artifacts available to synthesize", h.PhaseName), nil
	}

	prompt, err := h.BuildPrompt(in, evaluatorOutputs)
	if err != nil {
		return Fail("%s: building prompt: %v", h.PhaseName, err), nil
	}

	prov, err := in.Providers.Get(h.ProviderName)
	if err != nil {
		return Fail("%s: resolving provider %q: %v", h.PhaseName, h.ProviderName, err), nil
	}

	run, err := prov.Run(ctx, provider.RunOpts{Prompt: prompt, TimeoutSec: h.TimeoutSec})
	if err != nil {
		h.recordBench(in, 0, false)
		return Fail("%s: provider %s: %v", h.PhaseName, h.ProviderName, err), nil
	}
	h.recordBench(in, run.Duration, run.Success())

	metrics, metricsErr := extractSynthesisMetrics(run.Stdout)
	if metricsErr != nil && in.Logger != nil {
		in.Logger.Warn("phase: synthesis metrics extraction failed", "phase", h.PhaseName, "error", metricsErr)
	}

	header := formatSynthesisHeader(metrics, evaluatorOutputs)
	report := header + "\n\n" + run.Stdout

	outputs := map[string]any{
		"provider":   h.ProviderName,
		"session_id": run.SessionID,
		"evaluators": sortedKeys(evaluatorOutputs),
	}
	if metrics != nil {
		outputs["metrics"] = metrics
	}

	if h.ArtifactPath != nil {
		path, pathErr := h.ArtifactPath(in)
		if pathErr != nil {
			if in.Logger != nil {
				in.Logger.Warn("phase: computing artifact path failed", "phase", h.PhaseName, "error", pathErr)
			}
		} else if writeErr := writeArtifact(path, report); writeErr != nil {
			if in.Logger != nil {
				in.Logger.Warn("phase: persisting artifact failed", "phase", h.PhaseName, "error", writeErr)
			}
		} else {
			outputs["artifact_path"] = path
		}
	}

	return Ok(outputs), nil
}

func (h *SynthesisHandler) recordBench(in *Input, d time.Duration, success bool) {
	if h.Bench == nil {
		return
	}
	rec := bench.Record{Timestamp: time.Now(), Phase: h.PhaseName, Evaluator: h.ProviderName, Provider: h.ProviderName, Duration: d, Success: success}
	if err := h.Bench.Record(in.EpicID, rec); err != nil && in.Logger != nil {
		in.Logger.Warn("phase: bench recording failed", "phase", h.PhaseName, "error", err)
	}
}

// extractSynthesisMetrics pulls the first <synthesis-metrics>{...} block out
// of raw and decodes it as a generic JSON object. A missing block is not an
// error; a present-but-malformed block is.
func extractSynthesisMetrics(raw string) (map[string]any, error) {
	m := synthesisMetricsRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, nil
	}
	// Providers occasionally wrap the marker's JSON in a code fence or leave
	// ANSI escapes from a colorized CLI around it; jsonutil.Extract handles
	// both before we decode, rather than failing on a strict Unmarshal.
	body, err := jsonutil.Extract(m[1])
	if err != nil {
		return nil, fmt.Errorf("extracting synthesis metrics block: %w", err)
	}
	var metrics map[string]any
	if err := json.Unmarshal(body, &metrics); err != nil {
		return nil, fmt.Errorf("decoding synthesis metrics block: %w", err)
	}
	return metrics, nil
}

// formatSynthesisHeader renders a deterministic Markdown header summarizing
// the synthesis run: which evaluators fed it and, when present, the
// extracted metrics block.
func formatSynthesisHeader(metrics map[string]any, evaluatorOutputs map[string]string) string {
	var b strings.Builder
	b.WriteString("## Synthesis\n\n")
	fmt.Fprintf(&b, "Evaluators: %s\n", strings.Join(sortedKeys(evaluatorOutputs), ", "))

	if metrics != nil {
		keys := make([]string, 0, len(metrics))
		for k := range metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, metrics[k])
		}
	}

	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
