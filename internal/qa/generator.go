package qa

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bmad-assist/bmad-assist-go/internal/paths"
	"github.com/bmad-assist/bmad-assist-go/internal/provider"
)

// planReportRe extracts the marker-delimited plan body a generator prompt
// instructs the provider to wrap its output in, mirroring the retrospective
// handler's <retrospective-report> convention.
var planReportRe = regexp.MustCompile(`(?s)<qa-plan>(.*?)</qa-plan>`)

// Generator produces an epic's E2E test plan by invoking the master
// provider with the epic's content, any traceability matrix already on
// disk, and optional extra docs (UX specs, test-design notes) embedded for
// context.
type Generator struct {
	Paths        *paths.Paths
	Providers    *provider.Registry
	ProviderName string
	TimeoutSec   int
	Logger       *log.Logger

	// ExtraDocs optionally loads additional supporting documents (UX specs,
	// test-design notes) for the given epic, keyed by a short label used in
	// the prompt. Nil means no extra context beyond the epic doc and
	// traceability matrix.
	ExtraDocs func(epic paths.EpicID) (map[string]string, error)

	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// Generate loads context for epic, invokes the master provider, and saves
// the resulting plan, backing up any prior plan first.
func (g *Generator) Generate(ctx context.Context, epic paths.EpicID) (string, error) {
	epicContent, err := g.loadEpicDoc(epic)
	if err != nil {
		return "", fmt.Errorf("qa: generator: %w", err)
	}

	var sections []string
	sections = append(sections, "## Epic\n\n"+epicContent)

	if trace, ok := readFileIfExists(g.Paths.QATraceabilityFile(epic)); ok {
		sections = append(sections, "## Traceability\n\n"+trace)
	}

	if g.ExtraDocs != nil {
		extra, err := g.ExtraDocs(epic)
		if err != nil {
			return "", fmt.Errorf("qa: generator: loading extra docs: %w", err)
		}
		for label, content := range extra {
			sections = append(sections, fmt.Sprintf("## %s\n\n%s", label, content))
		}
	}

	prompt := buildGeneratorPrompt(epic, sections)

	prov, err := g.Providers.Get(g.ProviderName)
	if err != nil {
		return "", fmt.Errorf("qa: generator: resolving provider %q: %w", g.ProviderName, err)
	}

	run, err := prov.Run(ctx, provider.RunOpts{Prompt: prompt, TimeoutSec: g.TimeoutSec})
	if err != nil {
		return "", fmt.Errorf("qa: generator: provider %s: %w", g.ProviderName, err)
	}
	if !run.Success() {
		return "", fmt.Errorf("qa: generator: provider %s exited %s", g.ProviderName, run.Status)
	}

	plan := extractPlanReport(run.Stdout)

	planPath := g.Paths.QATestPlanFile(epic)
	if _, err := os.Stat(planPath); err == nil {
		stamp := g.now().UTC().Format("20060102T150405")
		backupPath := g.Paths.QATestPlanBackupFile(epic, stamp)
		if err := copyArtifact(planPath, backupPath); err != nil {
			if g.Logger != nil {
				g.Logger.Warn("qa: generator: backing up existing plan failed", "error", err)
			}
		}
	}

	if err := writeArtifactAtomic(planPath, plan); err != nil {
		return "", fmt.Errorf("qa: generator: writing plan: %w", err)
	}
	return planPath, nil
}

func (g *Generator) loadEpicDoc(epic paths.EpicID) (string, error) {
	matches, err := filepath.Glob(g.Paths.EpicDocGlob(epic))
	if err != nil {
		return "", fmt.Errorf("globbing epic doc: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no epic doc found for epic %s", epic.String())
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return "", fmt.Errorf("reading epic doc %q: %w", matches[0], err)
	}
	return string(data), nil
}

func buildGeneratorPrompt(epic paths.EpicID, sections []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate an end-to-end test plan for epic %s.\n\n", epic.String())
	b.WriteString(strings.Join(sections, "\n\n"))
	b.WriteString("\n\nWrap the full plan document in <qa-plan>...</qa-plan>.")
	return b.String()
}

func extractPlanReport(raw string) string {
	m := planReportRe.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	return strings.TrimSpace(m[1])
}

func readFileIfExists(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func copyArtifact(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return writeArtifactAtomic(dst, string(data))
}

// writeArtifactAtomic writes content to path via a temp-file-plus-rename,
// the same discipline internal/state.Store and internal/sprint.WriteAtomic
// use for every shared artifact under _bmad-output/.
func writeArtifactAtomic(path string, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory %q: %w", dir, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing temp artifact %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming temp artifact to %q: %w", path, err)
	}
	return nil
}
