package qa

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/bmad-assist/bmad-assist-go/internal/git"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
	"github.com/bmad-assist/bmad-assist-go/internal/provider"
)

var (
	autoFixRe  = regexp.MustCompile(`(?s)<auto-fix>(.*?)</auto-fix>`)
	escalateRe = regexp.MustCompile(`(?s)<escalate>(.*?)</escalate>`)
)

// RemediationAction is the triage outcome for one collected issue.
type RemediationAction string

const (
	ActionAutoFix  RemediationAction = "auto-fix"
	ActionEscalate RemediationAction = "escalate"
)

// Issue is one remediation candidate gathered from a QA run, a code review,
// a retrospective, a validation report, or an injected scorecard source.
type Issue struct {
	Source      string
	Description string
	File        string
}

// RemediationItem pairs a triaged Issue with the action the master provider
// chose for it.
type RemediationItem struct {
	Issue  Issue
	Action RemediationAction
	Detail string
}

// IterationResult is one pass of the remediation loop: what was triaged,
// which files changed, and (if re-testing is wired) whether the pass rate
// held or improved.
type IterationResult struct {
	Iteration      int
	AutoFixed      []RemediationItem
	Escalated      []RemediationItem
	ModifiedFiles  []string
	RefixedFiles   []string
	PassRateBefore float64
	PassRateAfter  float64
	Regressed      bool
}

// Remediator drives the QA_REMEDIATE loop: collect issues, triage them with
// the master provider, track which files the provider's own edits touched,
// and optionally re-run the QA executor to verify no regression occurred.
type Remediator struct {
	Paths        *paths.Paths
	Providers    *provider.Registry
	ProviderName string
	TimeoutSec   int

	// Git, when set, is used to detect files the provider modified between
	// iterations (internal/git.GitClient.DiffFiles against HEAD).
	Git *git.GitClient

	// Executor, when set, re-runs the QA plan's failing, error and skipped tests between
	// iterations so a regression (pass rate decreasing) can be detected.
	Executor *Executor

	// Scorecard optionally supplies additional issues from a scorecard
	// source external to this package's own artifact types.
	Scorecard func(epic paths.EpicID) ([]Issue, error)

	Logger        *log.Logger
	MaxIterations int
}

// Remediate runs up to MaxIterations triage passes, stopping early once a
// pass surfaces no issues beyond what a prior pass already saw.
func (r *Remediator) Remediate(ctx context.Context, epic paths.EpicID, qaResults *RunResults) ([]IterationResult, error) {
	maxIter := r.MaxIterations
	if maxIter <= 0 {
		maxIter = 3
	}

	seenDescriptions := map[string]bool{}
	fixedFileHistory := map[string]bool{}
	current := qaResults
	var iterations []IterationResult

	for i := 1; i <= maxIter; i++ {
		issues := r.collectIssues(epic, current)
		fresh := dedupeIssues(issues, seenDescriptions)
		if len(fresh) == 0 {
			break
		}

		prov, err := r.Providers.Get(r.ProviderName)
		if err != nil {
			return iterations, fmt.Errorf("qa: remediator: resolving provider %q: %w", r.ProviderName, err)
		}
		run, err := prov.Run(ctx, provider.RunOpts{Prompt: buildTriagePrompt(epic, fresh), TimeoutSec: r.TimeoutSec})
		if err != nil {
			return iterations, fmt.Errorf("qa: remediator: provider %s: %w", r.ProviderName, err)
		}

		autoFixed, escalated := parseTriageResponse(run.Stdout, fresh)
		iter := IterationResult{Iteration: i, AutoFixed: autoFixed, Escalated: escalated}

		if r.Git != nil {
			diffs, err := r.Git.DiffFiles(ctx, "HEAD")
			if err != nil {
				if r.Logger != nil {
					r.Logger.Warn("qa: remediator: diffing modified files failed", "error", err)
				}
			} else {
				for _, d := range diffs {
					iter.ModifiedFiles = append(iter.ModifiedFiles, d.Path)
					if fixedFileHistory[d.Path] {
						iter.RefixedFiles = append(iter.RefixedFiles, d.Path)
					}
					fixedFileHistory[d.Path] = true
				}
			}
		}

		if r.Executor != nil && current != nil {
			before := current.PassRate()
			plan, err := Parse(r.Paths.QATestPlanFile(epic))
			if err != nil {
				if r.Logger != nil {
					r.Logger.Warn("qa: remediator: loading plan for re-test failed", "error", err)
				}
			} else {
				retested, err := r.Executor.Execute(ctx, plan, ExecuteOpts{Epic: epic, Category: CategoryAll, Retry: true, IncludeSkipped: true})
				if err != nil {
					if r.Logger != nil {
						r.Logger.Warn("qa: remediator: re-test failed", "error", err)
					}
				} else {
					after := retested.PassRate()
					iter.PassRateBefore = before
					iter.PassRateAfter = after
					iter.Regressed = after < before
					current = retested
				}
			}
		}

		iterations = append(iterations, iter)
	}

	return iterations, nil
}

func (r *Remediator) collectIssues(epic paths.EpicID, qaResults *RunResults) []Issue {
	var issues []Issue

	if qaResults != nil {
		for _, res := range qaResults.Results {
			if res.Status != StatusFail && res.Status != StatusError {
				continue
			}
			desc := res.Error
			if desc == "" {
				desc = fmt.Sprintf("test %s %s", res.ID, res.Status)
			}
			issues = append(issues, Issue{Source: "qa", Description: desc})
		}
	}

	dir := r.Paths.ImplementationArtifactsDir()
	issues = append(issues, collectFromGlob(filepath.Join(dir, "story-validations", fmt.Sprintf("validation-%s-*-*.md", epic.String())), "validation")...)
	issues = append(issues, collectFromGlob(filepath.Join(dir, "code-reviews", fmt.Sprintf("code-review-%s-*-*.md", epic.String())), "code-review")...)
	issues = append(issues, collectFromGlob(filepath.Join(dir, "retrospectives", fmt.Sprintf("epic-%s-retro-*.md", epic.String())), "retrospective")...)

	if r.Scorecard != nil {
		scIssues, err := r.Scorecard(epic)
		if err != nil {
			if r.Logger != nil {
				r.Logger.Warn("qa: remediator: scorecard source failed", "error", err)
			}
		} else {
			issues = append(issues, scIssues...)
		}
	}
	return issues
}

func collectFromGlob(pattern, source string) []Issue {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	var issues []Issue
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		issues = append(issues, Issue{Source: source, Description: strings.TrimSpace(string(data)), File: m})
	}
	return issues
}

// dedupeIssues drops any issue this remediation already saw in a prior
// iteration, keyed by (source, description), and records the survivors in
// seen so the next iteration's collection doesn't reintroduce them.
func dedupeIssues(issues []Issue, seen map[string]bool) []Issue {
	var fresh []Issue
	for _, iss := range issues {
		key := iss.Source + ":" + iss.Description
		if seen[key] {
			continue
		}
		seen[key] = true
		fresh = append(fresh, iss)
	}
	return fresh
}

func buildTriagePrompt(epic paths.EpicID, issues []Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Triage the following issues for epic %s.\n\n", epic.String())
	for _, iss := range issues {
		fmt.Fprintf(&b, "- [%s] %s\n", iss.Source, iss.Description)
	}
	b.WriteString("\nFor each issue, decide AUTO-FIX (apply the fix directly) or ESCALATE (needs human judgment).\n")
	b.WriteString("Wrap auto-fixed items in <auto-fix>...</auto-fix> and escalated items in ")
	b.WriteString("<escalate>...</escalate>, one item per line prefixed with \"- \".")
	return b.String()
}

func parseTriageResponse(raw string, issues []Issue) (autoFixed, escalated []RemediationItem) {
	autoFixed = matchTriageSection(autoFixRe, raw, issues, ActionAutoFix)
	escalated = matchTriageSection(escalateRe, raw, issues, ActionEscalate)
	return
}

func matchTriageSection(re *regexp.Regexp, raw string, issues []Issue, action RemediationAction) []RemediationItem {
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	var items []RemediationItem
	for _, line := range strings.Split(m[1], "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line == "" {
			continue
		}
		items = append(items, RemediationItem{Issue: matchIssue(issues, line), Action: action, Detail: line})
	}
	return items
}

func matchIssue(issues []Issue, line string) Issue {
	for _, iss := range issues {
		if strings.Contains(line, iss.Description) || strings.Contains(iss.Description, line) {
			return iss
		}
	}
	return Issue{Description: line}
}
