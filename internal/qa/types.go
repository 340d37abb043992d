// Package qa implements the end-to-end test plan generator, parser,
// executor, and remediator described for the QA phases
// (QA_PLAN_GENERATE, QA_PLAN_EXECUTE, QA_REMEDIATE). Unlike the other
// phase handlers, QA work is invoked directly rather than through a
// compiled workflow prompt: the generator and remediator still call a
// provider, but the executor runs locally-generated test scripts with no
// LLM involved at all.
package qa

import "time"

// Category classifies a test case by how it is executed. A = CLI/bash
// scripts that run safely in any environment; B = Playwright-driven UI
// tests; C = documentation-only entries with no attached script.
type Category string

const (
	CategoryA   Category = "A"
	CategoryB   Category = "B"
	CategoryC   Category = "C"
	CategoryAll Category = "all"
)

// TestStatus is the outcome of one executed test case.
type TestStatus string

const (
	StatusPass  TestStatus = "pass"
	StatusFail  TestStatus = "fail"
	StatusError TestStatus = "error"
	StatusSkip  TestStatus = "skip"
)

// TestCase is one row of the plan's master checklist, optionally paired
// with an executable script parsed from its "###"/"####" section.
type TestCase struct {
	ID          string // e.g. "E3-A01"
	Epic        string
	Category    Category
	Number      int
	Description string
	Script      string // empty for Category C or unknown-format IDs
	ScriptLang  string // "bash" or "typescript"
}

// Plan is the parsed representation of an epic's E2E test plan document.
type Plan struct {
	Epic  string
	Path  string
	Tests []TestCase
}

// ByID returns the plan's test with the given ID, or false if absent.
func (p *Plan) ByID(id string) (TestCase, bool) {
	for _, tc := range p.Tests {
		if tc.ID == id {
			return tc, true
		}
	}
	return TestCase{}, false
}

// TestResult is one test case's executed outcome.
type TestResult struct {
	ID        string     `yaml:"id"`
	Status    TestStatus `yaml:"status"`
	ExitCode  int        `yaml:"exit_code,omitempty"`
	Output    string     `yaml:"output,omitempty"`
	Error     string     `yaml:"error,omitempty"`
	DurationMS int64     `yaml:"duration_ms"`
}

// RunResults is the persisted outcome of one executor invocation, written
// to qa-artifacts/test-results/epic-{id}-run-{timestamp}.yaml.
type RunResults struct {
	Epic      string       `yaml:"epic"`
	RunID     string       `yaml:"run_id"`
	Timestamp time.Time    `yaml:"timestamp"`
	Category  Category     `yaml:"category"`
	Results   []TestResult `yaml:"results"`
}

// PassRate returns the fraction of non-skipped results that passed, or 1.0
// when there are no non-skipped results (so a retest of nothing never
// counts as a regression).
func (r *RunResults) PassRate() float64 {
	var total, passed int
	for _, res := range r.Results {
		if res.Status == StatusSkip {
			continue
		}
		total++
		if res.Status == StatusPass {
			passed++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(passed) / float64(total)
}

// Failing returns the IDs of every test whose status is fail or error.
func (r *RunResults) Failing() []string {
	var ids []string
	for _, res := range r.Results {
		if res.Status == StatusFail || res.Status == StatusError {
			ids = append(ids, res.ID)
		}
	}
	return ids
}
