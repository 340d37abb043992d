package qa

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

func samplePlanStruct(epic string) *Plan {
	return &Plan{
		Epic: epic,
		Tests: []TestCase{
			{ID: "E3-A01", Epic: epic, Category: CategoryA, Script: "exit 0"},
			{ID: "E3-A02", Epic: epic, Category: CategoryA, Script: "exit 1"},
			{ID: "E3-B01", Epic: epic, Category: CategoryB},
			{ID: "E3-C01", Epic: epic, Category: CategoryC},
		},
	}
}

func TestExecutorRunsBashTestsAndClassifiesPassFail(t *testing.T) {
	root := t.TempDir()
	p := paths.New(root)
	plan := samplePlanStruct("3")

	exec := &Executor{Paths: p, Concurrency: 2, Now: func() time.Time { return fixedTime }}
	results, err := exec.Execute(context.Background(), plan, ExecuteOpts{Epic: paths.ParseEpicID("3"), Category: CategoryA, WorkDir: root})
	require.NoError(t, err)
	require.Len(t, results.Results, 2)

	byID := map[string]TestResult{}
	for _, r := range results.Results {
		byID[r.ID] = r
	}
	assert.Equal(t, StatusPass, byID["E3-A01"].Status)
	assert.Equal(t, StatusFail, byID["E3-A02"].Status)
	assert.Equal(t, 1, byID["E3-A02"].ExitCode)
}

func TestExecutorSkipsTestsWithNoScript(t *testing.T) {
	root := t.TempDir()
	p := paths.New(root)
	plan := samplePlanStruct("3")

	exec := &Executor{Paths: p, Concurrency: 1, Now: func() time.Time { return fixedTime }}
	results, err := exec.Execute(context.Background(), plan, ExecuteOpts{Epic: paths.ParseEpicID("3"), Category: CategoryC, WorkDir: root})
	require.NoError(t, err)
	require.Len(t, results.Results, 1)
	assert.Equal(t, StatusSkip, results.Results[0].Status)
}

func TestExecutorPersistsResultsIncrementallyAcrossBatches(t *testing.T) {
	root := t.TempDir()
	p := paths.New(root)
	plan := &Plan{Epic: "3"}
	for i := 1; i <= 5; i++ {
		plan.Tests = append(plan.Tests, TestCase{ID: formatTestID("3", CategoryA, i), Epic: "3", Category: CategoryA, Script: "exit 0"})
	}

	exec := &Executor{Paths: p, Concurrency: 2, Now: func() time.Time { return fixedTime }}
	batch := true
	results, err := exec.Execute(context.Background(), plan, ExecuteOpts{
		Epic: paths.ParseEpicID("3"), Category: CategoryA, WorkDir: root,
		Batch: &batch, BatchSize: 2,
	})
	require.NoError(t, err)
	assert.Len(t, results.Results, 5)

	stamp := fixedTime.UTC().Format("20060102T150405")
	data, err := os.ReadFile(p.QATestResultsFile(paths.ParseEpicID("3"), stamp))
	require.NoError(t, err)
	assert.Contains(t, string(data), "run_id")
}

func TestExecutorSingleRunModeBelowThreshold(t *testing.T) {
	root := t.TempDir()
	p := paths.New(root)
	plan := samplePlanStruct("3")

	exec := &Executor{Paths: p, Concurrency: 4, Now: func() time.Time { return fixedTime }}
	results, err := exec.Execute(context.Background(), plan, ExecuteOpts{
		Epic: paths.ParseEpicID("3"), Category: CategoryAll, WorkDir: root, BatchThreshold: 10,
	})
	require.NoError(t, err)
	assert.Len(t, results.Results, 4)
}

func TestExecutorRetrySelectsOnlyFailingFromPriorRun(t *testing.T) {
	root := t.TempDir()
	p := paths.New(root)
	epic := paths.ParseEpicID("3")

	prior := &RunResults{
		Epic: "3", RunID: "20260101T000000",
		Results: []TestResult{
			{ID: "E3-A01", Status: StatusPass},
			{ID: "E3-A02", Status: StatusFail},
			{ID: "E3-B01", Status: StatusSkip},
		},
	}
	exec := &Executor{Paths: p, Concurrency: 1, Now: func() time.Time { return fixedTime }}
	require.NoError(t, exec.persist(prior, epic, "20260101T000000"))

	plan := samplePlanStruct("3")
	results, err := exec.Execute(context.Background(), plan, ExecuteOpts{
		Epic: epic, Category: CategoryAll, WorkDir: root,
		Retry: true, IncludeSkipped: true,
	})
	require.NoError(t, err)

	var ids []string
	for _, r := range results.Results {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"E3-A02", "E3-B01"}, ids)
}

func TestExecutorReturnsErrorWhenNoTestsSelected(t *testing.T) {
	root := t.TempDir()
	p := paths.New(root)
	plan := &Plan{Epic: "3"}

	exec := &Executor{Paths: p}
	_, err := exec.Execute(context.Background(), plan, ExecuteOpts{Epic: paths.ParseEpicID("3"), Category: CategoryA, WorkDir: root})
	assert.Error(t, err)
}

func TestExecutorClassifiesTimeout(t *testing.T) {
	root := t.TempDir()
	p := paths.New(root)
	plan := &Plan{Epic: "3", Tests: []TestCase{
		{ID: "E3-A01", Epic: "3", Category: CategoryA, Script: "sleep 5"},
	}}

	exec := &Executor{Paths: p, Concurrency: 1, Now: func() time.Time { return fixedTime }}
	results, err := exec.Execute(context.Background(), plan, ExecuteOpts{
		Epic: paths.ParseEpicID("3"), Category: CategoryA, WorkDir: root, TimeoutSec: 1,
	})
	require.NoError(t, err)
	require.Len(t, results.Results, 1)
	assert.Equal(t, StatusError, results.Results[0].Status)
	assert.Contains(t, results.Results[0].Error, "timed out")
}

func TestExecutorPassRateAndFailingHelpers(t *testing.T) {
	rr := &RunResults{Results: []TestResult{
		{ID: "a", Status: StatusPass},
		{ID: "b", Status: StatusFail},
		{ID: "c", Status: StatusSkip},
	}}
	assert.InDelta(t, 0.5, rr.PassRate(), 0.001)
	assert.Equal(t, []string{"b"}, rr.Failing())
}

func TestQATestResultsFileLivesUnderTestResultsDir(t *testing.T) {
	p := paths.New(t.TempDir())
	path := p.QATestResultsFile(paths.ParseEpicID("3"), "20260101T000000")
	assert.Equal(t, "test-results", filepath.Base(filepath.Dir(path)))
}
