package qa

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

// ExecuteOpts configures one Executor.Execute call, mirroring the `qa
// execute` CLI flags.
type ExecuteOpts struct {
	Epic     paths.EpicID
	Category Category

	// Batch forces batch (true) or single-run (false) mode; nil auto-decides
	// from BatchThreshold against the selected test count.
	Batch          *bool
	BatchSize      int
	BatchThreshold int

	Retry          bool
	RetryRun       string
	IncludeSkipped bool

	WorkDir     string
	TimeoutSec  int
	Concurrency int
}

// Executor runs a plan's selected tests, in single-run or batch mode,
// saving partial results incrementally so a crash loses at most one batch.
type Executor struct {
	Paths       *paths.Paths
	Concurrency int
	Logger      *log.Logger

	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

func (e *Executor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Execute runs the tests plan selects per opts and returns the accumulated
// results, persisting them to qa-artifacts/test-results as each batch
// completes.
func (e *Executor) Execute(ctx context.Context, plan *Plan, opts ExecuteOpts) (*RunResults, error) {
	tests, err := e.selectTests(plan, opts)
	if err != nil {
		return nil, fmt.Errorf("qa: executor: %w", err)
	}
	if len(tests) == 0 {
		return nil, fmt.Errorf("qa: executor: no tests selected for epic %s category %s", opts.Epic.String(), opts.Category)
	}

	threshold := opts.BatchThreshold
	if threshold <= 0 {
		threshold = 10
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	useBatch := len(tests) > threshold
	if opts.Batch != nil {
		useBatch = *opts.Batch
	}
	if !useBatch {
		batchSize = len(tests)
	}

	stamp := e.now().UTC().Format("20060102T150405")
	results := &RunResults{Epic: opts.Epic.String(), RunID: stamp, Timestamp: e.now(), Category: opts.Category}

	for start := 0; start < len(tests); start += batchSize {
		end := start + batchSize
		if end > len(tests) {
			end = len(tests)
		}
		batchResults, err := e.runBatch(ctx, tests[start:end], opts)
		if err != nil {
			return results, fmt.Errorf("qa: executor: batch %d-%d: %w", start, end, err)
		}
		results.Results = append(results.Results, batchResults...)

		if err := e.persist(results, opts.Epic, stamp); err != nil && e.Logger != nil {
			e.Logger.Warn("qa: executor: incremental save failed", "error", err)
		}
	}

	if err := e.persist(results, opts.Epic, stamp); err != nil {
		return results, fmt.Errorf("qa: executor: persisting final results: %w", err)
	}
	if err := e.writeSummary(results, opts.Epic, stamp); err != nil && e.Logger != nil {
		e.Logger.Warn("qa: executor: writing summary failed", "error", err)
	}
	return results, nil
}

func (e *Executor) runBatch(ctx context.Context, batch []TestCase, opts ExecuteOpts) ([]TestResult, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = e.Concurrency
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	results := make([]TestResult, len(batch))
	for i, tc := range batch {
		i, tc := i, tc
		g.Go(func() error {
			results[i] = e.runOne(gctx, tc, opts.WorkDir, opts.TimeoutSec)
			return nil
		})
	}
	// A worker never returns a non-nil error (each catches its own failure
	// into a TestResult), so g.Wait() returns nil; a canceled ctx shows up
	// in the individual TestResults instead.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Executor) runOne(ctx context.Context, tc TestCase, workDir string, timeoutSec int) TestResult {
	start := time.Now()
	if tc.Script == "" {
		return TestResult{ID: tc.ID, Status: StatusSkip, DurationMS: time.Since(start).Milliseconds()}
	}

	cctx := ctx
	if timeoutSec > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		defer cancel()
	}

	switch tc.Category {
	case CategoryA:
		return e.runBash(cctx, tc, workDir, start)
	case CategoryB:
		return e.runPlaywright(cctx, tc, workDir, start)
	default:
		return TestResult{ID: tc.ID, Status: StatusSkip, DurationMS: time.Since(start).Milliseconds()}
	}
}

func (e *Executor) runBash(ctx context.Context, tc TestCase, workDir string, start time.Time) TestResult {
	cmd := exec.CommandContext(ctx, "bash", "-c", tc.Script)
	cmd.Dir = workDir
	out, err := cmd.CombinedOutput()
	return classifyResult(tc.ID, out, err, ctx, start)
}

func (e *Executor) runPlaywright(ctx context.Context, tc TestCase, workDir string, start time.Time) TestResult {
	tmp, err := os.CreateTemp("", "qa-*.spec.ts")
	if err != nil {
		return TestResult{ID: tc.ID, Status: StatusError, Error: err.Error(), DurationMS: time.Since(start).Milliseconds()}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(tc.Script); err != nil {
		tmp.Close()
		return TestResult{ID: tc.ID, Status: StatusError, Error: err.Error(), DurationMS: time.Since(start).Milliseconds()}
	}
	tmp.Close()

	cmd := exec.CommandContext(ctx, "npx", "playwright", "test", tmp.Name())
	cmd.Dir = workDir
	out, err := cmd.CombinedOutput()
	return classifyResult(tc.ID, out, err, ctx, start)
}

func classifyResult(id string, out []byte, err error, ctx context.Context, start time.Time) TestResult {
	res := TestResult{ID: id, Output: string(out), DurationMS: time.Since(start).Milliseconds()}
	if ctx.Err() == context.DeadlineExceeded {
		res.Status = StatusError
		res.Error = "test timed out"
		return res
	}
	if err == nil {
		res.Status = StatusPass
		return res
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		res.Status = StatusFail
		return res
	}
	res.Status = StatusError
	res.Error = err.Error()
	return res
}

func (e *Executor) selectTests(plan *Plan, opts ExecuteOpts) ([]TestCase, error) {
	var out []TestCase
	for _, tc := range plan.Tests {
		if opts.Category != "" && opts.Category != CategoryAll && tc.Category != opts.Category {
			continue
		}
		out = append(out, tc)
	}

	if !opts.Retry {
		return out, nil
	}

	prior, err := e.loadRetrySource(opts)
	if err != nil {
		return nil, fmt.Errorf("loading retry source: %w", err)
	}

	retrySet := map[string]bool{}
	for _, id := range prior.Failing() {
		retrySet[id] = true
	}
	if opts.IncludeSkipped {
		for _, res := range prior.Results {
			if res.Status == StatusSkip {
				retrySet[res.ID] = true
			}
		}
	}

	var filtered []TestCase
	for _, tc := range out {
		if retrySet[tc.ID] {
			filtered = append(filtered, tc)
		}
	}
	return filtered, nil
}

func (e *Executor) loadRetrySource(opts ExecuteOpts) (*RunResults, error) {
	if opts.RetryRun != "" {
		return loadRunResults(e.Paths.QATestResultsFile(opts.Epic, opts.RetryRun))
	}
	return e.loadLatestRun(opts.Epic)
}

func (e *Executor) loadLatestRun(epic paths.EpicID) (*RunResults, error) {
	dir := filepath.Dir(e.Paths.QATestResultsFile(epic, "x"))
	pattern := filepath.Join(dir, fmt.Sprintf("epic-%s-run-*.yaml", epic.String()))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no prior run found for epic %s", epic.String())
	}
	sort.Strings(matches)
	return loadRunResults(matches[len(matches)-1])
}

func loadRunResults(path string) (*RunResults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rr RunResults
	if err := yaml.Unmarshal(data, &rr); err != nil {
		return nil, err
	}
	return &rr, nil
}

func (e *Executor) persist(results *RunResults, epic paths.EpicID, stamp string) error {
	data, err := yaml.Marshal(results)
	if err != nil {
		return err
	}
	return writeArtifactAtomic(e.Paths.QATestResultsFile(epic, stamp), string(data))
}

func (e *Executor) writeSummary(results *RunResults, epic paths.EpicID, stamp string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "QA run %s for epic %s (%s)\n\n", results.RunID, epic.String(), results.Category)
	for _, r := range results.Results {
		fmt.Fprintf(&b, "%-14s %s\n", r.ID, r.Status)
	}
	fmt.Fprintf(&b, "\npass rate: %.1f%%\n", results.PassRate()*100)

	path := e.Paths.QATestResultsFile(epic, stamp)
	summaryPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".summary.txt"
	return writeArtifactAtomic(summaryPath, b.String())
}
