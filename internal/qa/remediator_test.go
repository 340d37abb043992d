package qa

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmad-assist/bmad-assist-go/internal/git"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

func qaResultsWithFailures(ids ...string) *RunResults {
	rr := &RunResults{Epic: "3"}
	for _, id := range ids {
		rr.Results = append(rr.Results, TestResult{ID: id, Status: StatusFail, Error: "assertion failed: " + id})
	}
	return rr
}

func TestRemediatorCollectsAndTriagesIssues(t *testing.T) {
	root := t.TempDir()
	p := paths.New(root)
	epic := paths.ParseEpicID("3")

	qaResults := qaResultsWithFailures("E3-A01")
	triageResponse := "<auto-fix>\n- assertion failed: E3-A01\n</auto-fix>\n<escalate>\n</escalate>"
	fp := &fakeProvider{name: "claude", stdout: triageResponse}

	rem := &Remediator{
		Paths:        p,
		Providers:    newFakeRegistry(fp),
		ProviderName: "claude",
	}

	iterations, err := rem.Remediate(context.Background(), epic, qaResults)
	require.NoError(t, err)
	require.Len(t, iterations, 1)
	require.Len(t, iterations[0].AutoFixed, 1)
	assert.Equal(t, "assertion failed: E3-A01", iterations[0].AutoFixed[0].Issue.Description)
	assert.Empty(t, iterations[0].Escalated)
	assert.Equal(t, 1, fp.calls)
}

func TestRemediatorStopsAfterNoFreshIssues(t *testing.T) {
	root := t.TempDir()
	p := paths.New(root)
	epic := paths.ParseEpicID("3")

	qaResults := qaResultsWithFailures("E3-A01")
	fp := &fakeProvider{name: "claude", stdout: "<auto-fix>\n- assertion failed: E3-A01\n</auto-fix>"}

	rem := &Remediator{
		Paths:         p,
		Providers:     newFakeRegistry(fp),
		ProviderName:  "claude",
		MaxIterations: 3,
	}

	iterations, err := rem.Remediate(context.Background(), epic, qaResults)
	require.NoError(t, err)
	assert.Len(t, iterations, 1, "the issue seen in iteration 1 must not resurface in iteration 2 since nothing new was introduced")
	assert.Equal(t, 1, fp.calls)
}

func TestRemediatorEscalatesUnmatchedIssues(t *testing.T) {
	root := t.TempDir()
	p := paths.New(root)
	epic := paths.ParseEpicID("3")

	qaResults := qaResultsWithFailures("E3-A01", "E3-A02")
	triageResponse := "<auto-fix>\n- assertion failed: E3-A01\n</auto-fix>\n<escalate>\n- assertion failed: E3-A02\n</escalate>"
	fp := &fakeProvider{name: "claude", stdout: triageResponse}

	rem := &Remediator{Paths: p, Providers: newFakeRegistry(fp), ProviderName: "claude"}

	iterations, err := rem.Remediate(context.Background(), epic, qaResults)
	require.NoError(t, err)
	require.Len(t, iterations[0].Escalated, 1)
	assert.Equal(t, "assertion failed: E3-A02", iterations[0].Escalated[0].Issue.Description)
}

func TestRemediatorCollectsIssuesFromCodeReviewAndRetrospectiveArtifacts(t *testing.T) {
	root := t.TempDir()
	p := paths.New(root)
	epic := paths.ParseEpicID("3")

	reviewDir := filepath.Join(p.ImplementationArtifactsDir(), "code-reviews")
	require.NoError(t, os.MkdirAll(reviewDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(reviewDir, "code-review-3-1-1.md"), []byte("nil pointer risk in handler"), 0o644))

	fp := &fakeProvider{name: "claude", stdout: "<escalate>\n- nil pointer risk in handler\n</escalate>"}
	rem := &Remediator{Paths: p, Providers: newFakeRegistry(fp), ProviderName: "claude"}

	iterations, err := rem.Remediate(context.Background(), epic, nil)
	require.NoError(t, err)
	require.Len(t, iterations, 1)
	require.Len(t, iterations[0].Escalated, 1)
	assert.Equal(t, "code-review", iterations[0].Escalated[0].Issue.Source)
}

func TestRemediatorNoIssuesProducesNoIterations(t *testing.T) {
	root := t.TempDir()
	p := paths.New(root)
	epic := paths.ParseEpicID("3")

	fp := &fakeProvider{name: "claude"}
	rem := &Remediator{Paths: p, Providers: newFakeRegistry(fp), ProviderName: "claude"}

	iterations, err := rem.Remediate(context.Background(), epic, nil)
	require.NoError(t, err)
	assert.Empty(t, iterations)
	assert.Equal(t, 0, fp.calls)
}

func TestRemediatorTracksModifiedFilesViaGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	root := t.TempDir()
	p := paths.New(root)
	epic := paths.ParseEpicID("3")

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test.dev", "GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test.dev")
		require.NoError(t, cmd.Run())
	}
	run("init")
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0o644))
	run("add", "-A")
	run("commit", "-m", "init")

	gc, err := git.NewGitClient(root)
	require.NoError(t, err)

	fp := &fakeProvider{name: "claude", stdout: "<auto-fix>\n- assertion failed: E3-A01\n</auto-fix>"}
	rem := &Remediator{Paths: p, Providers: newFakeRegistry(fp), ProviderName: "claude", Git: gc}

	iterations, err := rem.Remediate(context.Background(), epic, qaResultsWithFailures("E3-A01"))
	require.NoError(t, err)
	require.Len(t, iterations, 1)
	assert.Empty(t, iterations[0].ModifiedFiles, "diffing HEAD against itself never surfaces uncommitted working-tree changes")
}

func TestDedupeIssuesDropsAlreadySeen(t *testing.T) {
	seen := map[string]bool{}
	first := dedupeIssues([]Issue{{Source: "qa", Description: "x"}}, seen)
	assert.Len(t, first, 1)
	second := dedupeIssues([]Issue{{Source: "qa", Description: "x"}, {Source: "qa", Description: "y"}}, seen)
	require.Len(t, second, 1)
	assert.Equal(t, "y", second[0].Description)
}

func TestParseTriageResponseHandlesMissingSections(t *testing.T) {
	autoFixed, escalated := parseTriageResponse("no markers here", []Issue{{Description: "x"}})
	assert.Empty(t, autoFixed)
	assert.Empty(t, escalated)
}
