// Package paths centralizes bmad-assist's filesystem layout: canonical
// locations under the project root, the tool-private ".bmad-assist"
// directory, and the user-global "~/.bmad-assist" directory, plus the
// {project-root}/{installed_path}/~ placeholder expansion rules used by
// workflow configuration values.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Paths resolves every canonical filesystem location bmad-assist reads from
// or writes to, relative to a fixed project root and an optional installed
// workflow config directory.
type Paths struct {
	// ProjectRoot is the project directory, set once at startup (typically
	// the current working directory, or BMAD_ORIGINAL_CWD when set).
	ProjectRoot string

	// InstalledPath is the directory containing the workflow config file in
	// use; {installed_path} expands to this. Empty until a workflow is
	// loaded.
	InstalledPath string
}

// New returns a Paths rooted at projectRoot. projectRoot should already be
// an absolute, cleaned path; callers resolve relative inputs before calling
// New.
func New(projectRoot string) *Paths {
	return &Paths{ProjectRoot: projectRoot}
}

// GetOriginalCwd returns BMAD_ORIGINAL_CWD, or "" if it is unset or empty.
// Some provider CLIs change the working directory before exec'ing a
// subprocess; this lets bmad-assist recover the directory the user actually
// invoked it from.
func GetOriginalCwd() string {
	return os.Getenv("BMAD_ORIGINAL_CWD")
}

// ResolveProjectRoot determines the project root for a command invocation:
// explicit (e.g. a --project flag) wins if set, then BMAD_ORIGINAL_CWD, then
// the current working directory. The result is always absolute.
func ResolveProjectRoot(explicit string) (string, error) {
	root := explicit
	if root == "" {
		root = GetOriginalCwd()
	}
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve project root: %w", err)
		}
		root = cwd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve project root %q: %w", root, err)
	}
	return abs, nil
}

// GlobalHome returns ~/.bmad-assist, the user-global config and debug-log
// root.
func (p *Paths) GlobalHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".bmad-assist"), nil
}

// GlobalConfig returns ~/.bmad-assist/config.yaml.
func (p *Paths) GlobalConfig() (string, error) {
	home, err := p.GlobalHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.yaml"), nil
}

// ProjectConfig returns {project-root}/bmad-assist.yaml.
func (p *Paths) ProjectConfig() string {
	return filepath.Join(p.ProjectRoot, "bmad-assist.yaml")
}

// ToolDir returns {project-root}/.bmad-assist, the tool-private directory.
func (p *Paths) ToolDir() string {
	return filepath.Join(p.ProjectRoot, ".bmad-assist")
}

// StateFile returns {project-root}/.bmad-assist/state.yaml.
func (p *Paths) StateFile() string {
	return filepath.Join(p.ToolDir(), "state.yaml")
}

// LockFile returns {project-root}/.bmad-assist/state.lock, the sentinel
// file the Loop Runner takes a single-writer FileLock on for the duration
// of a run.
func (p *Paths) LockFile() string {
	return filepath.Join(p.ToolDir(), "state.lock")
}

// PauseFlagFile returns {project-root}/.bmad-assist/pause, whose mere
// existence signals the Loop Runner to block between phases until it is
// removed.
func (p *Paths) PauseFlagFile() string {
	return filepath.Join(p.ToolDir(), "pause")
}

// PatchesDir returns {project-root}/.bmad-assist/patches.
func (p *Paths) PatchesDir() string {
	return filepath.Join(p.ToolDir(), "patches")
}

// CacheDir returns {project-root}/.bmad-assist/cache.
func (p *Paths) CacheDir() string {
	return filepath.Join(p.ToolDir(), "cache")
}

// CacheTemplate returns {project-root}/.bmad-assist/cache/{workflow}.tpl.xml.
func (p *Paths) CacheTemplate(workflow string) string {
	return filepath.Join(p.CacheDir(), workflow+".tpl.xml")
}

// CacheMeta returns {project-root}/.bmad-assist/cache/{workflow}.meta.yaml.
func (p *Paths) CacheMeta(workflow string) string {
	return filepath.Join(p.CacheDir(), workflow+".meta.yaml")
}

// OutputDir returns {project-root}/_bmad-output, the user-shared output
// root.
func (p *Paths) OutputDir() string {
	return filepath.Join(p.ProjectRoot, "_bmad-output")
}

// EffectiveConfigSnapshot returns
// _bmad-output/effective-config-{timestampWithMicros}.yaml for the given
// RFC3339-with-microseconds timestamp string, sanitized for use as a
// filename.
func (p *Paths) EffectiveConfigSnapshot(timestamp string) string {
	return filepath.Join(p.OutputDir(), fmt.Sprintf("effective-config-%s.yaml", sanitizeForFilename(timestamp)))
}

// PlanningArtifactsDir returns _bmad-output/planning-artifacts.
func (p *Paths) PlanningArtifactsDir() string {
	return filepath.Join(p.OutputDir(), "planning-artifacts")
}

// ImplementationArtifactsDir returns _bmad-output/implementation-artifacts.
func (p *Paths) ImplementationArtifactsDir() string {
	return filepath.Join(p.OutputDir(), "implementation-artifacts")
}

// SprintStatusFile returns
// _bmad-output/implementation-artifacts/sprint-status.yaml, the
// Reconciler's sole-writer ledger.
func (p *Paths) SprintStatusFile() string {
	return filepath.Join(p.ImplementationArtifactsDir(), "sprint-status.yaml")
}

// StoryFile returns {E}-{S}-{slug}.md under implementation-artifacts, e.g.
// "3-2-login-flow.md".
func (p *Paths) StoryFile(epic EpicID, story int, slug string) string {
	name := fmt.Sprintf("%s-%d-%s.md", epic.String(), story, slug)
	return filepath.Join(p.ImplementationArtifactsDir(), name)
}

// ValidationFile returns story-validations/validation-{E}-{S}-{evaluator}.md.
func (p *Paths) ValidationFile(epic EpicID, story int, evaluator string) string {
	name := fmt.Sprintf("validation-%s-%d-%s.md", epic.String(), story, evaluator)
	return filepath.Join(p.ImplementationArtifactsDir(), "story-validations", name)
}

// CodeReviewFile returns code-reviews/code-review-{E}-{S}-{evaluator}.md.
func (p *Paths) CodeReviewFile(epic EpicID, story int, evaluator string) string {
	name := fmt.Sprintf("code-review-%s-%d-%s.md", epic.String(), story, evaluator)
	return filepath.Join(p.ImplementationArtifactsDir(), "code-reviews", name)
}

// RetrospectiveFile returns retrospectives/epic-{id}-retro-{YYYYMMDD}.md.
func (p *Paths) RetrospectiveFile(epic EpicID, yyyymmdd string) string {
	name := fmt.Sprintf("epic-%s-retro-%s.md", epic.String(), yyyymmdd)
	return filepath.Join(p.ImplementationArtifactsDir(), "retrospectives", name)
}

// QAArtifactsDir returns implementation-artifacts/qa-artifacts.
func (p *Paths) QAArtifactsDir() string {
	return filepath.Join(p.ImplementationArtifactsDir(), "qa-artifacts")
}

// QATestPlanFile returns qa-artifacts/test-plans/epic-{id}-e2e-plan.md.
func (p *Paths) QATestPlanFile(epic EpicID) string {
	name := fmt.Sprintf("epic-%s-e2e-plan.md", epic.String())
	return filepath.Join(p.QAArtifactsDir(), "test-plans", name)
}

// QATestPlanBackupFile returns
// qa-artifacts/test-plans/epic-{id}-e2e-plan-backup-{YYYYMMDD}T{HHMMSS}.md.
func (p *Paths) QATestPlanBackupFile(epic EpicID, stamp string) string {
	name := fmt.Sprintf("epic-%s-e2e-plan-backup-%s.md", epic.String(), stamp)
	return filepath.Join(p.QAArtifactsDir(), "test-plans", name)
}

// QATestResultsFile returns
// qa-artifacts/test-results/epic-{id}-run-{timestamp}.yaml.
func (p *Paths) QATestResultsFile(epic EpicID, timestamp string) string {
	name := fmt.Sprintf("epic-%s-run-%s.yaml", epic.String(), sanitizeForFilename(timestamp))
	return filepath.Join(p.QAArtifactsDir(), "test-results", name)
}

// QATraceabilityFile returns qa-artifacts/traceability/epic-{id}-trace.md.
func (p *Paths) QATraceabilityFile(epic EpicID) string {
	name := fmt.Sprintf("epic-%s-trace.md", epic.String())
	return filepath.Join(p.QAArtifactsDir(), "traceability", name)
}

// BenchmarkFile returns qa-artifacts/benchmarks/epic-{id}-bench.yaml, the
// append-only per-evaluator benchmarking ledger for an epic.
func (p *Paths) BenchmarkFile(epic EpicID) string {
	name := fmt.Sprintf("epic-%s-bench.yaml", epic.String())
	return filepath.Join(p.QAArtifactsDir(), "benchmarks", name)
}

// EpicDocGlob returns the glob pattern docs/epics/epic-{id}-*.md for the
// given epic.
func (p *Paths) EpicDocGlob(epic EpicID) string {
	return filepath.Join(p.ProjectRoot, "docs", "epics", fmt.Sprintf("epic-%s-*.md", epic.String()))
}

// EpicsDir returns docs/epics.
func (p *Paths) EpicsDir() string {
	return filepath.Join(p.ProjectRoot, "docs", "epics")
}

// WorkflowsDir returns {project-root}/.bmad-assist/workflows, the root under
// which each installed workflow has its own directory containing
// workflow.yaml and instructions.xml.
func (p *Paths) WorkflowsDir() string {
	return filepath.Join(p.ToolDir(), "workflows")
}

// WorkflowDir returns {project-root}/.bmad-assist/workflows/{name}, the
// directory {installed_path} resolves to once a workflow is loaded.
func (p *Paths) WorkflowDir(name string) string {
	return filepath.Join(p.WorkflowsDir(), name)
}

// GlobalDebugDir returns ~/.bmad-assist/debug, the root of the debug JSON
// and prompt XML logs.
func (p *Paths) GlobalDebugDir() (string, error) {
	home, err := p.GlobalHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "debug"), nil
}

// GlobalDebugJSONFile returns
// ~/.bmad-assist/debug/json/{timestampPrefix}-{sessionID}.jsonl.
func (p *Paths) GlobalDebugJSONFile(timestampPrefix, sessionID string) (string, error) {
	dir, err := p.GlobalDebugDir()
	if err != nil {
		return "", err
	}
	name := sanitizeForFilename(timestampPrefix) + "-" + sanitizeForFilename(sessionID) + ".jsonl"
	return filepath.Join(dir, "json", name), nil
}

// GlobalDebugPromptFile returns
// ~/.bmad-assist/debug/prompts/{timestampPrefix}-{sessionID}.xml.
func (p *Paths) GlobalDebugPromptFile(timestampPrefix, sessionID string) (string, error) {
	dir, err := p.GlobalDebugDir()
	if err != nil {
		return "", err
	}
	name := sanitizeForFilename(timestampPrefix) + "-" + sanitizeForFilename(sessionID) + ".xml"
	return filepath.Join(dir, "prompts", name), nil
}

// GlobalPatcherConfig returns ~/.bmad-assist/patcher.yaml.
func (p *Paths) GlobalPatcherConfig() (string, error) {
	home, err := p.GlobalHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "patcher.yaml"), nil
}

// Expand resolves "~", "{project-root}", and "{installed_path}" placeholders
// in s. "~" must lead the string (or be the entire string) to be expanded,
// matching shell convention. Placeholders are substituted literally, then
// the result is NOT further cleaned; callers that need a canonical path
// should filepath.Clean the result themselves.
func (p *Paths) Expand(s string) (string, error) {
	if s == "~" || strings.HasPrefix(s, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		s = filepath.Join(home, strings.TrimPrefix(s, "~"))
	}

	s = strings.ReplaceAll(s, "{project-root}", p.ProjectRoot)
	s = strings.ReplaceAll(s, "{installed_path}", p.InstalledPath)

	return s, nil
}

// Contains reports whether candidate resolves to a path inside root (or
// equal to root), using Clean + relative-path containment rather than a
// string prefix check. ".." segments are resolved by Clean first, so a
// candidate is rejected only when it lands outside root; a cross-volume
// relative result (Windows drive mismatch) is treated as a violation.
func Contains(root, candidate string) (bool, error) {
	absRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return false, err
	}
	absCandidate, err := filepath.Abs(filepath.Clean(candidate))
	if err != nil {
		return false, err
	}

	rel, err := filepath.Rel(absRoot, absCandidate)
	if err != nil {
		return false, nil
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false, nil
	}
	if filepath.IsAbs(rel) {
		return false, nil
	}

	return true, nil
}

func sanitizeForFilename(s string) string {
	replacer := strings.NewReplacer(":", "", " ", "_", "/", "-", "\\", "-")
	return replacer.Replace(s)
}

// EpicID is either a numeric epic identifier (1, 2, …) or a stable string
// tag ("testarch"). Zero value is the numeric epic 0; use NewEpicTag for a
// tagged epic.
type EpicID struct {
	num   int
	tag   string
	isTag bool
}

// NewEpicNum returns a numeric EpicID.
func NewEpicNum(n int) EpicID { return EpicID{num: n} }

// NewEpicTag returns a string-tagged EpicID.
func NewEpicTag(tag string) EpicID { return EpicID{tag: tag, isTag: true} }

// ParseEpicID parses a string as an EpicID: numeric strings become a numeric
// EpicID, everything else becomes a tagged EpicID.
func ParseEpicID(s string) EpicID {
	if n, err := strconv.Atoi(s); err == nil {
		return NewEpicNum(n)
	}
	return NewEpicTag(s)
}

// IsTag reports whether this EpicID is a string tag rather than a number.
func (e EpicID) IsTag() bool { return e.isTag }

// String renders the EpicID as it appears in filenames: the bare integer,
// or the bare tag string.
func (e EpicID) String() string {
	if e.isTag {
		return e.tag
	}
	return strconv.Itoa(e.num)
}

// Less orders EpicIDs so that numeric epics ascend first (in numeric
// order), followed by tagged epics in alphabetical order.
func (e EpicID) Less(other EpicID) bool {
	if !e.isTag && !other.isTag {
		return e.num < other.num
	}
	if !e.isTag && other.isTag {
		return true
	}
	if e.isTag && !other.isTag {
		return false
	}
	return e.tag < other.tag
}

// MarshalYAML renders the EpicID as a bare scalar: an integer for numeric
// epics, a string for tagged epics.
func (e EpicID) MarshalYAML() (any, error) {
	if e.isTag {
		return e.tag, nil
	}
	return e.num, nil
}

// UnmarshalYAML accepts either a bare integer or a bare string scalar,
// matching the on-disk shape MarshalYAML produces.
func (e *EpicID) UnmarshalYAML(value *yaml.Node) error {
	var asInt int
	if err := value.Decode(&asInt); err == nil {
		*e = NewEpicNum(asInt)
		return nil
	}
	var asString string
	if err := value.Decode(&asString); err != nil {
		return err
	}
	*e = ParseEpicID(asString)
	return nil
}
