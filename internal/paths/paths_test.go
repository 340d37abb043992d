package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestPaths_CoreLayout(t *testing.T) {
	p := New("/proj")

	assert.Equal(t, "/proj/bmad-assist.yaml", p.ProjectConfig())
	assert.Equal(t, "/proj/.bmad-assist", p.ToolDir())
	assert.Equal(t, "/proj/.bmad-assist/state.yaml", p.StateFile())
	assert.Equal(t, "/proj/.bmad-assist/patches", p.PatchesDir())
	assert.Equal(t, "/proj/.bmad-assist/cache/create_story.tpl.xml", p.CacheTemplate("create_story"))
	assert.Equal(t, "/proj/.bmad-assist/cache/create_story.meta.yaml", p.CacheMeta("create_story"))
	assert.Equal(t, "/proj/_bmad-output", p.OutputDir())
	assert.Equal(t, "/proj/_bmad-output/implementation-artifacts/sprint-status.yaml", p.SprintStatusFile())
}

func TestPaths_StoryArtifacts(t *testing.T) {
	p := New("/proj")
	epic := NewEpicNum(3)

	assert.Equal(t, "/proj/_bmad-output/implementation-artifacts/3-2-login-flow.md", p.StoryFile(epic, 2, "login-flow"))
	assert.Equal(t,
		"/proj/_bmad-output/implementation-artifacts/story-validations/validation-3-2-claude.md",
		p.ValidationFile(epic, 2, "claude"))
	assert.Equal(t,
		"/proj/_bmad-output/implementation-artifacts/code-reviews/code-review-3-2-codex.md",
		p.CodeReviewFile(epic, 2, "codex"))
}

func TestPaths_TaggedEpicArtifacts(t *testing.T) {
	p := New("/proj")
	epic := NewEpicTag("testarch")

	assert.Equal(t,
		"/proj/_bmad-output/implementation-artifacts/retrospectives/epic-testarch-retro-20260115.md",
		p.RetrospectiveFile(epic, "20260115"))
	assert.Equal(t,
		"/proj/_bmad-output/implementation-artifacts/qa-artifacts/test-plans/epic-testarch-e2e-plan.md",
		p.QATestPlanFile(epic))
}

func TestPaths_EffectiveConfigSnapshot_SanitizesTimestamp(t *testing.T) {
	p := New("/proj")
	got := p.EffectiveConfigSnapshot("2026-01-15T10:30:00.123456Z")
	assert.NotContains(t, got, ":")
	assert.Contains(t, got, "effective-config-")
}

func TestEpicID_ParseAndString(t *testing.T) {
	n := ParseEpicID("3")
	assert.False(t, n.IsTag())
	assert.Equal(t, "3", n.String())

	tagged := ParseEpicID("testarch")
	assert.True(t, tagged.IsTag())
	assert.Equal(t, "testarch", tagged.String())
}

func TestEpicID_Less_NumericsBeforeTags(t *testing.T) {
	one := NewEpicNum(1)
	two := NewEpicNum(2)
	tag := NewEpicTag("testarch")
	other := NewEpicTag("zzz")

	assert.True(t, one.Less(two))
	assert.False(t, two.Less(one))
	assert.True(t, one.Less(tag), "numeric epics sort before tagged epics")
	assert.False(t, tag.Less(one))
	assert.True(t, tag.Less(other), "tags sort alphabetically among themselves")
}

func TestExpand_Placeholders(t *testing.T) {
	p := New("/proj")
	p.InstalledPath = "/proj/bmad/workflows"

	got, err := p.Expand("{project-root}/docs")
	require.NoError(t, err)
	assert.Equal(t, "/proj/docs", got)

	got, err = p.Expand("{installed_path}/template.xml")
	require.NoError(t, err)
	assert.Equal(t, "/proj/bmad/workflows/template.xml", got)
}

func TestExpand_Tilde(t *testing.T) {
	p := New("/proj")
	got, err := p.Expand("~/.bmad-assist/config.yaml")
	require.NoError(t, err)
	assert.NotContains(t, got, "~")
	assert.Contains(t, got, filepath.Join(".bmad-assist", "config.yaml"))
}

func TestContains_RejectsEscape(t *testing.T) {
	ok, err := Contains("/proj", "/proj/docs/epics")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Contains("/proj", "/proj/../etc/passwd")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Contains("/proj", "/other/dir")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContains_RootItself(t *testing.T) {
	ok, err := Contains("/proj", "/proj")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEpicID_YAMLRoundTrip_Numeric(t *testing.T) {
	epic := NewEpicNum(7)

	data, err := yaml.Marshal(epic)
	require.NoError(t, err)
	assert.Equal(t, "7\n", string(data))

	var decoded EpicID
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, epic, decoded)
}

func TestEpicID_YAMLRoundTrip_Tag(t *testing.T) {
	epic := NewEpicTag("testarch")

	data, err := yaml.Marshal(epic)
	require.NoError(t, err)

	var decoded EpicID
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, epic, decoded)
}

func TestEpicID_YAMLRoundTrip_List(t *testing.T) {
	list := []EpicID{NewEpicNum(1), NewEpicTag("testarch"), NewEpicNum(2)}

	data, err := yaml.Marshal(list)
	require.NoError(t, err)

	var decoded []EpicID
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, list, decoded)
}
