package sprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyEntry(t *testing.T) {
	cases := []struct {
		key  string
		want EntryType
	}{
		{"3-2-add-login", EntryEpicStory},
		{"12-1-something-long-slug", EntryEpicStory},
		{"testarch-1-trace-coverage", EntryModuleStory},
		{"epic-3", EntryEpicMeta},
		{"epic-testarch", EntryEpicMeta},
		{"epic-3-retro", EntryRetrospective},
		{"epic-3-retrospective", EntryRetrospective},
		{"notes", EntryStandalone},
		{"", EntryUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, classifyEntry(c.key), "key=%q", c.key)
	}
}

func TestEpicOfStoryKey(t *testing.T) {
	assert.Equal(t, "3", epicOfStoryKey("3-2-add-login"))
	assert.Equal(t, "testarch", epicOfStoryKey("testarch-1-trace"))
	assert.Equal(t, "nodash", epicOfStoryKey("nodash"))
}
