package sprint

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry is a single development_status key-value pair, classified by key
// pattern, in document order.
type Entry struct {
	Key   string
	Value string
	Type  EntryType
}

// SprintStatus is the parsed, round-trippable representation of
// sprint-status.yaml: the metadata header, the ordered development_status
// entries, the epic_meta section, and the raw document node so a later
// Write call can mutate values in place without disturbing comments or key
// order of everything else.
type SprintStatus struct {
	Generated     string
	Project       string
	StoryLocation string

	Entries  []Entry
	EpicMeta map[string]string

	// doc is the full parsed document; nil for a freshly constructed
	// (not-yet-on-disk) SprintStatus.
	doc *yaml.Node
}

// New returns an empty SprintStatus, used when no sprint-status.yaml exists
// on disk yet (compiler.ResolveSprintStatusPath returned "none").
func New() *SprintStatus {
	return &SprintStatus{EpicMeta: map[string]string{}}
}

// Parse reads and parses path, preserving development_status key order and
// the document's comments/node structure for a later round-trip write.
func Parse(path string) (*SprintStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sprint: reading %q: %w", path, err)
	}
	return ParseBytes(data)
}

// ParseBytes parses sprint-status YAML from an in-memory byte slice.
func ParseBytes(data []byte) (*SprintStatus, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("sprint: parsing yaml: %w", err)
	}

	ss := &SprintStatus{EpicMeta: map[string]string{}, doc: &doc}

	root, err := rootMapping(&doc)
	if err != nil {
		return nil, err
	}

	for i := 0; i < len(root.Content)-1; i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "generated":
			ss.Generated = val.Value
		case "project":
			ss.Project = val.Value
		case "story_location":
			ss.StoryLocation = val.Value
		case "development_status":
			entries, err := extractEntries(val)
			if err != nil {
				return nil, err
			}
			ss.Entries = entries
		case "epic_meta":
			meta, err := extractStringMap(val)
			if err != nil {
				return nil, err
			}
			ss.EpicMeta = meta
		}
	}

	return ss, nil
}

func rootMapping(doc *yaml.Node) (*yaml.Node, error) {
	root := doc
	if len(doc.Content) > 0 {
		root = doc.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("sprint: expected root mapping node")
	}
	return root, nil
}

func extractEntries(mapping *yaml.Node) ([]Entry, error) {
	if mapping.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("sprint: development_status must be a mapping")
	}
	var entries []Entry
	for i := 0; i < len(mapping.Content)-1; i += 2 {
		k, v := mapping.Content[i], mapping.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			continue
		}
		entries = append(entries, Entry{Key: k.Value, Value: v.Value, Type: classifyEntry(k.Value)})
	}
	return entries, nil
}

func extractStringMap(mapping *yaml.Node) (map[string]string, error) {
	out := map[string]string{}
	if mapping.Kind != yaml.MappingNode {
		return out, nil
	}
	for i := 0; i < len(mapping.Content)-1; i += 2 {
		k, v := mapping.Content[i], mapping.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			continue
		}
		out[k.Value] = v.Value
	}
	return out, nil
}

// Get returns the value and presence of key among Entries.
func (s *SprintStatus) Get(key string) (string, bool) {
	for _, e := range s.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}
