package sprint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// WriteAtomic writes merged to path, preserving the original document's
// comments and key order wherever possible: if original carries a parsed
// node tree (original.doc != nil), the development_status and epic_meta
// mapping nodes are rebuilt from merged's entries (reusing each existing
// key/value node pair's style and comments when the key survived the
// merge) and spliced back into the original tree; every other top-level key
// is left untouched. If original has no node tree (first-ever write), a
// fresh document is built from scratch.
//
// The write itself is atomic: temp file in the same directory, then
// rename, mirroring internal/state/store.go's writeAtomic.
func WriteAtomic(path string, merged *SprintStatus, original *SprintStatus) error {
	var doc *yaml.Node
	if original != nil && original.doc != nil {
		doc = original.doc
		root, err := rootMapping(doc)
		if err != nil {
			return err
		}
		spliceMapping(root, "development_status", buildEntriesNode(merged.Entries, originalEntriesNode(original)))
		spliceMapping(root, "epic_meta", buildEpicMetaNode(merged.EpicMeta, originalEpicMetaNode(original)))
	} else {
		doc = freshDocumentNode(merged)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("sprint: encoding sprint-status: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sprint: creating directory %q: %w", dir, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("sprint: writing temp file %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("sprint: renaming temp file to %q: %w", path, err)
	}
	return nil
}

// originalEntriesNode returns the original document's development_status
// mapping node, or nil if absent.
func originalEntriesNode(original *SprintStatus) *yaml.Node {
	if original == nil || original.doc == nil {
		return nil
	}
	root, err := rootMapping(original.doc)
	if err != nil {
		return nil
	}
	return findMappingValue(root, "development_status")
}

func originalEpicMetaNode(original *SprintStatus) *yaml.Node {
	if original == nil || original.doc == nil {
		return nil
	}
	root, err := rootMapping(original.doc)
	if err != nil {
		return nil
	}
	return findMappingValue(root, "epic_meta")
}

func findMappingValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i < len(mapping.Content)-1; i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// spliceMapping replaces (or appends) key's value node within root.
func spliceMapping(root *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i < len(root.Content)-1; i += 2 {
		if root.Content[i].Value == key {
			root.Content[i+1] = value
			return
		}
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
	root.Content = append(root.Content, keyNode, value)
}

// buildEntriesNode rebuilds the development_status mapping node in
// merged-entry order, reusing each surviving key's original value node (so
// its comments/style persist) and creating plain scalar nodes for new keys.
func buildEntriesNode(entries []Entry, original *yaml.Node) *yaml.Node {
	originalPairs := map[string]*yaml.Node{}
	if original != nil {
		for i := 0; i < len(original.Content)-1; i += 2 {
			originalPairs[original.Content[i].Value] = original.Content[i+1]
		}
	}

	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range entries {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: e.Key}
		var valNode *yaml.Node
		if orig, ok := originalPairs[e.Key]; ok {
			valNode = &yaml.Node{
				Kind:        yaml.ScalarNode,
				Style:       orig.Style,
				Tag:         "!!str",
				Value:       e.Value,
				LineComment: orig.LineComment,
				HeadComment: orig.HeadComment,
			}
		} else {
			valNode = &yaml.Node{Kind: yaml.ScalarNode, Value: e.Value}
		}
		mapping.Content = append(mapping.Content, keyNode, valNode)
	}
	return mapping
}

func buildEpicMetaNode(meta map[string]string, original *yaml.Node) *yaml.Node {
	originalPairs := map[string]*yaml.Node{}
	if original != nil {
		for i := 0; i < len(original.Content)-1; i += 2 {
			originalPairs[original.Content[i].Value] = original.Content[i+1]
		}
	}

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: k}
		var valNode *yaml.Node
		if orig, ok := originalPairs[k]; ok {
			valNode = &yaml.Node{Kind: yaml.ScalarNode, Style: orig.Style, Tag: "!!str", Value: meta[k], LineComment: orig.LineComment}
		} else {
			valNode = &yaml.Node{Kind: yaml.ScalarNode, Value: meta[k]}
		}
		mapping.Content = append(mapping.Content, keyNode, valNode)
	}
	return mapping
}

// freshDocumentNode builds a brand-new sprint-status document node when no
// prior file existed to preserve.
func freshDocumentNode(merged *SprintStatus) *yaml.Node {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	appendScalar := func(key, value string) {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: value},
		)
	}
	appendScalar("generated", merged.Generated)
	appendScalar("project", merged.Project)
	if merged.StoryLocation != "" {
		appendScalar("story_location", merged.StoryLocation)
	}

	root.Content = append(root.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: "development_status"},
		buildEntriesNode(merged.Entries, nil),
	)
	root.Content = append(root.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: "epic_meta"},
		buildEpicMetaNode(merged.EpicMeta, nil),
	)

	return &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
}
