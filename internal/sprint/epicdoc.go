package sprint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

// EpicDoc is an epic document's parsed YAML frontmatter.
type EpicDoc struct {
	EpicNum string `yaml:"epic_num"`
	Title   string `yaml:"title"`
	Status  string `yaml:"status"`

	Path string `yaml:"-"`
}

// ReadEpicDocs globs docs/epics/epic-*-*.md under p and parses each file's
// frontmatter. Files without a parsable frontmatter block are skipped, not
// treated as fatal: a malformed epic doc shouldn't block reconciliation of
// every other epic.
func ReadEpicDocs(p *paths.Paths) ([]EpicDoc, error) {
	matches, err := filepath.Glob(filepath.Join(p.EpicsDir(), "epic-*-*.md"))
	if err != nil {
		return nil, fmt.Errorf("sprint: globbing epic docs: %w", err)
	}

	var docs []EpicDoc
	for _, m := range matches {
		doc, ok, err := readEpicDoc(m)
		if err != nil {
			return nil, err
		}
		if ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func readEpicDoc(path string) (EpicDoc, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EpicDoc{}, false, fmt.Errorf("sprint: reading epic doc %q: %w", path, err)
	}

	front, ok := extractFrontmatter(string(data))
	if !ok {
		return EpicDoc{}, false, nil
	}

	var doc EpicDoc
	if err := yaml.Unmarshal([]byte(front), &doc); err != nil {
		// Unparsable frontmatter is skipped like a missing block.
		return EpicDoc{}, false, nil
	}
	doc.Path = path
	return doc, true, nil
}

// extractFrontmatter pulls the "---\n...\n---" YAML block from the top of a
// markdown document.
func extractFrontmatter(content string) (string, bool) {
	const delim = "---"
	if !strings.HasPrefix(content, delim) {
		return "", false
	}
	rest := content[len(delim):]
	rest = strings.TrimPrefix(rest, "\n")
	end := strings.Index(rest, "\n"+delim)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}
