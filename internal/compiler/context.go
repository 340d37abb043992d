package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// EmbedContext discovers files under root matching any of patterns (relative,
// doublestar-capable globs) and returns them ordered by recency bias:
// files matching a more general (shorter, fewer path segments) pattern sort
// before files matching a more specific one, and within equal specificity
// files sort lexically for determinism.
func EmbedContext(root string, patterns []string, maxFileBytes int) ([]EmbeddedFile, error) {
	type candidate struct {
		path        string
		specificity int
	}

	seen := make(map[string]bool)
	var candidates []candidate

	for _, pattern := range patterns {
		matches, err := doublestar.Glob(os.DirFS(root), pattern)
		if err != nil {
			return nil, fmt.Errorf("compiler: globbing pattern %q: %w", pattern, err)
		}
		spec := specificity(pattern)
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			candidates = append(candidates, candidate{path: m, specificity: spec})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].specificity != candidates[j].specificity {
			return candidates[i].specificity < candidates[j].specificity
		}
		return candidates[i].path < candidates[j].path
	})

	files := make([]EmbeddedFile, 0, len(candidates))
	for _, c := range candidates {
		full := filepath.Join(root, c.path)
		info, err := os.Stat(full)
		if err != nil {
			return nil, fmt.Errorf("compiler: stat %q: %w", full, err)
		}
		if info.IsDir() {
			continue
		}

		data, err := os.ReadFile(full)
		if err != nil {
			return nil, fmt.Errorf("compiler: reading %q: %w", full, err)
		}
		content := string(data)
		if maxFileBytes > 0 && len(content) > maxFileBytes {
			content = content[:maxFileBytes] + "\n...[truncated]"
		}
		files = append(files, EmbeddedFile{Path: c.path, Content: content})
	}

	return files, nil
}

// specificity scores a glob pattern by how many literal (non-wildcard) path
// segments it has, so "docs/*.md" (1 literal segment) ranks more general
// than "docs/epics/epic-1-*.md" (2 literal segments) and embeds first.
func specificity(pattern string) int {
	segments := strings.Split(pattern, "/")
	n := 0
	for _, seg := range segments {
		if !strings.ContainsAny(seg, "*?[{") {
			n++
		}
	}
	return n
}
