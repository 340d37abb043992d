package compiler

import (
	"os"
	"path/filepath"

	"github.com/bmad-assist/bmad-assist-go/internal/bmaderr"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

// ResolveSprintStatusPath implements step 4: exactly one of two canonical
// sprint-status locations may exist. Both existing is an ambiguity error;
// neither existing resolves to the literal value "none".
func ResolveSprintStatusPath(p *paths.Paths) (string, error) {
	canonical := p.SprintStatusFile()
	legacy := filepath.Join(p.ProjectRoot, "sprint-status.yaml")

	canonicalExists := fileExists(canonical)
	legacyExists := fileExists(legacy) && legacy != canonical

	switch {
	case canonicalExists && legacyExists:
		return "", &bmaderr.AmbiguousFileError{
			What:       "sprint-status.yaml",
			Candidates: []string{canonical, legacy},
		}
	case canonicalExists:
		return canonical, nil
	case legacyExists:
		return legacy, nil
	default:
		return "none", nil
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
