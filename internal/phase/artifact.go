package phase

import (
	"fmt"
	"os"
	"path/filepath"
)

// readFileIfExists returns a file's content, or "" with no error if the
// file does not exist.
func readFileIfExists(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading %q: %w", path, err)
	}
	return string(content), nil
}

// writeArtifact atomically writes content to path via a temp-file-plus-
// rename, mirroring internal/state.Store's write discipline for every
// shared artifact under _bmad-output/.
func writeArtifact(path string, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory %q: %w", dir, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing temp artifact %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming temp artifact to %q: %w", path, err)
	}
	return nil
}
