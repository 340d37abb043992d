package bench

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeAtomic writes data to path via a temp-file-plus-rename, the same
// discipline internal/state.Store and internal/sprint.WriteAtomic use for
// every shared artifact under _bmad-output/.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating benchmark directory %q: %w", dir, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp benchmark file %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming temp benchmark file to %q: %w", path, err)
	}
	return nil
}
