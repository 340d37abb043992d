package loop

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/bmad-assist/bmad-assist-go/internal/config"
)

// encodeConfigSnapshot marshals the effective configuration to YAML for the
// audit snapshot written at the start of every run, with dangerous fields
// redacted by config.Redact.
func encodeConfigSnapshot(cfg *config.Config) ([]byte, error) {
	data, err := yaml.Marshal(config.Redact(cfg))
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}

// writeSnapshot writes data to path atomically via temp-file-then-rename,
// mirroring internal/state.Store.writeAtomic.
func writeSnapshot(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory %q: %w", dir, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp snapshot file %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming temp snapshot file to %q: %w", path, err)
	}
	return nil
}
