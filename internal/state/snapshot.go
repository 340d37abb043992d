package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bmad-assist/bmad-assist-go/internal/config"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

// EffectiveConfigSnapshot is the document written to
// _bmad-output/effective-config-{timestamp}.yaml on every run start.
// Dangerous fields in Config have already been redacted by the time this
// is written.
type EffectiveConfigSnapshot struct {
	ToolVersion string         `yaml:"tool_version"`
	SnapshotAt  time.Time      `yaml:"snapshot_at"`
	ProjectName string         `yaml:"project_name"`
	Config      *config.Config `yaml:"config"`
}

// WriteEffectiveConfigSnapshot redacts cfg and writes it alongside run
// metadata to _bmad-output/effective-config-{timestamp}.yaml. A failure
// here must never abort the run: callers should log the returned error as
// a warning and continue.
func WriteEffectiveConfigSnapshot(p *paths.Paths, cfg *config.Config, toolVersion string, now time.Time) error {
	now = now.UTC()
	snap := EffectiveConfigSnapshot{
		ToolVersion: toolVersion,
		SnapshotAt:  now,
		ProjectName: cfg.Project.Name,
		Config:      config.Redact(cfg),
	}

	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding effective-config snapshot: %w", err)
	}

	timestamp := now.Format("2006-01-02T15:04:05.000000Z07:00")
	dest := p.EffectiveConfigSnapshot(timestamp)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating output directory for snapshot: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("writing effective-config snapshot %q: %w", dest, err)
	}
	return nil
}
