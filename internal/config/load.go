package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bmad-assist/bmad-assist-go/internal/bmaderr"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

// Load performs a two-layer deep merge: built-in defaults, overridden by
// ~/.bmad-assist/config.yaml (if present), overridden by
// {projectRoot}/bmad-assist.yaml (if present).
//
// Missing files are silently skipped. If BOTH the global and project files
// are missing, Load fails with a ConfigError suggesting `bmad-assist init`.
func Load(projectRoot string) (*Config, error) {
	p := paths.New(projectRoot)

	globalPath, err := p.GlobalConfig()
	if err != nil {
		return nil, &bmaderr.ConfigError{Path: "~/.bmad-assist/config.yaml", Err: err}
	}
	projectPath := p.ProjectConfig()

	globalRaw, globalFound, err := readYAMLMap(globalPath)
	if err != nil {
		return nil, &bmaderr.ConfigError{Path: globalPath, Err: err}
	}
	projectRaw, projectFound, err := readYAMLMap(projectPath)
	if err != nil {
		return nil, &bmaderr.ConfigError{Path: projectPath, Err: err}
	}

	if !globalFound && !projectFound {
		return nil, &bmaderr.ConfigError{
			Path: projectPath,
			Hint: "no configuration found; run `bmad-assist init` to create one",
			Err:  os.ErrNotExist,
		}
	}

	defaultsRaw, err := toMap(NewDefaults())
	if err != nil {
		return nil, &bmaderr.ConfigError{Path: projectPath, Err: err}
	}

	merged := deepMerge(defaultsRaw, globalRaw)
	merged = deepMerge(merged, projectRaw)

	cfg := &Config{}
	if err := fromMap(merged, cfg); err != nil {
		return nil, &bmaderr.ConfigError{Path: projectPath, Hint: "merged configuration failed to decode", Err: err}
	}

	return cfg, nil
}

// readYAMLMap reads and parses a YAML file into a generic map. A missing
// file returns (nil, false, nil): the caller treats it as "skip this layer".
func readYAMLMap(path string) (map[string]any, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}

	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, true, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, true, nil
}

// toMap round-trips a Config through YAML to obtain its generic map
// representation, so it can participate in deepMerge alongside file-sourced
// maps.
func toMap(cfg *Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// fromMap decodes a merged generic map back into a typed Config.
func fromMap(m map[string]any, cfg *Config) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
