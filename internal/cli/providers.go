package cli

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/bmad-assist/bmad-assist-go/internal/config"
	"github.com/bmad-assist/bmad-assist-go/internal/provider"
)

// buildProviderRegistry instantiates a provider.Provider for each entry in
// cfg.Providers and registers it, keyed by its adapter Name() ("claude",
// "codex", "gemini"). The config map key must match the adapter it
// configures; unrecognized keys are rejected rather than silently ignored.
func buildProviderRegistry(cfg *config.Config, logger *log.Logger) (*provider.Registry, error) {
	reg := provider.NewRegistry()
	for name, pc := range cfg.Providers {
		adapterCfg := provider.Config{
			Command:      pc.Command,
			Model:        pc.Model,
			Effort:       pc.Effort,
			AllowedTools: pc.AllowedTools,
			TimeoutSec:   pc.TimeoutSec,
		}

		var p provider.Provider
		switch name {
		case "claude":
			p = provider.NewClaude(adapterCfg, logger)
		case "codex":
			p = provider.NewCodex(adapterCfg, logger)
		case "gemini":
			p = provider.NewGemini(adapterCfg, logger)
		default:
			return nil, fmt.Errorf("providers: unrecognized provider %q (must be claude, codex, or gemini)", name)
		}

		if err := reg.Register(p); err != nil {
			return nil, fmt.Errorf("providers: registering %q: %w", name, err)
		}
	}
	return reg, nil
}
