package config

// NewDefaults returns a Config populated with bmad-assist's built-in
// defaults. These are the base layer beneath the global and project YAML
// files in the deep-merge chain.
func NewDefaults() *Config {
	return &Config{
		Project: ProjectConfig{
			Language:  "unknown",
			TasksDir:  "docs/epics",
			LogDir:    "_bmad-output",
			PromptDir: "prompts",
			Master:    "claude",
		},
		Providers: map[string]ProviderConfig{
			"claude": {
				Command:    "claude",
				Effort:     "medium",
				TimeoutSec: 1800,
			},
			"codex": {
				Command:    "codex",
				Effort:     "medium",
				TimeoutSec: 1800,
			},
			"gemini": {
				Command:    "gemini",
				Effort:     "medium",
				TimeoutSec: 1800,
			},
		},
		Review: ReviewConfig{
			Extensions:    `\.(go|py|ts|tsx|js|jsx|rs|java)$`,
			Evaluators:    []string{"claude", "codex"},
			MinEvaluators: 1,
		},
		Workflows: map[string]WorkflowConfig{},
		PowerPrompts: PowerPromptsConfig{
			Variables: map[string]any{},
		},
		Dashboard: DashboardConfig{
			Host:           "127.0.0.1",
			Port:           8420,
			MaxImportBytes: 1 << 20,
		},
		QA: QAConfig{
			BatchSize:              5,
			TimeoutSec:             120,
			MaxRemediateIterations: 3,
		},
		Notify: NotifyConfig{},
		Sprint: SprintConfig{
			DivergenceThreshold: 0.3,
		},
	}
}
