// Package config loads and validates bmad-assist's two-layer YAML
// configuration: a user-global file at ~/.bmad-assist/config.yaml and a
// project-local bmad-assist.yaml, deep-merged with the project taking
// precedence.
package config

// Config is the top-level configuration structure, mapping to both
// ~/.bmad-assist/config.yaml and bmad-assist.yaml.
type Config struct {
	Project      ProjectConfig             `yaml:"project"`
	Providers    map[string]ProviderConfig `yaml:"providers"`
	Review       ReviewConfig              `yaml:"review"`
	Workflows    map[string]WorkflowConfig `yaml:"workflows" bmad:"risky"`
	PowerPrompts PowerPromptsConfig        `yaml:"power_prompts"`
	Dashboard    DashboardConfig           `yaml:"dashboard"`
	QA           QAConfig                  `yaml:"qa"`
	Notify       NotifyConfig              `yaml:"notify"`
	Testarch     TestarchConfig            `yaml:"testarch"`
	Sprint       SprintConfig              `yaml:"sprint"`
}

// SprintConfig configures the Sprint-Status Reconciler's divergence-driven
// repair behavior.
type SprintConfig struct {
	// DivergenceThreshold is the changed/total entry ratio at or above which
	// the reconciler requires operator confirmation instead of applying the
	// merge automatically.
	DivergenceThreshold float64 `yaml:"divergence_threshold" bmad:"safe"`
}

// TestarchConfig gates the optional ATDD and TEST_REVIEW phases and the
// RETROSPECTIVE phase's non-blocking trace pre-step.
type TestarchConfig struct {
	Enabled bool `yaml:"enabled" bmad:"safe"`
}

// ProjectConfig holds project identity and layout settings. All fields are
// safe: they describe where things live, not secrets.
type ProjectConfig struct {
	Name                 string   `yaml:"name" bmad:"safe"`
	Language             string   `yaml:"language" bmad:"safe"`
	TasksDir             string   `yaml:"tasks_dir" bmad:"safe"`
	LogDir               string   `yaml:"log_dir" bmad:"safe"`
	PromptDir            string   `yaml:"prompt_dir" bmad:"safe"`
	BranchTemplate       string   `yaml:"branch_template" bmad:"risky"`
	VerificationCommands []string `yaml:"verification_commands" bmad:"risky"`

	// Master names the provider (a key into Config.Providers) that acts as
	// the single-provider phases' and synthesis phases' master, e.g. "claude".
	Master string `yaml:"master" bmad:"safe"`
}

// ProviderConfig configures one LLM provider CLI (claude, codex, gemini).
// Command and AllowedTools are classified dangerous/risky respectively:
// Command names an executable bmad-assist will invoke as a subprocess.
type ProviderConfig struct {
	Command        string `yaml:"command" bmad:"dangerous"`
	Model          string `yaml:"model" bmad:"safe"`
	Effort         string `yaml:"effort" bmad:"safe"`
	PromptTemplate string `yaml:"prompt_template" bmad:"risky"`
	AllowedTools   string `yaml:"allowed_tools" bmad:"risky"`
	TimeoutSec     int    `yaml:"timeout_sec" bmad:"safe"`
}

// ReviewConfig configures the code-review phase handlers.
type ReviewConfig struct {
	Extensions       string `yaml:"extensions" bmad:"safe"`
	RiskPatterns     string `yaml:"risk_patterns" bmad:"risky"`
	PromptsDir       string `yaml:"prompts_dir" bmad:"safe"`
	RulesDir         string `yaml:"rules_dir" bmad:"safe"`
	ProjectBriefFile string `yaml:"project_brief_file" bmad:"safe"`
	Evaluators       []string `yaml:"evaluators" bmad:"risky"`
	MinEvaluators    int      `yaml:"min_evaluators" bmad:"risky"`
}

// WorkflowConfig configures a single named workflow's compiled graph. Risky:
// changing Steps/Transitions can break the phase graph.
type WorkflowConfig struct {
	Description string                       `yaml:"description" bmad:"safe"`
	Steps       []string                     `yaml:"steps" bmad:"risky"`
	Transitions map[string]map[string]string `yaml:"transitions" bmad:"risky"`
}

// PowerPromptsConfig holds the workflow-variable overrides consulted during
// compilation. Variables deep-merges at every level (unlike most maps,
// which simply replace on override).
type PowerPromptsConfig struct {
	Variables map[string]any `yaml:"variables" bmad:"risky"`
}

// DashboardConfig configures the SSE dashboard HTTP server.
type DashboardConfig struct {
	Host           string   `yaml:"host" bmad:"safe"`
	Port           int      `yaml:"port" bmad:"safe"`
	NoAutoPort     bool     `yaml:"no_auto_port" bmad:"safe"`
	CORSOrigins    []string `yaml:"cors_origins" bmad:"risky"`
	MaxImportBytes int      `yaml:"max_import_bytes" bmad:"safe"`
}

// QAConfig configures QA plan generation/execution defaults.
type QAConfig struct {
	Enabled       bool `yaml:"enabled" bmad:"safe"`
	Batch         bool `yaml:"batch" bmad:"safe"`
	BatchSize     int  `yaml:"batch_size" bmad:"safe"`
	TimeoutSec    int  `yaml:"timeout_sec" bmad:"safe"`
	MaxRemediateIterations int `yaml:"max_remediate_iterations" bmad:"safe"`
}

// NotifyConfig configures outbound notification sinks. Webhook URLs are
// dangerous: they are effectively credentials and must never be exported.
type NotifyConfig struct {
	Enabled     bool     `yaml:"enabled" bmad:"safe"`
	Sinks       []string `yaml:"sinks" bmad:"risky"`
	WebhookURL  string   `yaml:"webhook_url" bmad:"dangerous"`
	SlackToken  string   `yaml:"slack_token" bmad:"dangerous"`
}
