package compiler

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/bmad-assist/bmad-assist-go/internal/bmaderr"
)

// approxCharsPerToken is a conservative estimate used to size prompts
// against a token budget without invoking a real tokenizer; providers
// enforce their own exact limits, this is a pre-flight guard.
const approxCharsPerToken = 4

// EstimateTokens approximates a token count from byte length.
func EstimateTokens(s string) int {
	return len(s) / approxCharsPerToken
}

// Emit assembles the final XML prompt from its four sections and validates
// the result against budget. Exceeding the hard limit is an error;
// exceeding the soft limit (and not the hard one) only logs a warning.
func Emit(cw *CompiledWorkflow, budget TokenBudget, patchApplied bool, logger *log.Logger) error {
	var b strings.Builder

	b.WriteString("<task-context>\n")
	b.WriteString(cw.Mission)
	b.WriteString("\n</task-context>\n")

	for _, f := range cw.Context {
		b.WriteString(fmt.Sprintf("<source-document path=%q>\n", f.Path))
		b.WriteString(f.Content)
		b.WriteString("\n</source-document>\n")
	}

	b.WriteString("<instructions>\n")
	b.WriteString(cw.Instructions)
	b.WriteString("\n</instructions>\n")

	if cw.OutputTemplate != "" {
		b.WriteString("<output-format>\n")
		b.WriteString(cw.OutputTemplate)
		b.WriteString("\n</output-format>\n")
	}

	prompt := b.String()
	cw.Prompt = prompt
	cw.TokenEstimate = EstimateTokens(prompt)

	hard := budget.Hard
	soft := budget.Soft
	if soft == 0 && hard > 0 {
		soft = DefaultSoftBudget(hard)
	}

	if hard > 0 && cw.TokenEstimate > hard {
		return &bmaderr.CompilerError{
			Workflow: cw.WorkflowName,
			Stage:    "emission",
			Err:      fmt.Errorf("prompt estimated at %d tokens exceeds hard budget %d", cw.TokenEstimate, hard),
		}
	}
	if soft > 0 && cw.TokenEstimate > soft && logger != nil {
		logger.Warn("prompt exceeds soft token budget",
			"workflow", cw.WorkflowName, "estimated", cw.TokenEstimate, "soft", soft, "hard", hard)
	}

	if ContainsAsk(prompt) && !patchApplied && logger != nil {
		logger.Error("CRITICAL: compiled prompt still contains <ask> elements; "+
			"subprocess mode will hang waiting for interactive input",
			"workflow", cw.WorkflowName)
	}

	return nil
}
