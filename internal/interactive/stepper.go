// Package interactive implements the DEBUG-mode operator prompt the Loop
// Runner consults between phases: next / interactive / quit.
package interactive

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
)

const (
	ActionNext        = "next"
	ActionInteractive = "interactive"
	ActionQuit        = "quit"
)

// Stepper is a loop.DebugStepper implementation built on a standalone huh
// form per prompt, the same RunWizard-style "build a form, Run it, map
// ErrUserAborted to cancellation" shape the pipeline wizard uses. It does
// not import internal/loop: DebugStepper is a one-method structural
// interface and importing it here would pull the loop package into the
// interactive CLI surface for no benefit.
type Stepper struct {
	// PhaseLabel names the phase that just completed, shown in the prompt
	// title. The caller sets it before each Step call.
	PhaseLabel string
}

// Step blocks for operator input and returns the chosen action plus, for
// ActionInteractive, the free-form text to feed the master provider.
func (s *Stepper) Step(ctx context.Context) (string, string, error) {
	action := ActionNext
	if err := runActionForm(stepTitle(s.PhaseLabel), &action); err != nil {
		return mapStepError(err)
	}
	if action != ActionInteractive {
		return action, "", nil
	}

	var freeform string
	if err := runFreeformForm(&freeform); err != nil {
		act, _, mapErr := mapStepError(err)
		return act, "", mapErr
	}
	return ActionInteractive, freeform, nil
}

func stepTitle(phaseLabel string) string {
	if phaseLabel == "" {
		return "Next phase"
	}
	return fmt.Sprintf("%s complete", phaseLabel)
}

// mapStepError turns a huh form error into the (action, freeform, err)
// triple Step returns: a user abort (Ctrl+C/Esc) is treated as "quit"
// rather than a hard error, mirroring RunWizard's ErrWizardCancelled
// handling.
func mapStepError(err error) (string, string, error) {
	if errors.Is(err, huh.ErrUserAborted) {
		return ActionQuit, "", nil
	}
	return "", "", fmt.Errorf("interactive: stepper: %w", err)
}

func runActionForm(title string, action *string) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Description("Choose how to proceed.").
				Options(
					huh.NewOption("Next phase", ActionNext),
					huh.NewOption("Interactive prompt", ActionInteractive),
					huh.NewOption("Quit", ActionQuit),
				).
				Value(action),
		),
	).WithTheme(huh.ThemeCharm()).Run()
}

func runFreeformForm(freeform *string) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Freeform prompt").
				Description("Sent to the master provider before the next phase runs.").
				Value(freeform),
		),
	).WithTheme(huh.ThemeCharm()).Run()
}
