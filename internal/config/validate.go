package config

import (
	"fmt"
	"regexp"

	"github.com/bmad-assist/bmad-assist-go/internal/bmaderr"
)

var validEfforts = map[string]bool{
	"":       true,
	"low":    true,
	"medium": true,
	"high":   true,
}

// Validate performs strict, typed validation of cfg. It returns a
// *bmaderr.ConfigValidationError (wrapped as plain error) carrying every
// violation found, or nil if cfg is well-formed. Unlike the informal
// warning-or-error split of a linter, every violation here is fatal: a
// config that fails Validate must not be used to start a run.
func Validate(cfg *Config) error {
	var errs []bmaderr.FieldError

	if cfg.Project.Name == "" {
		errs = append(errs, bmaderr.FieldError{Loc: "project.name", Msg: "must not be empty", Kind: "missing"})
	}

	for name, p := range cfg.Providers {
		loc := "providers." + name
		if p.Command == "" {
			errs = append(errs, bmaderr.FieldError{Loc: loc + ".command", Msg: "must not be empty", Kind: "missing"})
		}
		if !validEfforts[p.Effort] {
			errs = append(errs, bmaderr.FieldError{
				Loc:  loc + ".effort",
				Msg:  fmt.Sprintf("unrecognized effort %q; must be one of low, medium, high", p.Effort),
				Kind: "invalid",
			})
		}
		if p.TimeoutSec < 0 {
			errs = append(errs, bmaderr.FieldError{Loc: loc + ".timeout_sec", Msg: "must not be negative", Kind: "invalid"})
		}
	}

	if cfg.Review.Extensions != "" {
		if _, err := regexp.Compile(cfg.Review.Extensions); err != nil {
			errs = append(errs, bmaderr.FieldError{
				Loc: "review.extensions", Msg: fmt.Sprintf("invalid regex: %v", err), Kind: "invalid",
			})
		}
	}
	if cfg.Review.RiskPatterns != "" {
		if _, err := regexp.Compile(cfg.Review.RiskPatterns); err != nil {
			errs = append(errs, bmaderr.FieldError{
				Loc: "review.risk_patterns", Msg: fmt.Sprintf("invalid regex: %v", err), Kind: "invalid",
			})
		}
	}
	if cfg.Review.MinEvaluators < 0 {
		errs = append(errs, bmaderr.FieldError{Loc: "review.min_evaluators", Msg: "must not be negative", Kind: "invalid"})
	}
	if cfg.Review.MinEvaluators > len(cfg.Review.Evaluators) && len(cfg.Review.Evaluators) > 0 {
		errs = append(errs, bmaderr.FieldError{
			Loc:  "review.min_evaluators",
			Msg:  "exceeds the number of configured evaluators",
			Kind: "invalid",
		})
	}

	for name, wf := range cfg.Workflows {
		loc := "workflows." + name
		if len(wf.Steps) == 0 {
			errs = append(errs, bmaderr.FieldError{Loc: loc + ".steps", Msg: "must not be empty", Kind: "missing"})
			continue
		}
		stepSet := make(map[string]bool, len(wf.Steps))
		for _, s := range wf.Steps {
			stepSet[s] = true
		}
		for from, events := range wf.Transitions {
			if !stepSet[from] {
				errs = append(errs, bmaderr.FieldError{
					Loc: loc + ".transitions." + from, Msg: "references undefined step", Kind: "invalid",
				})
			}
			for event, to := range events {
				if !stepSet[to] {
					errs = append(errs, bmaderr.FieldError{
						Loc:  loc + ".transitions." + from + "." + event,
						Msg:  fmt.Sprintf("target %q is not a defined step", to),
						Kind: "invalid",
					})
				}
			}
		}
	}

	if cfg.Dashboard.Port < 0 || cfg.Dashboard.Port > 65535 {
		errs = append(errs, bmaderr.FieldError{Loc: "dashboard.port", Msg: "must be between 0 and 65535", Kind: "invalid"})
	}

	if cfg.QA.BatchSize < 0 {
		errs = append(errs, bmaderr.FieldError{Loc: "qa.batch_size", Msg: "must not be negative", Kind: "invalid"})
	}
	if cfg.QA.MaxRemediateIterations < 0 {
		errs = append(errs, bmaderr.FieldError{
			Loc: "qa.max_remediate_iterations", Msg: "must not be negative", Kind: "invalid",
		})
	}

	if len(errs) == 0 {
		return nil
	}
	return &bmaderr.ConfigValidationError{Errors: errs}
}
