package phase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bmad-assist/bmad-assist-go/internal/bench"
	"github.com/bmad-assist/bmad-assist-go/internal/compiler"
	"github.com/bmad-assist/bmad-assist-go/internal/config"
	"github.com/bmad-assist/bmad-assist-go/internal/qa"
	"github.com/bmad-assist/bmad-assist-go/internal/state"
)

// Registry maps every state.Phase to the Handler that implements it.
type Registry map[state.Phase]Handler

// Get returns the handler wired for p, or an error if none is registered —
// a wiring bug, since every state.Phase in state.Ordered must have a Handler.
func (r Registry) Get(p state.Phase) (Handler, error) {
	h, ok := r[p]
	if !ok {
		return nil, fmt.Errorf("phase: no handler wired for %s", p)
	}
	return h, nil
}

// parseStoryKey splits a story key of the form "{epic}-{story}-{slug}"
// (e.g. "3-2-add-login") into its story number and slug.
func parseStoryKey(storyKey string) (storyNum int, slug string, err error) {
	parts := strings.SplitN(storyKey, "-", 3)
	if len(parts) < 3 {
		return 0, "", fmt.Errorf("malformed story key %q", storyKey)
	}
	n, convErr := strconv.Atoi(parts[1])
	if convErr != nil {
		return 0, "", fmt.Errorf("malformed story key %q: story segment not numeric: %w", storyKey, convErr)
	}
	return n, parts[2], nil
}

// compilePrompt runs in.CompilerCtx through internal/compiler's pipeline
// for the named workflow and returns the resulting prompt text. Every
// provider-invoking handler's BuildPrompt funnels through this.
func compilePrompt(in *Input, workflowName string, spec compiler.HandlerSpec, params map[string]string) (string, error) {
	if in.CompilerCtx == nil {
		return "", fmt.Errorf("no workflow compiler context loaded for %s", workflowName)
	}
	in.CompilerCtx.HandlerName = workflowName
	in.CompilerCtx.GlobPatterns = spec.GlobPatterns

	cw, err := compiler.Compile(in.CompilerCtx, spec, params)
	if err != nil {
		return "", err
	}
	return cw.Prompt, nil
}

// NewRegistry builds the Registry wiring every phase in state.Ordered to a
// concrete handler, configured from cfg. bstore may be nil, in which case
// handlers skip benchmark recording entirely.
func NewRegistry(cfg *config.Config, bstore *bench.Store) Registry {
	master := cfg.Project.Master
	if master == "" {
		master = "claude"
	}
	masterTimeout := cfg.Providers[master].TimeoutSec

	reg := Registry{}

	reg[state.PhaseCreateStory] = &SingleProviderHandler{
		PhaseName:    string(state.PhaseCreateStory),
		ProviderName: master,
		TimeoutSec:   masterTimeout,
		Bench:        bstore,
		BuildPrompt: func(in *Input) (string, error) {
			spec := compiler.HandlerSpec{
				Mission:      "Draft the next story for epic {{epic_id}} from its epic document and sprint status.",
				GlobPatterns: []string{"docs/epics/**/*.md"},
			}
			return compilePrompt(in, "create_story", spec, map[string]string{"epic_id": in.EpicID.String()})
		},
		ArtifactPath: func(in *Input) (string, error) {
			storyNum, slug, err := parseStoryKey(in.StoryKey)
			if err != nil {
				return "", err
			}
			return in.Paths.StoryFile(in.EpicID, storyNum, slug), nil
		},
	}

	reg[state.PhaseValidateStory] = &MultiProviderHandler{
		PhaseName:     string(state.PhaseValidateStory),
		Evaluators:    cfg.Review.Evaluators,
		MinEvaluators: cfg.Review.MinEvaluators,
		TimeoutSec:    masterTimeout,
		Bench:         bstore,
		BuildPrompt: func(in *Input, evaluatorName string) (string, error) {
			spec := compiler.HandlerSpec{
				Mission:      "Adversarially validate the story at {{story_path}} for completeness and testability.",
				GlobPatterns: []string{"_bmad-output/implementation-artifacts/*.md"},
			}
			storyNum, slug, err := parseStoryKey(in.StoryKey)
			if err != nil {
				return "", err
			}
			return compilePrompt(in, "validate_story", spec, map[string]string{
				"story_path": in.Paths.StoryFile(in.EpicID, storyNum, slug),
				"evaluator":  evaluatorName,
			})
		},
		ArtifactPath: func(in *Input, evaluatorName string) (string, error) {
			storyNum, _, err := parseStoryKey(in.StoryKey)
			if err != nil {
				return "", err
			}
			return in.Paths.ValidationFile(in.EpicID, storyNum, evaluatorName), nil
		},
	}

	reg[state.PhaseValidateStorySynthesis] = &SynthesisHandler{
		PhaseName:    string(state.PhaseValidateStorySynthesis),
		ProviderName: master,
		TimeoutSec:   masterTimeout,
		Bench:        bstore,
		LoadEvaluatorArtifacts: func(in *Input) (map[string]string, error) {
			return loadEvaluatorArtifacts(in, cfg.Review.Evaluators, func(evaluatorName string) (string, error) {
				storyNum, _, err := parseStoryKey(in.StoryKey)
				if err != nil {
					return "", err
				}
				return in.Paths.ValidationFile(in.EpicID, storyNum, evaluatorName), nil
			})
		},
		BuildPrompt: func(in *Input, evaluatorOutputs map[string]string) (string, error) {
			spec := compiler.HandlerSpec{
				Mission: "Synthesize the independent story validations into a single pass/fail verdict.",
			}
			return compilePrompt(in, "validate_story_synthesis", spec, nil)
		},
		ArtifactPath: func(in *Input) (string, error) {
			storyNum, slug, err := parseStoryKey(in.StoryKey)
			if err != nil {
				return "", err
			}
			return in.Paths.StoryFile(in.EpicID, storyNum, slug+"-validation-synthesis"), nil
		},
	}

	reg[state.PhaseATDD] = &SingleProviderHandler{
		PhaseName:    string(state.PhaseATDD),
		ProviderName: master,
		TimeoutSec:   masterTimeout,
		Bench:        bstore,
		BuildPrompt: func(in *Input) (string, error) {
			spec := compiler.HandlerSpec{Mission: "Write acceptance tests for story {{story_key}} before implementation."}
			return compilePrompt(in, "atdd", spec, map[string]string{"story_key": in.StoryKey})
		},
	}

	reg[state.PhaseDevStory] = &SingleProviderHandler{
		PhaseName:    string(state.PhaseDevStory),
		ProviderName: master,
		TimeoutSec:   masterTimeout,
		Bench:        bstore,
		BuildPrompt: func(in *Input) (string, error) {
			spec := compiler.HandlerSpec{Mission: "Implement story {{story_key}} per its acceptance criteria."}
			return compilePrompt(in, "dev_story", spec, map[string]string{"story_key": in.StoryKey})
		},
	}

	reg[state.PhaseCodeReview] = &MultiProviderHandler{
		PhaseName:     string(state.PhaseCodeReview),
		Evaluators:    cfg.Review.Evaluators,
		MinEvaluators: cfg.Review.MinEvaluators,
		TimeoutSec:    masterTimeout,
		Bench:         bstore,
		BuildPrompt: func(in *Input, evaluatorName string) (string, error) {
			spec := compiler.HandlerSpec{
				Mission:      "Review the implementation diff for story {{story_key}} for correctness and regressions.",
				GlobPatterns: []string{"_bmad-output/implementation-artifacts/*.md"},
			}
			return compilePrompt(in, "code_review", spec, map[string]string{
				"story_key": in.StoryKey,
				"evaluator": evaluatorName,
			})
		},
		ArtifactPath: func(in *Input, evaluatorName string) (string, error) {
			storyNum, _, err := parseStoryKey(in.StoryKey)
			if err != nil {
				return "", err
			}
			return in.Paths.CodeReviewFile(in.EpicID, storyNum, evaluatorName), nil
		},
	}

	reg[state.PhaseCodeReviewSynthesis] = &SynthesisHandler{
		PhaseName:    string(state.PhaseCodeReviewSynthesis),
		ProviderName: master,
		TimeoutSec:   masterTimeout,
		Bench:        bstore,
		LoadEvaluatorArtifacts: func(in *Input) (map[string]string, error) {
			return loadEvaluatorArtifacts(in, cfg.Review.Evaluators, func(evaluatorName string) (string, error) {
				storyNum, _, err := parseStoryKey(in.StoryKey)
				if err != nil {
					return "", err
				}
				return in.Paths.CodeReviewFile(in.EpicID, storyNum, evaluatorName), nil
			})
		},
		BuildPrompt: func(in *Input, evaluatorOutputs map[string]string) (string, error) {
			spec := compiler.HandlerSpec{Mission: "Synthesize the independent code reviews into a single pass/fail verdict."}
			return compilePrompt(in, "code_review_synthesis", spec, nil)
		},
		ArtifactPath: func(in *Input) (string, error) {
			storyNum, slug, err := parseStoryKey(in.StoryKey)
			if err != nil {
				return "", err
			}
			return in.Paths.StoryFile(in.EpicID, storyNum, slug+"-code-review-synthesis"), nil
		},
	}

	reg[state.PhaseTestReview] = &SingleProviderHandler{
		PhaseName:    string(state.PhaseTestReview),
		ProviderName: master,
		TimeoutSec:   masterTimeout,
		Bench:        bstore,
		BuildPrompt: func(in *Input) (string, error) {
			spec := compiler.HandlerSpec{Mission: "Review the test suite added for story {{story_key}} for coverage gaps."}
			return compilePrompt(in, "test_review", spec, map[string]string{"story_key": in.StoryKey})
		},
	}

	reg[state.PhaseRetrospective] = &RetrospectiveHandler{
		ProviderName: master,
		TimeoutSec:   masterTimeout,
		Bench:        bstore,
		BuildPrompt: func(in *Input, traceContext string) (string, error) {
			spec := compiler.HandlerSpec{Mission: "Write a retrospective for epic {{epic_id}}."}
			params := map[string]string{"epic_id": in.EpicID.String()}
			if traceContext != "" {
				params["testarch_trace"] = traceContext
			}
			return compilePrompt(in, "retrospective", spec, params)
		},
		ArtifactPath: func(in *Input, now time.Time) (string, error) {
			return in.Paths.RetrospectiveFile(in.EpicID, now.Format("20060102")), nil
		},
	}

	reg[state.PhaseQAPlanGenerate] = &QAHandler{
		PhaseName: string(state.PhaseQAPlanGenerate),
		Run: func(ctx context.Context, in *Input) (map[string]any, error) {
			if !cfg.QA.Enabled {
				return nil, fmt.Errorf("QA is disabled in configuration")
			}
			gen := &qa.Generator{
				Paths:        in.Paths,
				Providers:    in.Providers,
				ProviderName: master,
				TimeoutSec:   masterTimeout,
				Logger:       in.Logger,
			}
			planPath, err := gen.Generate(ctx, in.EpicID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"plan_path": planPath}, nil
		},
	}

	reg[state.PhaseQAPlanExecute] = &QAHandler{
		PhaseName: string(state.PhaseQAPlanExecute),
		Run: func(ctx context.Context, in *Input) (map[string]any, error) {
			if !cfg.QA.Enabled {
				return nil, fmt.Errorf("QA is disabled in configuration")
			}
			plan, err := qa.Parse(in.Paths.QATestPlanFile(in.EpicID))
			if err != nil {
				return nil, fmt.Errorf("no QA plan for epic %s: run QA_PLAN_GENERATE first: %w", in.EpicID.String(), err)
			}
			exec := &qa.Executor{
				Paths:       in.Paths,
				Concurrency: cfg.QA.BatchSize,
				Logger:      in.Logger,
			}
			batch := cfg.QA.Batch
			results, err := exec.Execute(ctx, plan, qa.ExecuteOpts{
				Epic:       in.EpicID,
				Category:   qa.CategoryAll,
				Batch:      &batch,
				BatchSize:  cfg.QA.BatchSize,
				WorkDir:    in.Paths.ProjectRoot,
				TimeoutSec: cfg.QA.TimeoutSec,
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{"pass_rate": results.PassRate(), "run_id": results.RunID}, nil
		},
	}

	reg[state.PhaseQARemediate] = &QAHandler{
		PhaseName: string(state.PhaseQARemediate),
		Run: func(ctx context.Context, in *Input) (map[string]any, error) {
			if !cfg.QA.Enabled {
				return nil, fmt.Errorf("QA is disabled in configuration")
			}
			exec := &qa.Executor{Paths: in.Paths, Concurrency: cfg.QA.BatchSize, Logger: in.Logger}
			qaResults, err := exec.Execute(ctx, &qa.Plan{Epic: in.EpicID.String()}, qa.ExecuteOpts{
				Epic: in.EpicID, Category: qa.CategoryAll, Retry: true, IncludeSkipped: true, WorkDir: in.Paths.ProjectRoot,
			})
			if err != nil {
				// No prior run is not fatal to remediation: QA results,
				// code reviews, retrospectives, and validations are all
				// independent issue sources.
				qaResults = nil
			}
			rem := &qa.Remediator{
				Paths:         in.Paths,
				Providers:     in.Providers,
				ProviderName:  master,
				TimeoutSec:    masterTimeout,
				Executor:      exec,
				Logger:        in.Logger,
				MaxIterations: cfg.QA.MaxRemediateIterations,
			}
			iterations, err := rem.Remediate(ctx, in.EpicID, qaResults)
			if err != nil {
				return nil, err
			}
			return map[string]any{"iterations": len(iterations)}, nil
		},
	}

	return reg
}

// loadEvaluatorArtifacts reads back the raw artifacts persisted by a
// preceding fan-out phase, keyed by evaluator name, for a synthesis
// handler's LoadEvaluatorArtifacts. Evaluators whose artifact is missing are
// silently skipped — the preceding fan-out already enforced MinEvaluators.
func loadEvaluatorArtifacts(in *Input, evaluators []string, pathFor func(evaluatorName string) (string, error)) (map[string]string, error) {
	out := map[string]string{}
	for _, name := range evaluators {
		path, err := pathFor(name)
		if err != nil {
			return nil, err
		}
		content, err := readFileIfExists(path)
		if err != nil {
			return nil, err
		}
		if content != "" {
			out[name] = content
		}
	}
	return out, nil
}
