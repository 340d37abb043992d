package patch

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/bmad-assist/bmad-assist-go/internal/bmaderr"
)

// Patcher invokes the configured patcher LLM with a transform prompt and
// returns its raw text output. Implementations wrap an internal/provider
// Provider with the project's configured patcher model.
type Patcher interface {
	Patch(ctx context.Context, prompt string) (string, error)
}

// Meta is the on-disk record of a cached template's provenance, written
// alongside the template itself.
type Meta struct {
	SourceHash string    `yaml:"source_hash"`
	Workflow   string    `yaml:"workflow"`
	PatchName  string    `yaml:"patch_name,omitempty"`
	CompiledAt time.Time `yaml:"compiled_at"`
}

// CacheKey hashes the raw workflow XML together with the patch file contents
// (empty when no patch applies) into a stable cache key.
func CacheKey(rawWorkflow, rawPatch string) string {
	h := xxhash.New()
	_, _ = h.WriteString(rawWorkflow)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(rawPatch)
	return strconv.FormatUint(h.Sum64(), 16)
}

// Lookup reads a cached template at templatePath/metaPath and returns its
// content if metaPath's recorded source hash matches wantHash.
func Lookup(templatePath, metaPath, wantHash string) (string, bool) {
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return "", false
	}
	var meta Meta
	if err := yaml.Unmarshal(metaBytes, &meta); err != nil {
		return "", false
	}
	if meta.SourceHash != wantHash {
		return "", false
	}
	tpl, err := os.ReadFile(templatePath)
	if err != nil {
		return "", false
	}
	return string(tpl), true
}

// Store writes the compiled template and its meta file atomically.
func Store(templatePath, metaPath string, template string, meta Meta) error {
	if err := atomicWrite(templatePath, []byte(template)); err != nil {
		return &bmaderr.PatchError{Patch: meta.Workflow, Err: err}
	}
	metaBytes, err := yaml.Marshal(meta)
	if err != nil {
		return &bmaderr.PatchError{Patch: meta.Workflow, Err: err}
	}
	if err := atomicWrite(metaPath, metaBytes); err != nil {
		return &bmaderr.PatchError{Patch: meta.Workflow, Err: err}
	}
	return nil
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// maxTransformRetries bounds how many times a single transform instruction
// is retried against the patcher LLM before it is counted as failed.
const maxTransformRetries = 2

// minSuccessPercent is the floor-division success threshold: at least this
// percentage of transforms must succeed for the compile to be accepted.
const minSuccessPercent = 75

// Compile runs the patch compile procedure: build a transform prompt per
// transform instruction, invoke the patcher with retries, extract and
// post-process the result, and validate it. Returns the final document.
//
// Each entry in p.Transforms is attempted independently against the same
// accumulating document; a transform that still fails after retries is
// skipped and counted against the success threshold rather than aborting
// the whole compile.
func Compile(ctx context.Context, patcher Patcher, p *Patch, rawWorkflow string, gitContext string) (string, error) {
	doc := rawWorkflow
	succeeded := 0

	for i, transform := range p.Transforms {
		prompt := buildTransformPrompt(doc, i+1, transform, gitContext)

		var extracted string
		var lastErr error
		for attempt := 0; attempt <= maxTransformRetries; attempt++ {
			out, err := patcher.Patch(ctx, prompt)
			if err != nil {
				lastErr = err
				continue
			}
			extracted, lastErr = ExtractTransformed(out)
			if lastErr == nil {
				break
			}
		}

		if lastErr != nil {
			continue
		}
		doc = extracted
		succeeded++
	}

	total := len(p.Transforms)
	if total > 0 && succeeded < (total*minSuccessPercent)/100 {
		return "", &bmaderr.PatchError{
			Patch: p.Config.Name,
			Err:   fmt.Errorf("only %d/%d transforms succeeded, below %d%% floor", succeeded, total, minSuccessPercent),
		}
	}

	doc, err := p.ApplyPostProcess(doc)
	if err != nil {
		return "", &bmaderr.PatchError{Patch: p.Config.Name, Err: err}
	}

	if err := p.Validate(doc); err != nil {
		return "", err
	}

	return doc, nil
}

// buildTransformPrompt composes the patcher prompt: a system section, the
// raw document wrapped as a source document, the numbered transform
// instruction, and an output-format requirement.
func buildTransformPrompt(doc string, n int, instruction string, gitContext string) string {
	var b strings.Builder
	b.WriteString("<system>\nYou are applying a single declarative transform to a workflow document. ")
	b.WriteString("Return the complete modified document, nothing else.\n</system>\n")
	if gitContext != "" {
		b.WriteString(gitContext)
		b.WriteString("\n")
	}
	b.WriteString("<source-document>\n")
	b.WriteString(doc)
	b.WriteString("\n</source-document>\n")
	fmt.Fprintf(&b, "<transform-%d>\n%s\n</transform-%d>\n", n, instruction, n)
	b.WriteString("<output-format>\nWrap the modified document in <transformed-document> tags.\n</output-format>\n")
	return b.String()
}
