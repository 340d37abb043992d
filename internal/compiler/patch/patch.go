// Package patch implements the workflow patch & template cache: discovering
// an optional LLM-authored patch for a workflow, compiling a cached template
// through the configured patcher provider on a cache miss, and validating the
// result before it is trusted.
package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bmad-assist/bmad-assist-go/internal/bmaderr"
)

// Patch is the parsed form of a patch YAML file.
type Patch struct {
	Config struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"config"`
	Compatibility struct {
		BmadVersion string `yaml:"bmad_version"`
		Workflow    string `yaml:"workflow"`
	} `yaml:"compatibility"`
	Transforms []string `yaml:"transforms"`
	Validation struct {
		MustContain    []string `yaml:"must_contain"`
		MustNotContain []string `yaml:"must_not_contain"`
	} `yaml:"validation"`
	PostProcess []PostProcessRule `yaml:"post_process"`
}

// PostProcessRule is one regex replacement applied after the patcher LLM's
// transformed document is extracted.
type PostProcessRule struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
	Flags       string `yaml:"flags"` // comma-separated: IGNORECASE, MULTILINE, DOTALL
}

// Discover searches, in order, project-level patches, CWD, then global, for a
// patch file matching workflow. At most one patch applies; the first
// directory containing "{workflow}.yaml" wins.
func Discover(workflow string, projectPatchesDir, cwd, globalPatchesDir string) (*Patch, string, error) {
	candidates := []string{
		filepath.Join(projectPatchesDir, workflow+".yaml"),
		filepath.Join(cwd, workflow+".yaml"),
		filepath.Join(globalPatchesDir, workflow+".yaml"),
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, "", &bmaderr.PatchError{Patch: path, Err: err}
		}

		var p Patch
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, "", &bmaderr.PatchError{Patch: path, Err: fmt.Errorf("parsing: %w", err)}
		}
		return &p, path, nil
	}

	return nil, "", nil
}

// Validate checks the transformed document against the patch's must_contain
// and must_not_contain rules. A rule wrapped in slashes ("/pattern/") is a
// regex (MULTILINE); anything else is a plain substring match.
func (p *Patch) Validate(doc string) error {
	for _, rule := range p.Validation.MustContain {
		ok, err := matchRule(rule, doc)
		if err != nil {
			return &bmaderr.PatchError{Patch: p.Config.Name, Err: err}
		}
		if !ok {
			return &bmaderr.PatchError{
				Patch: p.Config.Name,
				Err:   fmt.Errorf("must_contain rule failed: %s", rule),
			}
		}
	}
	for _, rule := range p.Validation.MustNotContain {
		ok, err := matchRule(rule, doc)
		if err != nil {
			return &bmaderr.PatchError{Patch: p.Config.Name, Err: err}
		}
		if ok {
			return &bmaderr.PatchError{
				Patch: p.Config.Name,
				Err:   fmt.Errorf("must_not_contain rule matched: %s", rule),
			}
		}
	}
	return nil
}

func matchRule(rule, doc string) (bool, error) {
	if len(rule) >= 2 && rule[0] == '/' && rule[len(rule)-1] == '/' {
		re, err := regexp.Compile("(?m)" + rule[1:len(rule)-1])
		if err != nil {
			return false, fmt.Errorf("compiling rule %q: %w", rule, err)
		}
		return re.MatchString(doc), nil
	}
	return strings.Contains(doc, rule), nil
}
