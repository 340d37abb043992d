// Package variables resolves workflow variables from invocation params,
// external YAML config, and workflow defaults, then substitutes them into
// template strings in two passes: {project-root}/{installed_path} placeholders
// first, then {{var}} and {var} tokens.
package variables

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmad-assist/bmad-assist-go/internal/bmaderr"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

// Source ranks the three places a variable value can come from. Higher wins.
type Source int

const (
	SourceDefault Source = iota
	SourceExternalConfig
	SourceInvocation
)

// Resolver merges variables from three precedence tiers and substitutes them
// into strings.
type Resolver struct {
	paths    *paths.Paths
	values   map[string]string
	sources  map[string]Source
}

// NewResolver builds a Resolver by merging defaults, external config, and
// invocation params in that precedence order (later maps win on conflict).
// externalConfigSource, if non-empty, is the path the external config was
// loaded from; it is validated to sit inside projectRoot.
func NewResolver(p *paths.Paths, defaults, externalConfig, invocation map[string]string, externalConfigSource string) (*Resolver, error) {
	if externalConfigSource != "" {
		ok, err := paths.Contains(p.ProjectRoot, externalConfigSource)
		if err != nil {
			return nil, &bmaderr.VariableError{Variable: "config_source", Reason: err.Error()}
		}
		if !ok {
			return nil, &bmaderr.VariableError{
				Variable: "config_source",
				Reason:   fmt.Sprintf("%q escapes project root %q", externalConfigSource, p.ProjectRoot),
			}
		}
	}

	r := &Resolver{
		paths:   p,
		values:  make(map[string]string),
		sources: make(map[string]Source),
	}
	r.merge(defaults, SourceDefault)
	r.merge(externalConfig, SourceExternalConfig)
	r.merge(invocation, SourceInvocation)
	return r, nil
}

func (r *Resolver) merge(vals map[string]string, src Source) {
	for k, v := range vals {
		if existing, ok := r.sources[k]; ok && existing > src {
			continue
		}
		r.values[k] = v
		r.sources[k] = src
	}
}

// MergeInvocation merges vals in at SourceInvocation precedence, overriding
// any existing default or external-config value for the same key. Used when
// invocation params are only known after the Resolver has already been
// built from defaults and external config.
func (r *Resolver) MergeInvocation(vals map[string]string) {
	r.merge(vals, SourceInvocation)
}

// Get returns the resolved value for name and whether it was found.
func (r *Resolver) Get(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// All returns a copy of every resolved variable.
func (r *Resolver) All() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

var tokenRe = regexp.MustCompile(`\{\{?\s*([a-zA-Z_][a-zA-Z0-9_.\-]*)\s*\}?\}`)

// Substitute expands placeholders then {{var}}/{var} tokens in s.
// Unresolved tokens are left verbatim rather than erroring, since some
// workflows intentionally pass literal braces through to a nested template.
func (r *Resolver) Substitute(s string) (string, error) {
	expanded, err := r.paths.Expand(s)
	if err != nil {
		return "", fmt.Errorf("variables: expanding placeholders: %w", err)
	}

	result := tokenRe.ReplaceAllStringFunc(expanded, func(match string) string {
		name := tokenRe.FindStringSubmatch(match)[1]
		if v, ok := r.values[name]; ok {
			return v
		}
		return match
	})
	return result, nil
}

// SubstituteAll applies Substitute across every string value of a map,
// leaving keys untouched. Useful for substituting into a batch of declared
// glob patterns or section headers.
func SubstituteAll(r *Resolver, vals map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(vals))
	for k, v := range vals {
		sv, err := r.Substitute(v)
		if err != nil {
			return nil, err
		}
		out[k] = sv
	}
	return out, nil
}

// StripBraces is a small helper used by callers that want to know which
// variable names a raw template string references, without resolving them.
func StripBraces(s string) []string {
	matches := tokenRe.FindAllStringSubmatch(s, -1)
	names := make([]string, 0, len(matches))
	seen := make(map[string]bool)
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// TrimDashes normalizes a workflow name for lookup: lowercases and turns
// hyphens into underscores, matching the compiler registry's key format.
func TrimDashes(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
}
