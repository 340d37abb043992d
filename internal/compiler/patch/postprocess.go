package patch

import (
	"fmt"
	"regexp"
	"strings"
)

// reCollapseBlankLines collapses 3-or-more consecutive newlines to exactly
// two, tidying up whitespace left behind by post_process deletions.
var reCollapseBlankLines = regexp.MustCompile(`\n{3,}`)

// ApplyPostProcess runs every post_process rule against doc in order, then
// collapses runs of 3+ newlines to a single blank line.
func (p *Patch) ApplyPostProcess(doc string) (string, error) {
	for _, rule := range p.PostProcess {
		re, err := compileWithFlags(rule.Pattern, rule.Flags)
		if err != nil {
			return "", fmt.Errorf("post_process pattern %q: %w", rule.Pattern, err)
		}
		doc = re.ReplaceAllString(doc, rule.Replacement)
	}
	return reCollapseBlankLines.ReplaceAllString(doc, "\n\n"), nil
}

// compileWithFlags compiles pattern honoring a comma-separated flags list of
// IGNORECASE, MULTILINE, DOTALL, mapped onto Go's inline regex flags.
func compileWithFlags(pattern, flags string) (*regexp.Regexp, error) {
	var inline strings.Builder
	for _, f := range strings.Split(flags, ",") {
		switch strings.TrimSpace(strings.ToUpper(f)) {
		case "IGNORECASE":
			inline.WriteByte('i')
		case "MULTILINE":
			inline.WriteByte('m')
		case "DOTALL":
			inline.WriteByte('s')
		}
	}
	if inline.Len() == 0 {
		return regexp.Compile(pattern)
	}
	return regexp.Compile("(?" + inline.String() + ")" + pattern)
}
