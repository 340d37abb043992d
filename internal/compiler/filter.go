package compiler

import "regexp"

// nonExecutableTags are XML elements that only make sense in an interactive
// authoring session and must be stripped before a workflow is handed to a
// non-interactive subprocess provider.
var nonExecutableTags = []string{"elicit", "menu-option", "author-note"}

var nonExecutableRe = buildNonExecutableRe()

func buildNonExecutableRe() *regexp.Regexp {
	pattern := ""
	for i, tag := range nonExecutableTags {
		if i > 0 {
			pattern += "|"
		}
		pattern += "<" + tag + `\b[^>]*>.*?</` + tag + ">"
	}
	return regexp.MustCompile("(?s)" + pattern)
}

// askRe matches <ask> elements for the interactive-hazard check at emission
// time (ContainsAsk). FilterInstructions does not strip them, since removing
// them would silently drop required user prompts.
var askRe = regexp.MustCompile(`(?s)<ask\b[^>]*>.*?</ask>`)

// FilterInstructions removes non-executable elements from raw workflow
// instructions per the declarative nonExecutableTags rule set, then
// substitutes resolved variables via substitute.
func FilterInstructions(raw string, substitute func(string) (string, error)) (string, error) {
	stripped := nonExecutableRe.ReplaceAllString(raw, "")
	return substitute(stripped)
}

// ContainsAsk reports whether s still has one or more <ask> elements.
func ContainsAsk(s string) bool {
	return askRe.MatchString(s)
}
