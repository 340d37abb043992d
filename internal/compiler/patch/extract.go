package patch

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var transformedDocRe = regexp.MustCompile(`(?s)<transformed-document>(.*?)</transformed-document>`)

// unescapedLtRe finds a '<' not already starting a tag or entity, followed
// by a digit, space, or '=' — the shapes an LLM most often emits literally
// when it means the comparison operator rather than a tag.
var unescapedLtRe = regexp.MustCompile(`<([0-9 =])`)

// ExtractTransformed pulls the content between <transformed-document> tags
// out of raw LLM output. If the content fails to parse as well-formed XML,
// it retries once after escaping likely-literal '<' characters.
func ExtractTransformed(raw string) (string, error) {
	m := transformedDocRe.FindStringSubmatch(raw)
	if m == nil {
		return "", fmt.Errorf("no <transformed-document> section found in patcher output")
	}
	doc := strings.TrimSpace(m[1])

	if isWellFormed(doc) {
		return doc, nil
	}

	fixed := unescapedLtRe.ReplaceAllString(doc, "&lt;$1")
	if isWellFormed(fixed) {
		return fixed, nil
	}

	return "", fmt.Errorf("transformed document is not well-formed XML after auto-fix attempt")
}

func isWellFormed(doc string) bool {
	wrapped := "<root>" + doc + "</root>"
	dec := xml.NewDecoder(strings.NewReader(wrapped))
	dec.Strict = false
	for {
		_, err := dec.Token()
		if err != nil {
			return errors.Is(err, io.EOF)
		}
	}
}
