package qa

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bmad-assist/bmad-assist-go/internal/bmaderr"
)

// testIDRe matches a test case identifier anywhere in a line: E{epic}-{cat}{num},
// e.g. "E3-A01".
var testIDRe = regexp.MustCompile(`E(\d+)-([ABC])(\d+)`)

// unknownTestIDRe matches a checklist ID whose category letter is not A, B
// or C, e.g. "E5-X99".
var unknownTestIDRe = regexp.MustCompile(`E(\d+)-([A-Z])(\d+)`)

// headerRe matches an H3/H4 markdown header line.
var headerRe = regexp.MustCompile(`^#{3,4}\s+`)

// Parse reads path and parses it as an E2E test plan: a master checklist
// table plus per-test header sections, each optionally followed by a
// fenced script block.
func Parse(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &bmaderr.ParserError{Source: path, Err: err}
	}
	plan, err := parseContent(string(data))
	if err != nil {
		return nil, &bmaderr.ParserError{Source: path, Err: err}
	}
	plan.Path = path
	return plan, nil
}

func parseContent(content string) (*Plan, error) {
	lines := strings.Split(content, "\n")
	checklist := parseChecklist(lines)
	sections := parseSections(lines)

	plan := &Plan{}
	seen := map[string]bool{}
	for _, tc := range checklist {
		if sec, ok := sections[tc.ID]; ok {
			tc.Script = sec.Script
			tc.ScriptLang = sec.ScriptLang
		}
		plan.Tests = append(plan.Tests, tc)
		seen[tc.ID] = true
		if plan.Epic == "" {
			plan.Epic = tc.Epic
		}
	}
	// A per-test section with no matching checklist row still surfaces: the
	// checklist and the sections are two independent sources of truth and
	// neither wins outright over the other.
	for id, sec := range sections {
		if seen[id] {
			continue
		}
		plan.Tests = append(plan.Tests, sec)
		if plan.Epic == "" {
			plan.Epic = sec.Epic
		}
	}

	sort.Slice(plan.Tests, func(i, j int) bool { return plan.Tests[i].ID < plan.Tests[j].ID })
	return plan, nil
}

func parseTestID(s string) (epic string, cat Category, num int, ok bool) {
	m := testIDRe.FindStringSubmatch(s)
	if m == nil {
		return "", "", 0, false
	}
	n, err := strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, false
	}
	return m[1], Category(m[2]), n, true
}

// parseChecklist extracts the master checklist table's rows: any table row
// (a line starting with "|", excluding the header-separator row of dashes)
// whose first matching cell contains a test ID.
func parseChecklist(lines []string) []TestCase {
	var out []TestCase
	seen := map[string]bool{}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "|") || isTableSeparator(trimmed) {
			continue
		}
		epic, cat, num, ok := parseTestID(trimmed)
		if !ok {
			// An ID with an unknown category letter is kept, with no script.
			m := unknownTestIDRe.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}
			num, _ = strconv.Atoi(m[3])
			epic, cat = m[1], Category(m[2])
		}
		id := formatTestID(epic, cat, num)
		if seen[id] {
			continue
		}
		seen[id] = true

		cells := splitTableRow(trimmed)
		desc := ""
		for i, c := range cells {
			if strings.Contains(c, id) {
				if i+1 < len(cells) {
					desc = cells[i+1]
				}
				break
			}
		}
		out = append(out, TestCase{ID: id, Epic: epic, Category: cat, Number: num, Description: desc})
	}
	return out
}

func isTableSeparator(line string) bool {
	for _, r := range line {
		if r != '|' && r != '-' && r != ':' && r != ' ' {
			return false
		}
	}
	return true
}

func splitTableRow(line string) []string {
	parts := strings.Split(line, "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	if len(cells) > 0 && cells[0] == "" {
		cells = cells[1:]
	}
	if len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}

type headerMatch struct {
	lineIdx int
	id      string
}

// findHeaders locates every H3/H4 header naming a test ID, tracking fenced
// code block state so a heredoc inside a test's bash script (which may
// itself contain lines starting with "#", including "###") is never
// mistaken for the next section boundary.
func findHeaders(lines []string) []headerMatch {
	var headers []headerMatch
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence || !headerRe.MatchString(trimmed) {
			continue
		}
		epic, cat, num, ok := parseTestID(trimmed)
		if !ok {
			continue
		}
		headers = append(headers, headerMatch{lineIdx: i, id: formatTestID(epic, cat, num)})
	}
	return headers
}

func parseSections(lines []string) map[string]TestCase {
	headers := findHeaders(lines)
	out := make(map[string]TestCase, len(headers))
	for i, h := range headers {
		end := len(lines)
		if i+1 < len(headers) {
			end = headers[i+1].lineIdx
		}
		body := lines[h.lineIdx+1 : end]
		script, lang := extractFencedBlock(body)
		epic, cat, num, _ := parseTestID(h.id)
		out[h.id] = TestCase{ID: h.id, Epic: epic, Category: cat, Number: num, Script: script, ScriptLang: lang}
	}
	return out
}

// extractFencedBlock returns the content and language tag of the first
// fenced code block in body.
func extractFencedBlock(body []string) (script, lang string) {
	inFence := false
	var buf []string
	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if !inFence {
				inFence = true
				lang = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
				continue
			}
			break
		}
		if inFence {
			buf = append(buf, line)
		}
	}
	return strings.Join(buf, "\n"), lang
}

func formatTestID(epic string, cat Category, num int) string {
	return fmt.Sprintf("E%s-%s%02d", epic, cat, num)
}
