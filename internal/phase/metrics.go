package phase

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// severityCountRe matches lines like "- severity: high" or "Severity: HIGH"
// in a raw evaluator artifact, used for a best-effort deterministic finding
// count when the evaluator's own structured output isn't being parsed.
var severityCountRe = regexp.MustCompile(`(?im)severity["':\s]+(critical|high|medium|low|info)`)

// SeverityCounts is a best-effort count of findings per severity extracted
// from one evaluator's raw artifact text via regex, independent of whatever
// structured schema the evaluator actually emitted.
type SeverityCounts map[string]int

// ExtractSeverityCounts scans raw for severity markers and tallies them.
func ExtractSeverityCounts(raw string) SeverityCounts {
	counts := SeverityCounts{}
	for _, m := range severityCountRe.FindAllStringSubmatch(raw, -1) {
		counts[strings.ToLower(m[1])]++
	}
	return counts
}

// Total returns the sum of all severity counts.
func (c SeverityCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// AggregateStats is the min/max/avg/stdev summary of one metric (usually
// total finding count) across multiple evaluators.
type AggregateStats struct {
	Min, Max     int
	Avg, StdDev  float64
	SampleCount  int
}

// Aggregate computes min/max/avg/population-stdev over samples. An empty
// input returns a zero-value AggregateStats.
func Aggregate(samples []int) AggregateStats {
	if len(samples) == 0 {
		return AggregateStats{}
	}

	sorted := append([]int(nil), samples...)
	sort.Ints(sorted)

	sum := 0
	for _, s := range samples {
		sum += s
	}
	avg := float64(sum) / float64(len(samples))

	var variance float64
	for _, s := range samples {
		d := float64(s) - avg
		variance += d * d
	}
	variance /= float64(len(samples))

	return AggregateStats{
		Min:         sorted[0],
		Max:         sorted[len(sorted)-1],
		Avg:         avg,
		StdDev:      math.Sqrt(variance),
		SampleCount: len(samples),
	}
}

// FormatMarkdownHeader renders a short Markdown metrics header summarizing
// per-evaluator finding counts and their aggregate, prepended to a fan-out
// or synthesis artifact.
func FormatMarkdownHeader(perEvaluator map[string]SeverityCounts) string {
	names := make([]string, 0, len(perEvaluator))
	for name := range perEvaluator {
		names = append(names, name)
	}
	sort.Strings(names)

	totals := make([]int, 0, len(names))
	var b strings.Builder
	b.WriteString("## Evaluator Metrics\n\n")
	b.WriteString("| Evaluator | Critical | High | Medium | Low | Info | Total |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")

	for _, name := range names {
		c := perEvaluator[name]
		total := c.Total()
		totals = append(totals, total)
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %d | %d |\n",
			name, c["critical"], c["high"], c["medium"], c["low"], c["info"], total)
	}

	agg := Aggregate(totals)
	fmt.Fprintf(&b, "\nTotal findings: min=%d max=%d avg=%.1f stdev=%.2f (n=%d)\n",
		agg.Min, agg.Max, agg.Avg, agg.StdDev, agg.SampleCount)

	return b.String()
}
