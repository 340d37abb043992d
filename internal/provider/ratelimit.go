package provider

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// These patterns cover the rate-limit phrasing seen across the Claude,
// Codex, and Gemini CLIs. Detection is advisory: the result is reported in
// RunResult.RateLimit, and nothing in the repository waits or retries on it.
var (
	reRateLimitWord = regexp.MustCompile(`(?i)(?:rate limit|too many requests|rate.?limited)`)
	reResetIn       = regexp.MustCompile(`(?i)reset\s+(?:in\s+)?(\d+)\s*(seconds?|minutes?|hours?)`)
	reTryAgainWord  = regexp.MustCompile(`(?i)try\s+again\s+in\s+(\d+)\s*(seconds?|minutes?|hours?)`)
	reTryAgainSecs  = regexp.MustCompile(`(?i)try\s+again\s+in\s+(\d+(?:\.\d+)?)s\b`)
)

// parseRateLimit examines combined stdout+stderr for a rate-limit signal.
// It returns nil when no signal is found.
func parseRateLimit(output string) *RateLimitInfo {
	if m := reTryAgainSecs.FindStringSubmatch(output); len(m) == 2 {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil && secs > 0 {
			return &RateLimitInfo{IsLimited: true, ResetAfter: time.Duration(secs * float64(time.Second)), Message: output}
		}
	}
	if m := reResetIn.FindStringSubmatch(output); len(m) == 3 {
		return &RateLimitInfo{IsLimited: true, ResetAfter: parseUnitDuration(m[1], m[2]), Message: output}
	}
	if m := reTryAgainWord.FindStringSubmatch(output); len(m) == 3 {
		return &RateLimitInfo{IsLimited: true, ResetAfter: parseUnitDuration(m[1], m[2]), Message: output}
	}
	if reRateLimitWord.MatchString(output) {
		return &RateLimitInfo{IsLimited: true, Message: output}
	}
	return nil
}

// parseUnitDuration converts a numeric string and a time unit word into a
// time.Duration. Unrecognized units return 0.
func parseUnitDuration(amount, unit string) time.Duration {
	n, err := strconv.Atoi(amount)
	if err != nil || n <= 0 {
		return 0
	}
	unit = strings.ToLower(unit)
	switch {
	case strings.HasPrefix(unit, "second"):
		return time.Duration(n) * time.Second
	case strings.HasPrefix(unit, "minute"):
		return time.Duration(n) * time.Minute
	case strings.HasPrefix(unit, "hour"):
		return time.Duration(n) * time.Hour
	default:
		return 0
	}
}
