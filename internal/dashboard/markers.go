package dashboard

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// MarkerPrefix is the stdout line prefix that marks a JSON event payload for
// ParseMarkerLine and ScanMarkers. No code in this repository writes such
// lines or reads BMAD_DASHBOARD_MODE.
const MarkerPrefix = "DASHBOARD_EVENT:"

// knownEventTypes are the recognized SSE event types, as reported by
// IsKnownEventType. ScanMarkers does not consult this set: a marker of any
// type is forwarded, and nothing is logged for an unrecognized one.
var knownEventTypes = map[string]bool{
	"output":           true,
	"status":           true,
	"workflow_status":  true,
	"story_status":     true,
	"story_transition": true,
	"LOOP_PAUSED":      true,
	"LOOP_RESUMED":     true,
	"config_reloaded":  true,
	"heartbeat":        true,
}

// ParseMarkerLine extracts and validates the JSON payload of one
// DASHBOARD_EVENT: line. ok is false (with a nil error) for any line that
// doesn't carry the prefix, so callers can pass every stdout line through
// unconditionally.
func ParseMarkerLine(line string) (ev Event, ok bool, err error) {
	rest, found := strings.CutPrefix(line, MarkerPrefix)
	if !found {
		return Event{}, false, nil
	}
	rest = strings.TrimSpace(rest)

	if err := json.Unmarshal([]byte(rest), &ev); err != nil {
		return Event{}, true, fmt.Errorf("dashboard: parsing marker payload: %w", err)
	}
	if ev.Type == "" {
		return Event{}, true, fmt.Errorf("dashboard: marker payload missing \"type\"")
	}
	return ev, true, nil
}

// IsKnownEventType reports whether t is one of the recognized SSE event
// types.
func IsKnownEventType(t string) bool {
	return knownEventTypes[t]
}

// ScanMarkers reads lines from r, forwarding every valid DASHBOARD_EVENT:
// payload to bus.Publish. Malformed marker lines are passed to onError (if
// non-nil) and otherwise skipped; non-marker lines are ignored. ScanMarkers
// blocks until r is exhausted or returns an error, mirroring the
// line-pumping style internal/provider uses for subprocess stdout.
func ScanMarkers(r io.Reader, bus *Bus, onError func(line string, err error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		ev, ok, err := ParseMarkerLine(line)
		if !ok {
			continue
		}
		if err != nil {
			if onError != nil {
				onError(line, err)
			}
			continue
		}
		bus.Publish(ev)
	}
	return scanner.Err()
}
