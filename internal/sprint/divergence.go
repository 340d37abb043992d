package sprint

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// RepairMode is the divergence-driven decision about whether a reconciled
// sprint-status may be written automatically.
type RepairMode int

const (
	// RepairSilent applies the merge without operator confirmation.
	RepairSilent RepairMode = iota
	// RepairInteractive requires operator confirmation before writing.
	RepairInteractive
)

// DivergenceRatio is the fraction of changed entries over the total entries
// considered, used to decide between RepairSilent and RepairInteractive.
func DivergenceRatio(changes int, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(changes) / float64(total)
}

// DecideMode picks SILENT below threshold, INTERACTIVE at or above it.
func DecideMode(ratio, threshold float64) RepairMode {
	if ratio >= threshold {
		return RepairInteractive
	}
	return RepairSilent
}

// Dialog presents a reconciliation summary to the operator and returns
// whether to proceed with the write.
type Dialog interface {
	Confirm(ctx context.Context, summary string) (bool, error)
}

// SummarizeChanges renders a Result's changes as a human-readable table,
// for both the CLI dialog and log output.
func SummarizeChanges(res *Result) string {
	if len(res.Changes) == 0 && len(res.Removed) == 0 {
		return "no changes"
	}
	var b strings.Builder
	if len(res.Changes) > 0 {
		fmt.Fprintf(&b, "%-28s %-12s %-16s %-16s %s\n", "KEY", "TYPE", "PREVIOUS", "NEW", "RESOLUTION")
		for _, c := range res.Changes {
			prev := c.Previous
			if prev == "" {
				prev = "(none)"
			}
			fmt.Fprintf(&b, "%-28s %-12s %-16s %-16s %s\n", c.Key, c.Type, prev, c.New, c.Resolution)
		}
	}
	if len(res.Removed) > 0 {
		fmt.Fprintf(&b, "\nremoved (flagged, not deleted): %s\n", strings.Join(res.Removed, ", "))
	}
	return b.String()
}

// CLIDialog prompts the operator on a terminal with a bounded timeout,
// defaulting to "no" if nothing is entered in time (mirrors the original
// implementation's Rich-table confirm-with-timeout behavior).
type CLIDialog struct {
	In      io.Reader
	Out     io.Writer
	Timeout time.Duration
}

// Confirm writes summary to Out and reads a y/n answer from In, returning
// false if ctx is cancelled, the timeout elapses, or the input stream ends
// without a recognized answer.
func (d *CLIDialog) Confirm(ctx context.Context, summary string) (bool, error) {
	fmt.Fprintln(d.Out, summary)
	fmt.Fprint(d.Out, "Apply these sprint-status changes? [y/N] ")

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	answered := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(d.In)
		if scanner.Scan() {
			answered <- scanner.Text()
		} else {
			answered <- ""
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(d.Out, "\ntimed out, treating as no")
		return false, nil
	case line := <-answered:
		line = strings.ToLower(strings.TrimSpace(line))
		return line == "y" || line == "yes", nil
	}
}

// DashboardDialog is an auto-cancel placeholder: the dashboard has no
// synchronous operator prompt, so a high-divergence reconciliation from a
// dashboard-driven run is always declined and logged for manual review.
type DashboardDialog struct{}

func (DashboardDialog) Confirm(ctx context.Context, summary string) (bool, error) {
	return false, nil
}
