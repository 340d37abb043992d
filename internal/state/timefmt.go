package state

import (
	"fmt"
	"math"
	"time"
)

// FormatDuration renders d hierarchically: seconds when <1m ("14s");
// minutes+seconds when <1h ("47m" or "2m 14s"); hours+minutes when <24h;
// days+hours otherwise. Zero sub-units are omitted. Negative durations
// clamp to "0s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "0s"
	}

	totalSeconds := int64(d / time.Second)

	days := totalSeconds / 86400
	hours := (totalSeconds % 86400) / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	switch {
	case totalSeconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case totalSeconds < 3600:
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	case totalSeconds < 86400:
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		if hours == 0 {
			return fmt.Sprintf("%dd", days)
		}
		return fmt.Sprintf("%dd %dh", days, hours)
	}
}

// DurationSinceMillis computes floor(now - start) in milliseconds.
func DurationSinceMillis(start, now time.Time) int64 {
	if now.Before(start) {
		return 0
	}
	return int64(math.Floor(now.Sub(start).Seconds() * 1000))
}
