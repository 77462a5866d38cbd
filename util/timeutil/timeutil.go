package timeutil

import (
	"fmt"
	"time"
)

// Format returns a human readable form of d, e.g. "01h 02m 03s".
// Sub-second remainders are dropped; durations under a second give "".
func Format(d time.Duration) string {
	if d < time.Second {
		return ""
	}

	total := uint64(d / time.Second)
	hours, minutes, seconds := total/3600, total%3600/60, total%60

	switch {
	case hours > 0:
		return fmt.Sprintf("%02dh %02dm %02ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%02dm %02ds", minutes, seconds)
	default:
		return fmt.Sprintf("%02ds", seconds)
	}
}

// Since formats the time elapsed since t, or "0s" if none has.
func Since(t time.Time) string {
	if s := Format(time.Since(t)); s != "" {
		return s
	}
	return "0s"
}
