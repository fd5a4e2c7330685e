// Package status reports how long ago the last fix arrived and mirrors that
// timestamp into Redis for other processes.
package status

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

const week = 7 * 24 * time.Hour

// Waiting is shown before the first fix has been recorded.
const Waiting = "Waiting for GPS"

// Describe renders the age of the last fix relative to now.
func Describe(lastMillis int64, now time.Time) string {
	if lastMillis == 0 {
		return Waiting
	}

	then := time.UnixMilli(lastMillis)
	diff := now.Sub(then)
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d min ago", int64(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int64(diff/time.Hour))
	case diff < week:
		return fmt.Sprintf("%d days ago", int64(diff/(24*time.Hour)))
	default:
		return humanize.RelTime(then, now, "ago", "from now")
	}
}

// FormatDuration renders the time spent at a place.
func FormatDuration(millis int64) string {
	if millis < 60_000 {
		return "< 1 min"
	}

	d := time.Duration(millis) * time.Millisecond
	hours := int64(d / time.Hour)
	minutes := int64(d/time.Minute) % 60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
