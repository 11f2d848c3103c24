// Package duration computes worked and elapsed time spans for jobs.
//
// All functions are pure. Spans are truncated to whole units and capped at
// 24 hours so a forgotten session or a skewed clock cannot dominate a total.
package duration

import (
	"fmt"
	"time"
)

const (
	// MaxSpanMinutes caps any single span.
	MaxSpanMinutes = 24 * 60

	// MaxElapsedSeconds caps live elapsed time.
	MaxElapsedSeconds = MaxSpanMinutes * 60
)

// Span returns end-start in whole minutes, floored at 0 and capped at
// MaxSpanMinutes. A zero start or end yields 0, which callers must read as
// unknown rather than as no work done.
func Span(start, end time.Time) int {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return 0
	}
	minutes := int(end.Sub(start) / time.Minute)
	if minutes > MaxSpanMinutes {
		return MaxSpanMinutes
	}
	return minutes
}

// SpanOpen is Span with a nil end measured against now.
func SpanOpen(start time.Time, end *time.Time, now time.Time) int {
	if end != nil {
		return Span(start, *end)
	}
	return Span(start, now)
}

// ElapsedSince returns the whole seconds from start to now for live timers,
// with the same cap as Span. It returns 0 for a zero start or now.
func ElapsedSince(start, now time.Time) int {
	if start.IsZero() || now.IsZero() || !now.After(start) {
		return 0
	}
	seconds := int(now.Sub(start) / time.Second)
	if seconds > MaxElapsedSeconds {
		return MaxElapsedSeconds
	}
	return seconds
}

// FormatDuration renders minutes as "2h 05m", "45m" or "0m".
// Negative input renders as "0m".
func FormatDuration(minutes int) string {
	if minutes <= 0 {
		return "0m"
	}
	h, m := minutes/60, minutes%60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}

// FormatSeconds renders a live-timer value as "1:02:03" (h:mm:ss).
func FormatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}
