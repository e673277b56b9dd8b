package task

import (
	"fmt"
	"time"
)

const (
	// throughputWindow is how far back byte samples are kept.
	throughputWindow = 10 * time.Second

	// minSampleSpan is the shortest window that yields an estimate.
	minSampleSpan = 500 * time.Millisecond
)

type sample struct {
	at    time.Time
	bytes int64
}

// throughput estimates the recent transfer rate from cumulative byte counts.
type throughput struct {
	samples []sample
}

// add records that total bytes had been transferred at time at.
func (t *throughput) add(at time.Time, total int64) {
	t.samples = append(t.samples, sample{at: at, bytes: total})

	// Keep one sample at or before the cutoff as the window's anchor.
	cutoff := at.Add(-throughputWindow)
	drop := 0
	for drop+1 < len(t.samples) && !t.samples[drop+1].at.After(cutoff) {
		drop++
	}
	if drop > 0 {
		t.samples = append(t.samples[:0], t.samples[drop:]...)
	}
}

// rate returns bytes per second as of now, or false while there is not
// enough data or nothing has moved for a whole window.
func (t *throughput) rate(now time.Time) (float64, bool) {
	if len(t.samples) < 2 {
		return 0, false
	}
	first, last := t.samples[0], t.samples[len(t.samples)-1]
	if now.Sub(last.at) > throughputWindow {
		return 0, false
	}
	span := last.at.Sub(first.at)
	moved := last.bytes - first.bytes
	if span < minSampleSpan || moved <= 0 {
		return 0, false
	}
	return float64(moved) / span.Seconds(), true
}

// formatDuration renders d as "42s", "3m 5s" or "1h 2m 3s".
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes renders b with a binary unit, e.g. "1.50 MB".
func FormatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
