package history

import (
	"time"

	"moments-agent/internal/domain"
)

const (
	// DefaultThreshold is the log length above which compaction runs.
	DefaultThreshold = 20
	// DefaultKeep is the number of most recent entries kept after compaction.
	DefaultKeep = 5
	// SummaryMarker prefixes a summary entry when the log is rendered.
	SummaryMarker = "[讨论摘要] "
)

// NeedsCompaction reports whether the log has grown past threshold.
func NeedsCompaction(entries []domain.Entry, threshold int) bool {
	return len(entries) > threshold
}

// Texts returns the text of every entry, summary included, in log order.
func Texts(entries []domain.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Text)
	}
	return out
}

// Compact folds the log into a single summary entry followed by the keep most
// recent entries. Any earlier summary is dropped; the new one replaces it.
func Compact(entries []domain.Entry, summary string, keep int, now time.Time) []domain.Entry {
	if keep < 0 {
		keep = 0
	}
	start := len(entries) - keep
	if start < 0 {
		start = 0
	}

	out := make([]domain.Entry, 0, keep+1)
	out = append(out, domain.NewSummary(summary, now))
	for _, e := range entries[start:] {
		if e.IsSummary() {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Render turns a log into the text sequence handed to reply generation.
func Render(entries []domain.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsSummary() {
			out = append(out, SummaryMarker+e.Text)
			continue
		}
		out = append(out, e.Text)
	}
	return out
}

// CountReplies returns the number of non-summary entries.
func CountReplies(entries []domain.Entry) int {
	n := 0
	for _, e := range entries {
		if !e.IsSummary() {
			n++
		}
	}
	return n
}
