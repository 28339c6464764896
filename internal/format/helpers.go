package format

import (
	"fmt"
	"time"
)

// FmtLogOdds formats a log-odds value with explicit sign, e.g. "+1.30".
func FmtLogOdds(v float64) string {
	return fmt.Sprintf("%+.2f", v)
}

// FmtRatio formats a 0..1 ratio as a percentage, e.g. "42%".
func FmtRatio(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

// FmtDuration formats a duration as "Xm Ys" or "Ys".
func FmtDuration(d time.Duration) string {
	s := int(d.Seconds())
	if s >= 60 {
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%ds", s)
}

// Truncate shortens s to maxLen characters, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// BoolMark returns "✓" for true and "✗" for false.
func BoolMark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}
