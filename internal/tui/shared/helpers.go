package shared

import (
	"fmt"
	"time"
)

const byteUnit = 1024

// FormatBytes renders a size with binary units, e.g. "1.5 MB".
func FormatBytes(bytes int64) string {
	if bytes < byteUnit {
		return fmt.Sprintf("%d B", bytes)
	}

	value, prefix := scale(float64(bytes))

	return fmt.Sprintf("%.1f %cB", value, prefix)
}

// FormatDuration renders d rounded to seconds, e.g. "2m 30s".
func FormatDuration(d time.Duration) string {
	// Split whole seconds into clock fields
	total := int64(d.Round(time.Second) / time.Second)
	hours, minutes, seconds := total/3600, total/60%60, total%60 //nolint:mnd // clock arithmetic

	// Omit leading zero fields
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// FormatRate renders a transfer rate, e.g. "5.2 MB/s".
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec < byteUnit {
		return fmt.Sprintf("%.0f B/s", bytesPerSec)
	}

	value, prefix := scale(bytesPerSec)

	return fmt.Sprintf("%.1f %cB/s", value, prefix)
}

// FormatRemaining estimates the time left for remaining bytes at the given
// rate. It returns "" when there is no rate to estimate from.
func FormatRemaining(remaining int64, bytesPerSec float64) string {
	if remaining <= 0 || bytesPerSec <= 0 {
		return ""
	}

	// Seconds left at the current rate
	return FormatDuration(time.Duration(float64(remaining) / bytesPerSec * float64(time.Second)))
}

// scale divides value (at least one unit) down to the largest binary prefix.
func scale(value float64) (float64, byte) {
	const prefixes = "KMGTPE"

	// Starts at K since callers handle plain bytes
	value /= byteUnit
	exp := 0

	for value >= byteUnit && exp < len(prefixes)-1 {
		value /= byteUnit
		exp++
	}

	return value, prefixes[exp]
}
