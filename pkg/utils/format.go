package utils

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration renders d as "1h 2m 3s", "2m 3s", "3.4s", or "150ms",
// choosing the coarsest unit that applies.
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	millis := d.Milliseconds()

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	case seconds > 0:
		decisecond := (millis % 1000) / 100
		return fmt.Sprintf("%d.%ds", seconds, decisecond)
	default:
		return fmt.Sprintf("%dms", millis)
	}
}

// FormatBytes renders n using base-1024 units (B, KB, MB, GB, TB), with whole
// numbers for bytes and two decimal places otherwise.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	units := []string{"KB", "MB", "GB", "TB"}
	return fmt.Sprintf("%.2f%s", float64(n)/float64(div), units[exp])
}

var filenameReplacer = strings.NewReplacer("/", "_", "?", "_", "&", "_", "=", "_", ":", "_")

// FilenameFromURL derives a batch-output filename from a URL: the scheme is
// stripped, then "/", "?", "&", "=", ":" are replaced with "_", and ext
// (e.g. ".png") is appended.
func FilenameFromURL(rawURL, ext string) string {
	stripped := rawURL
	if idx := strings.Index(stripped, "://"); idx >= 0 {
		stripped = stripped[idx+3:]
	}
	return filenameReplacer.Replace(stripped) + ext
}
