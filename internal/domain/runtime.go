package domain

import (
	"fmt"
	"math"
)

// FormatRuntime renders elapsed seconds compactly: "1h1m", "1m30s" or "30.0s".
// Banding uses the raw value, so 59.96 stays in the seconds band.
func FormatRuntime(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}

	switch {
	case seconds >= 3600:
		hours := math.Floor(seconds / 3600)
		minutes := math.Floor((seconds - hours*3600) / 60)
		return fmt.Sprintf("%dh%dm", int64(hours), int64(minutes))
	case seconds >= 60:
		minutes := math.Floor(seconds / 60)
		remaining := math.Trunc(seconds - minutes*60)
		return fmt.Sprintf("%dm%ds", int64(minutes), int64(remaining))
	default:
		return fmt.Sprintf("%.1fs", seconds)
	}
}

func FormatRuntimeMillis(ms uint64) string {
	return FormatRuntime(float64(ms) / 1000)
}
