package utils

import "fmt"

// FormatDuration formats seconds into HH:MM:SS format
func FormatDuration(totalSeconds int64) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// Hours converts seconds to fractional hours
func Hours(totalSeconds int64) float64 {
	return float64(totalSeconds) / 3600
}

// FormatHours formats seconds as hours with two decimals, e.g. "1.50h"
func FormatHours(totalSeconds int64) string {
	return fmt.Sprintf("%.2fh", Hours(totalSeconds))
}

// FormatDailyAverage formats the per-day average of a weekly total
func FormatDailyAverage(totalSeconds int64) string {
	return fmt.Sprintf("%.2fh/day", Hours(totalSeconds)/7)
}
