package utils

import (
	"fmt"
	"time"
)

// FormatRemaining memformat sisa waktu sesi untuk tampilan.
func FormatRemaining(expiresAt time.Time) string {
	return FormatRemainingAt(expiresAt, time.Now())
}

// FormatRemainingAt seperti FormatRemaining dengan jam yang disuntikkan.
// Contoh: "2h 5m remaining", "45m remaining", atau "Expired".
func FormatRemainingAt(expiresAt, now time.Time) string {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return "Expired"
	}

	minutes := int(remaining.Minutes())
	hours := minutes / 60
	minutes = minutes % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm remaining", hours, minutes)
	}
	return fmt.Sprintf("%dm remaining", minutes)
}
