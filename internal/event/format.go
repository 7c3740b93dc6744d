package event

import "fmt"

// FormatSeconds renders a countdown in the overlay's compact form:
// "3d 4h:5m" with a day or more left, "4h 5m" under a day, "5m" under
// an hour. Values truncate rather than round; seconds are never shown.
// A past-due count renders with a leading minus ("-1m") until the
// annual rollover re-anchors the record.
func FormatSeconds(secs int64) string {
	days := secs / 86400
	hours := (secs % 86400) / 3600
	minutes := (secs % 3600) / 60

	switch {
	case days != 0:
		return fmt.Sprintf("%dd %dh:%dm", days, hours, minutes)
	case hours != 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
