package ledger

import "fmt"

// FormatDuration renders a minute count as "{h}h {m}m", or "{m}m" under an hour.
func FormatDuration(minutes int) string {
	if minutes < 0 {
		return "-" + FormatDuration(-minutes)
	}
	h, m := minutes/60, minutes%60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
