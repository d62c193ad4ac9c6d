package card

import (
	"fmt"
	"strings"
	"time"

	"github.com/nfrund/profilecard/internal/domain"
)

// BreakMarker replaces every newline of a biography.
const BreakMarker = "<br>"

// FallbackThemeColor is used for both gradient stops when a profile has no theme colors.
const FallbackThemeColor = "#5C5C5C"

// FormatBio converts newlines into display line breaks. All other
// characters are preserved; an empty bio stays empty.
func FormatBio(bio string) string {
	return strings.ReplaceAll(bio, "\n", BreakMarker)
}

// FormatThemeColor renders a 24-bit color as "#RRGGBB" in uppercase.
func FormatThemeColor(color int) string {
	return fmt.Sprintf("#%06X", color&0xFFFFFF)
}

// FormatThemeColors formats every color of the list. An empty list yields
// the two-entry fallback.
func FormatThemeColors(colors []int) []string {
	if len(colors) == 0 {
		return []string{FallbackThemeColor, FallbackThemeColor}
	}
	out := make([]string, len(colors))
	for i, c := range colors {
		out[i] = FormatThemeColor(c)
	}
	return out
}

// ElapsedText describes the time between start and now in whole hours and
// remaining whole minutes, e.g. "1 hour and 30 minutes elapsed".
func ElapsedText(start, now time.Time) string {
	d := now.Sub(start)
	hours := int64(d / time.Hour)
	minutes := int64((d % time.Hour) / time.Minute)

	var b strings.Builder
	if hours > 0 {
		b.WriteString(plural(hours, "hour", "hours"))
	}
	if minutes > 0 {
		if b.Len() > 0 {
			b.WriteString(" and ")
		}
		b.WriteString(plural(minutes, "minute elapsed", "minutes elapsed"))
	}
	return b.String()
}

// ActivityElapsed returns the elapsed text of an activity. Activities
// without a start instant yield "".
func ActivityElapsed(a domain.Activity, now time.Time) string {
	start, ok := a.Timestamps.StartTime()
	if !ok {
		return ""
	}
	return ElapsedText(start, now)
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
