package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// PadRight pads or truncates a string to a fixed width.
func PadRight(str string, width int) string {
	w := runewidth.StringWidth(str)
	if w > width {
		return runewidth.Truncate(str, width, "...")
	}
	return str + strings.Repeat(" ", width-w)
}

// PadLeft right-aligns str in a fixed width, truncating like PadRight.
func PadLeft(str string, width int) string {
	w := runewidth.StringWidth(str)
	if w > width {
		return runewidth.Truncate(str, width, "...")
	}
	return strings.Repeat(" ", width-w) + str
}

// ShortHash keeps the first n characters of a content hash for display.
func ShortHash(hash string, n int) string {
	if n <= 0 || len(hash) <= n {
		return hash
	}
	return hash[:n]
}
