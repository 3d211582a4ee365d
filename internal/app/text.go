package app

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

func wrapPlain(text string, width int) string {
	if width <= 0 {
		return text
	}
	return xansi.Wrap(text, width, " ")
}

// truncateToWidth cuts plain text to width display cells. Wide characters
// count as two cells.
func truncateToWidth(text string, width int) string {
	if width <= 0 {
		return ""
	}
	text = strings.ReplaceAll(text, "\n", " ")
	if runewidth.StringWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, "…")
}

func padToWidth(text string, width int) string {
	return runewidth.FillRight(truncateToWidth(text, width), width)
}
