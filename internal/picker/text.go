package picker

import "unicode/utf8"

const ellipsis = "…"

// truncate shortens text to maxWidth runes, ending in an ellipsis when cut.
func truncate(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxWidth {
		return text
	}
	if maxWidth == 1 {
		return ellipsis
	}
	runes := []rune(text)
	return string(runes[:maxWidth-1]) + ellipsis
}
