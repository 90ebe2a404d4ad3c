package render

import (
	"strings"
	"unicode/utf8"
)

const glyphWidthRatio = 0.55

// WrapText breaks text into lines that fit maxWidth pixels at fontSize, using an
// average glyph width estimate. Words longer than a line stay on their own line.
func WrapText(text string, fontSize, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	maxChars := 1
	if fontSize > 0 {
		if n := int(float64(maxWidth) / (glyphWidthRatio * float64(fontSize))); n > 1 {
			maxChars = n
		}
	}

	var lines []string
	var current strings.Builder
	width := 0
	for _, word := range words {
		n := utf8.RuneCountInString(word)
		if width > 0 && width+1+n > maxChars {
			lines = append(lines, current.String())
			current.Reset()
			width = 0
		}
		if width > 0 {
			current.WriteByte(' ')
			width++
		}
		current.WriteString(word)
		width += n
	}
	if width > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
