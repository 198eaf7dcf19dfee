package workspace

import "unicode/utf8"

// Position converts a byte offset in text to a 1-based line and a 1-based
// character column. Offsets past the end clamp to the end of text.
func Position(text string, offset int) (line, column int) {
	offset = max(0, min(offset, len(text)))
	line, lineStart := 1, 0
	for i := 0; i < offset; i++ {
		if text[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	return line, utf8.RuneCountInString(text[lineStart:offset]) + 1
}
