package ingest

import (
	"bytes"
	"unicode/utf8"
)

// sniffLen matches the window git uses to classify binary content.
const sniffLen = 8000

// isBinary reports whether content looks like binary data: a NUL byte in
// the first sniffLen bytes, or a prefix that is not valid UTF-8.
func isBinary(content []byte) bool {
	head := content
	if len(head) > sniffLen {
		head = head[:sniffLen]
		// don't reject a multi-byte rune cut at the boundary
		for i := 0; i < utf8.UTFMax && len(head) > 0 && !utf8.RuneStart(content[len(head)]); i++ {
			head = head[:len(head)-1]
		}
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return true
	}
	return !utf8.Valid(head)
}
