package writeback

import (
	"fmt"
	"strings"

	"mvdan.cc/gofumpt/format"
)

// FormatGo formats Go source in-memory using gofumpt. CRLF input is fed to
// the formatter as LF and converted back when CRLF was the dominant line
// ending, so the formatter never decides the file's line endings.
func FormatGo(src string, langVersion string) (string, error) {
	crlf := strings.Count(src, "\r\n")
	lf := strings.Count(src, "\n") - crlf
	in := src
	if crlf > 0 {
		in = strings.ReplaceAll(src, "\r\n", "\n")
	}

	formatted, err := format.Source([]byte(in), format.Options{LangVersion: langVersion})
	if err != nil {
		return src, fmt.Errorf("gofumpt: %w", err)
	}

	out := string(formatted)
	if crlf > lf {
		out = strings.ReplaceAll(out, "\n", "\r\n")
	}
	return out, nil
}
