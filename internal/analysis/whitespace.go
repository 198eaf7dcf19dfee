package analysis

import (
	"context"
	"strings"

	"github.com/agentic-research/reform/internal/ingest"
)

// defaultTabWidth is used when neither tab_width nor indent_size is set.
const defaultTabWidth = 4

// normalizeWhitespace applies indent_style and trim_trailing_whitespace to
// every line outside multi-line literals.
func normalizeWhitespace(ctx context.Context, doc *Document) string {
	cfg := doc.Config
	trim, _ := cfg.TrimTrailingWhitespace()
	style, hasStyle := cfg.IndentStyle()
	if hasStyle && style == "tab" && doc.File.Language == ingest.LangYAML {
		hasStyle = false // tabs are not valid YAML indentation
	}
	if !trim && !hasStyle {
		return doc.Text()
	}

	tabWidth, ok := cfg.TabWidth()
	if !ok {
		tabWidth = defaultTabWidth
	}

	literals := doc.MultilineLiterals(ctx)
	lines := SplitLines(doc.Text())
	changed := false
	for i, l := range lines {
		content := l.Content
		if trim && !InLiteral(literals, l.End()) {
			content = strings.TrimRight(content, " \t")
		}
		if hasStyle && !InLiteral(literals, l.Start) {
			content = reindent(content, style, tabWidth)
		}
		if content != l.Content {
			lines[i].Content = content
			changed = true
		}
	}
	if !changed {
		return doc.Text()
	}
	return JoinLines(lines)
}

// reindent rewrites the leading whitespace of a line in the given style,
// keeping its visual width.
func reindent(line, style string, tabWidth int) string {
	n := len(line) - len(strings.TrimLeft(line, " \t"))
	if n == 0 || n == len(line) {
		return line
	}
	lead := line[:n]

	col := 0
	for _, c := range lead {
		if c == '\t' {
			col += tabWidth - col%tabWidth
		} else {
			col++
		}
	}

	var want string
	if style == "space" {
		want = strings.Repeat(" ", col)
	} else {
		want = strings.Repeat("\t", col/tabWidth) + strings.Repeat(" ", col%tabWidth)
	}
	if want == lead {
		return line
	}
	return want + line[n:]
}
