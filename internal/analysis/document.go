package analysis

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/reform/internal/editorconfig"
	"github.com/agentic-research/reform/internal/ingest"
	"github.com/agentic-research/reform/internal/workspace"
)

// Document is a file being analyzed or formatted. The syntax tree is parsed
// on first use; a Document must not be shared between goroutines.
type Document struct {
	File   *workspace.File
	Config editorconfig.Config

	tree *sitter.Tree
	err  error
	done bool
}

// NewDocument wraps the current version of a file.
func NewDocument(f *workspace.File, cfg editorconfig.Config) *Document {
	return &Document{File: f, Config: cfg}
}

// Text returns the file text.
func (d *Document) Text() string { return d.File.Text }

// Tree parses the document, returning nil when the language has no grammar.
func (d *Document) Tree(ctx context.Context) (*sitter.Tree, error) {
	if d.done {
		return d.tree, d.err
	}
	d.done = true
	lang := ingest.GrammarFor(d.File.Language)
	if lang == nil {
		return nil, nil
	}
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	d.tree, d.err = parser.ParseCtx(ctx, nil, []byte(d.File.Text))
	if d.err != nil {
		d.err = fmt.Errorf("parse %s: %w", d.File.Path, d.err)
	}
	return d.tree, d.err
}

// Span is a half-open byte range.
type Span struct {
	Start, End int
}

// Contains reports whether offset lies strictly inside the span.
func (s Span) Contains(offset int) bool { return s.Start < offset && offset < s.End }

// literalTypes are node type fragments whose text spans must be kept
// verbatim across lines.
var literalTypes = []string{"string", "heredoc", "template", "block_scalar", "quote_scalar"}

// MultilineLiterals returns the spans of string-like nodes covering more
// than one line. Whitespace inside them is content and must not be
// rewritten. Documents without a tree have none.
func (d *Document) MultilineLiterals(ctx context.Context) []Span {
	tree, err := d.Tree(ctx)
	if err != nil || tree == nil {
		return nil
	}
	var spans []Span
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.StartPoint().Row == n.EndPoint().Row {
			return
		}
		if isLiteral(n.Type()) {
			spans = append(spans, Span{Start: int(n.StartByte()), End: int(n.EndByte())})
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())
	return spans
}

func isLiteral(nodeType string) bool {
	for _, t := range literalTypes {
		if strings.Contains(nodeType, t) {
			return true
		}
	}
	return false
}

// InLiteral reports whether offset lies inside one of spans.
func InLiteral(spans []Span, offset int) bool {
	for _, s := range spans {
		if s.Contains(offset) {
			return true
		}
	}
	return false
}

// Line is one line of text. Content excludes the terminator.
type Line struct {
	Start      int
	Content    string
	Terminator string
}

// End is the offset just past Content.
func (l Line) End() int { return l.Start + len(l.Content) }

// SplitLines splits text into lines, recognizing "\r\n", "\n" and "\r".
// The last line has an empty terminator; text ending in a terminator
// yields a final empty line.
func SplitLines(text string) []Line {
	var lines []Line
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			lines = append(lines, Line{Start: start, Content: text[start:i], Terminator: "\n"})
			start = i + 1
		case '\r':
			term := "\r"
			if i+1 < len(text) && text[i+1] == '\n' {
				term = "\r\n"
			}
			lines = append(lines, Line{Start: start, Content: text[start:i], Terminator: term})
			i += len(term) - 1
			start = i + 1
		}
	}
	return append(lines, Line{Start: start, Content: text[start:]})
}

// JoinLines is the inverse of SplitLines.
func JoinLines(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.Content)
		b.WriteString(l.Terminator)
	}
	return b.String()
}
