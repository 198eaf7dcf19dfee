package eligibility

import (
	"context"
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/reform/internal/ingest"
	"github.com/agentic-research/reform/internal/workspace"
)

var generatedInfixes = []string{".designer.", ".generated.", ".g.", ".g.i."}

var generatedMarkers = []string{"<auto-generated", "<autogenerated", "@generated"}

// headerLines bounds the textual scan used when no syntax tree is available.
const headerLines = 20

// IsGenerated reports whether f looks machine-generated, either by its
// name or by a marker in its leading comments.
func IsGenerated(ctx context.Context, f *workspace.File) bool {
	if generatedName(f.Path) {
		return true
	}
	for _, c := range leadingComments(ctx, f) {
		if generatedComment(c) {
			return true
		}
	}
	return false
}

func generatedName(p string) bool {
	base := strings.ToLower(path.Base(p))
	if strings.HasPrefix(base, "temporarygeneratedfile_") {
		return true
	}
	for _, infix := range generatedInfixes {
		if strings.Contains(base, infix) {
			return true
		}
	}
	if strings.HasSuffix(base, ".go") {
		return strings.HasSuffix(base, "_gen.go") ||
			strings.HasSuffix(base, ".pb.go") ||
			strings.HasPrefix(base, "zz_generated")
	}
	return false
}

func generatedComment(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range generatedMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	// Go convention: https://go.dev/s/generatedcode
	return strings.Contains(text, "Code generated") && strings.Contains(text, "DO NOT EDIT")
}

// leadingComments returns the comments that precede the first non-comment
// node of the syntax tree.
func leadingComments(ctx context.Context, f *workspace.File) []string {
	lang := ingest.GrammarFor(f.Language)
	if lang == nil {
		return textualHeader(f.Text)
	}
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	src := []byte(f.Text)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil || tree.RootNode() == nil {
		return textualHeader(f.Text)
	}

	root := tree.RootNode()
	var out []string
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if !strings.Contains(child.Type(), "comment") {
			break
		}
		out = append(out, child.Content(src))
	}
	return out
}

func textualHeader(text string) []string {
	var out []string
	for i, line := range strings.SplitN(text, "\n", headerLines+1) {
		if i == headerLines {
			break
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "//") && !strings.HasPrefix(trimmed, "#") &&
			!strings.HasPrefix(trimmed, "/*") && !strings.HasPrefix(trimmed, "*") &&
			!strings.HasPrefix(trimmed, "--") {
			break
		}
		out = append(out, trimmed)
	}
	return out
}
