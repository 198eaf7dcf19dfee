package analysis

import (
	"cmp"
	"context"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/reform/internal/ingest"
)

// importLine is one import statement occupying a whole line.
type importLine struct {
	row  int
	text string
	key  string
}

// organizeImports sorts each run of adjacent single-line imports. Runs are
// separated by blank lines, comments, multi-line statements or any other
// code, so hand-made grouping survives.
func organizeImports(ctx context.Context, doc *Document) (string, error) {
	text := doc.Text()
	if strings.Count(text, "\r") != strings.Count(text, "\r\n") {
		return text, nil // tree rows and lines disagree on lone CR
	}

	var groupsFn func(*sitter.Node, []byte, []Line) [][]importLine
	switch doc.File.Language {
	case ingest.LangGo:
		groupsFn = goImportGroups
	case ingest.LangPython:
		groupsFn = pythonImportGroups
	default:
		return text, nil
	}

	tree, err := doc.Tree(ctx)
	if err != nil {
		return text, err
	}
	if tree == nil || tree.RootNode().HasError() {
		return text, nil
	}

	lines := SplitLines(text)
	changed := false
	for _, g := range groupsFn(tree.RootNode(), []byte(text), lines) {
		sorted := slices.Clone(g)
		slices.SortStableFunc(sorted, func(a, b importLine) int {
			return cmp.Or(cmp.Compare(a.key, b.key), cmp.Compare(a.text, b.text))
		})
		for i, il := range g {
			if sorted[i].text == il.text {
				continue
			}
			l := &lines[il.row]
			indent := l.Content[:len(l.Content)-len(strings.TrimLeft(l.Content, " \t"))]
			l.Content = indent + sorted[i].text
			changed = true
		}
	}
	if !changed {
		return text, nil
	}
	return JoinLines(lines), nil
}

// wholeLine reports whether n is alone on its single line.
func wholeLine(n *sitter.Node, src []byte, lines []Line) bool {
	row := int(n.StartPoint().Row)
	if row != int(n.EndPoint().Row) || row >= len(lines) {
		return false
	}
	return strings.TrimSpace(lines[row].Content) == n.Content(src)
}

// adjacent splits candidates into runs of consecutive rows.
func adjacent(items []importLine) [][]importLine {
	var groups [][]importLine
	var cur []importLine
	for _, it := range items {
		if len(cur) > 0 && it.row != cur[len(cur)-1].row+1 {
			if len(cur) > 1 {
				groups = append(groups, cur)
			}
			cur = nil
		}
		cur = append(cur, it)
	}
	if len(cur) > 1 {
		groups = append(groups, cur)
	}
	return groups
}

func goImportGroups(root *sitter.Node, src []byte, lines []Line) [][]importLine {
	var groups [][]importLine
	for i := 0; i < int(root.NamedChildCount()); i++ {
		decl := root.NamedChild(i)
		if decl.Type() != "import_declaration" {
			continue
		}
		for j := 0; j < int(decl.NamedChildCount()); j++ {
			list := decl.NamedChild(j)
			if list.Type() != "import_spec_list" {
				continue
			}
			var specs []importLine
			usable := true
			for k := 0; k < int(list.NamedChildCount()); k++ {
				spec := list.NamedChild(k)
				if spec.Type() != "import_spec" || !wholeLine(spec, src, lines) {
					usable = false
					break
				}
				path := spec.ChildByFieldName("path")
				if path == nil {
					usable = false
					break
				}
				specs = append(specs, importLine{
					row:  int(spec.StartPoint().Row),
					text: spec.Content(src),
					key:  path.Content(src),
				})
			}
			if usable {
				groups = append(groups, adjacent(specs)...)
			}
		}
	}
	return groups
}

func pythonImportGroups(root *sitter.Node, src []byte, lines []Line) [][]importLine {
	var groups [][]importLine
	var run []importLine
	flush := func() {
		groups = append(groups, adjacent(run)...)
		run = nil
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		rank := ""
		switch n.Type() {
		case "import_statement":
			rank = "0"
		case "import_from_statement":
			rank = "1"
		}
		if rank == "" || !wholeLine(n, src, lines) {
			flush()
			continue
		}
		content := n.Content(src)
		run = append(run, importLine{
			row:  int(n.StartPoint().Row),
			text: content,
			key:  rank + strings.ToLower(content),
		})
	}
	flush()
	return groups
}
