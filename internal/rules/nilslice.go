package rules

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/reform/internal/analysis"
	"github.com/agentic-research/reform/internal/ingest"
)

const IDNilSlice = "RF1003"

// nilSliceQuery matches every var spec with a slice type. Specs that carry
// a value or declare several names are filtered afterwards.
var nilSliceQuery = sync.OnceValues(func() (*sitter.Query, error) {
	return sitter.NewQuery([]byte(`
		(var_spec
			name: (identifier)
			type: (slice_type) @type
		) @decl
	`), ingest.GrammarFor(ingest.LangGo))
})

// nilSlice flags `var x []T`, which marshals to JSON null, and rewrites it
// to `var x = make([]T, 0)`.
type nilSlice struct{}

func (nilSlice) descriptor() analysis.Descriptor {
	return analysis.Descriptor{
		ID:              IDNilSlice,
		Title:           "Nil slice declaration",
		DefaultSeverity: analysis.SeverityInfo,
		Languages:       []string{ingest.LangGo},
	}
}

func (nilSlice) check(ctx context.Context, doc *analysis.Document) ([]violation, error) {
	tree, err := doc.Tree(ctx)
	if err != nil {
		return nil, err
	}
	if tree == nil || tree.RootNode().HasError() {
		return nil, nil
	}
	q, err := nilSliceQuery()
	if err != nil {
		return nil, fmt.Errorf("compile nil slice query: %w", err)
	}

	src := []byte(doc.Text())
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	var out []violation
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var decl, typ *sitter.Node
		for _, c := range m.Captures {
			switch q.CaptureNameForId(c.Index) {
			case "decl":
				decl = c.Node
			case "type":
				typ = c.Node
			}
		}
		if decl == nil || typ == nil || !singleNameNoValue(decl) {
			continue
		}
		t := typ.Content(src)
		out = append(out, violation{
			finding: analysis.Finding{
				Message:  fmt.Sprintf("Nil slice declaration. Consider 'make(%s, 0)' for JSON compatibility.", t),
				Location: analysis.Location{Start: int(decl.StartByte()), End: int(decl.EndByte())},
			},
			edit: analysis.Edit{
				Start: int(typ.StartByte()),
				End:   int(typ.EndByte()),
				Old:   t,
				New:   "= make(" + t + ", 0)",
			},
		})
	}
	return out, nil
}

func singleNameNoValue(spec *sitter.Node) bool {
	names := 0
	for i := 0; i < int(spec.ChildCount()); i++ {
		switch spec.FieldNameForChild(i) {
		case "name":
			names++
		case "value":
			return false
		}
	}
	return names == 1
}
