// Package rules holds the rules reform ships with. Every rule reports
// violations that one text edit repairs, and fixes them all at once.
package rules

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/reform/internal/analysis"
	"github.com/agentic-research/reform/internal/editorconfig"
	"github.com/agentic-research/reform/internal/workspace"
)

// violation is a finding together with the edit that repairs it.
type violation struct {
	finding analysis.Finding
	edit    analysis.Edit
}

type checker interface {
	descriptor() analysis.Descriptor
	check(ctx context.Context, doc *analysis.Document) ([]violation, error)
}

// editRule adapts a checker to analysis.Rule.
type editRule struct {
	checker
}

func (r editRule) Descriptor() analysis.Descriptor { return r.descriptor() }

func (r editRule) Analyze(ctx context.Context, doc *analysis.Document) ([]analysis.Finding, error) {
	vs, err := r.check(ctx, doc)
	if err != nil {
		return nil, err
	}
	out := make([]analysis.Finding, len(vs))
	for i, v := range vs {
		out[i] = v.finding
	}
	return out, nil
}

// editFixer fixes every violation of one rule in the files its findings
// name. Findings only select files: spans are recomputed from the text of
// the snapshot being fixed, since earlier fixes may have moved them.
type editFixer struct {
	rule editRule
}

func (f editFixer) FixableIDs() []string { return []string{f.rule.descriptor().ID} }

func (f editFixer) FixAllProvider() analysis.FixAllProvider { return f }

func (f editFixer) SupportedScopes() []analysis.FixAllScope {
	return []analysis.FixAllScope{analysis.ScopeDocument, analysis.ScopeProject, analysis.ScopeWorkspace}
}

func (f editFixer) Fix(ctx context.Context, fc analysis.FixAllContext) (*analysis.CodeAction, error) {
	id := f.rule.descriptor().ID
	files := roaring.New()
	for _, fd := range fc.ScopeFindings() {
		if !fd.Suppressed {
			files.Add(uint32(fd.File))
		}
	}

	ws := fc.Workspace
	it := files.Iterator()
	for it.HasNext() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file := ws.File(workspace.FileID(it.Next()))
		if file == nil {
			continue
		}
		vs, err := f.rule.check(ctx, analysis.NewDocument(file, editorconfig.NewConfig(nil)))
		if err != nil {
			return nil, fmt.Errorf("%s on %s: %w", id, file.Path, err)
		}
		edits := make([]analysis.Edit, 0, len(vs))
		for _, v := range vs {
			if !analysis.Suppressed(file.Text, v.finding.Location.Start, id) {
				edits = append(edits, v.edit)
			}
		}
		ws = ws.WithFileText(file.ID, analysis.ApplyEdits(file.Text, edits).Text)
	}

	return &analysis.CodeAction{
		Title:      "Fix all " + id,
		Operations: []analysis.Operation{analysis.ApplyChanges{Workspace: ws}},
	}, nil
}

// Builtin returns the built-in rules in the order they are fixed.
func Builtin() *analysis.Registry {
	return analysis.MustRegistry(
		entry(trailingWhitespace{}),
		entry(blankLines{}),
		entry(nilSlice{}),
	)
}

func entry(c checker) analysis.Entry {
	r := editRule{c}
	return analysis.Entry{Rule: r, Fixer: editFixer{rule: r}}
}
