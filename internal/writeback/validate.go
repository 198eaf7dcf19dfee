package writeback

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/reform/internal/ingest"
)

// ValidationError locates a syntax error in a rewritten file.
type ValidationError struct {
	FilePath string
	Line     uint32 // 0-indexed
	Column   uint32 // 0-indexed
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.FilePath, e.Line+1, e.Column+1, e.Message)
}

// ASTErrors returns every ERROR or MISSING node of content, in document
// order. Files without a tree-sitter grammar have none.
func ASTErrors(ctx context.Context, content []byte, filePath string) []ValidationError {
	root, err := parse(ctx, content, filePath)
	if err != nil || root == nil || !root.HasError() {
		return nil
	}
	var errs []ValidationError
	collectErrors(root, filePath, &errs)
	return errs
}

// CheckRewrite rejects a rewrite that parses worse than its input. Input
// that was already broken may stay broken; the returned error is the first
// syntax error of after.
func CheckRewrite(ctx context.Context, before, after, filePath string) error {
	if before == after {
		return nil
	}
	got := ASTErrors(ctx, []byte(after), filePath)
	if len(got) <= len(ASTErrors(ctx, []byte(before), filePath)) {
		return nil
	}
	return &got[0]
}

func parse(ctx context.Context, content []byte, filePath string) (*sitter.Node, error) {
	_, lang, ok := ingest.DetectLanguage(filePath)
	if !ok {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed for %s: %w", filePath, err)
	}
	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("tree-sitter returned nil root for %s", filePath)
	}
	return root, nil
}

func collectErrors(node *sitter.Node, filePath string, errs *[]ValidationError) {
	if node.IsError() || node.IsMissing() {
		msg := "syntax error"
		if node.IsMissing() {
			msg = "missing " + node.Type()
		}
		*errs = append(*errs, ValidationError{
			FilePath: filePath,
			Line:     node.StartPoint().Row,
			Column:   node.StartPoint().Column,
			Message:  msg,
		})
		return // don't recurse into error children
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.HasError() || child.IsError() || child.IsMissing() {
			collectErrors(child, filePath, errs)
		}
	}
}
