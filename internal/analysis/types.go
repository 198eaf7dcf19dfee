package analysis

import (
	"context"
	"fmt"
	"slices"

	"github.com/agentic-research/reform/internal/workspace"
)

// Location is a byte span in a file. Line and Column are 1-based and
// describe Start.
type Location struct {
	Path   string
	Start  int
	End    int
	Line   int
	Column int
}

// Valid reports whether the location points into a file.
func (l Location) Valid() bool { return l.Path != "" }

func (l Location) String() string {
	return fmt.Sprintf("%s(%d,%d)", l.Path, l.Line, l.Column)
}

// Finding is one rule violation.
type Finding struct {
	RuleID     string
	Severity   Severity
	Message    string
	Location   Location
	Project    workspace.ProjectID
	File       workspace.FileID
	Suppressed bool
}

// Descriptor identifies a rule.
type Descriptor struct {
	ID              string
	Title           string
	DefaultSeverity Severity
	// Languages limits the rule to these language names; empty means all.
	Languages []string
}

// AppliesTo reports whether the rule runs on files of lang.
func (d Descriptor) AppliesTo(lang string) bool {
	return len(d.Languages) == 0 || slices.Contains(d.Languages, lang)
}

// Rule inspects one document. Findings need only Location.Start/End and
// Message; the engine fills in the rest.
type Rule interface {
	Descriptor() Descriptor
	Analyze(ctx context.Context, doc *Document) ([]Finding, error)
}

// FixAllScope is the extent of a fix-all request.
type FixAllScope int

const (
	ScopeDocument FixAllScope = iota
	ScopeProject
	ScopeWorkspace
)

// FindingProvider serves the findings a fix-all action should address.
type FindingProvider interface {
	FileFindings(id workspace.FileID) []Finding
	ProjectFindings(id workspace.ProjectID) []Finding
	AllFindings() []Finding
}

// FixAllContext is the input of one fix-all invocation.
type FixAllContext struct {
	RuleID    string
	Scope     FixAllScope
	Anchor    *workspace.File
	Workspace *workspace.Workspace
	Findings  FindingProvider
}

// ScopeFindings returns the findings covered by the context's scope.
func (c FixAllContext) ScopeFindings() []Finding {
	switch c.Scope {
	case ScopeDocument:
		return c.Findings.FileFindings(c.Anchor.ID)
	case ScopeProject:
		return c.Findings.ProjectFindings(c.Anchor.Project)
	default:
		return c.Findings.AllFindings()
	}
}

// FixAllProvider computes one action fixing every finding in scope.
type FixAllProvider interface {
	SupportedScopes() []FixAllScope
	Fix(ctx context.Context, fc FixAllContext) (*CodeAction, error)
}

// Fixer produces fixes for the rules it declares.
type Fixer interface {
	FixableIDs() []string
	// FixAllProvider returns nil when the fixer cannot fix in bulk.
	FixAllProvider() FixAllProvider
}

// CodeAction is the result of a fix-all invocation.
type CodeAction struct {
	Title      string
	Operations []Operation
}

// Operation is one step of a CodeAction.
type Operation interface {
	operation()
}

// ApplyChanges replaces the current snapshot with Workspace.
type ApplyChanges struct {
	Workspace *workspace.Workspace
}

func (ApplyChanges) operation() {}

// Notice is an informational operation that changes nothing.
type Notice struct {
	Message string
}

func (Notice) operation() {}
