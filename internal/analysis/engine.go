// Package analysis is the language engine behind the formatting stages:
// syntax-aware formatting, import organization, rule execution and
// fix-all dispatch, built on tree-sitter and gofumpt.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agentic-research/reform/internal/ingest"
	"github.com/agentic-research/reform/internal/workspace"
	"github.com/agentic-research/reform/internal/writeback"
)

// ErrFixAllUnsupported is returned by FixAll for fixers without a fix-all
// provider.
var ErrFixAllUnsupported = errors.New("fixer does not support fix all")

// Engine is everything the stages need from a language engine.
type Engine interface {
	// Format returns the whitespace-normalized text of doc.
	Format(ctx context.Context, doc *Document) (string, error)
	// OrganizeImports returns doc with its imports reordered.
	OrganizeImports(ctx context.Context, doc *Document) (string, error)
	// RunRules analyzes the documents of one project.
	RunRules(ctx context.Context, project *workspace.Project, docs []*Document, rules []Rule) ([]Finding, error)
	// FixAll asks fixer for one action covering fc's scope.
	FixAll(ctx context.Context, fixer Fixer, fc FixAllContext) (*CodeAction, error)
	// SeverityFor is the effective severity of rule in doc.
	SeverityFor(rule Descriptor, doc *Document) Severity
}

// SitterEngine implements Engine with tree-sitter grammars and gofumpt.
type SitterEngine struct {
	Logger *slog.Logger
	// GoVersion is passed to gofumpt as the language version, e.g. "go1.22".
	GoVersion string
}

// NewSitterEngine returns an engine logging to logger.
func NewSitterEngine(logger *slog.Logger) *SitterEngine {
	return &SitterEngine{Logger: logger}
}

var _ Engine = (*SitterEngine)(nil)

func (e *SitterEngine) Format(ctx context.Context, doc *Document) (string, error) {
	text := doc.Text()
	var out string
	switch doc.File.Language {
	case ingest.LangGo:
		formatted, err := writeback.FormatGo(text, e.GoVersion)
		if err != nil {
			return text, fmt.Errorf("format %s: %w", doc.File.Path, err)
		}
		out = formatted
	default:
		out = normalizeWhitespace(ctx, doc)
	}
	if err := writeback.CheckRewrite(ctx, text, out, doc.File.Path); err != nil {
		return text, fmt.Errorf("format discarded: %w", err)
	}
	return out, nil
}

func (e *SitterEngine) OrganizeImports(ctx context.Context, doc *Document) (string, error) {
	out, err := organizeImports(ctx, doc)
	if err != nil {
		return doc.Text(), fmt.Errorf("organize imports in %s: %w", doc.File.Path, err)
	}
	return out, nil
}

func (e *SitterEngine) RunRules(ctx context.Context, project *workspace.Project, docs []*Document, rules []Rule) ([]Finding, error) {
	var out []Finding
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, r := range rules {
			desc := r.Descriptor()
			if !desc.AppliesTo(doc.File.Language) {
				continue
			}
			found, err := r.Analyze(ctx, doc)
			if err != nil {
				return nil, fmt.Errorf("rule %s on %s: %w", desc.ID, doc.File.Path, err)
			}
			sev := e.SeverityFor(desc, doc)
			for _, f := range found {
				out = append(out, Stamp(f, desc, sev, project.ID, doc))
			}
		}
	}
	return out, nil
}

// Stamp completes a finding returned by a rule.
func Stamp(f Finding, desc Descriptor, sev Severity, project workspace.ProjectID, doc *Document) Finding {
	text := doc.Text()
	f.RuleID = desc.ID
	f.Severity = sev
	f.Project = project
	f.File = doc.File.ID
	f.Location.Path = doc.File.Path
	f.Location.Line, f.Location.Column = workspace.Position(text, f.Location.Start)
	if f.Message == "" {
		f.Message = desc.Title
	}
	f.Suppressed = f.Suppressed || Suppressed(text, f.Location.Start, desc.ID)
	return f
}

func (e *SitterEngine) FixAll(ctx context.Context, fixer Fixer, fc FixAllContext) (*CodeAction, error) {
	provider := fixer.FixAllProvider()
	if provider == nil {
		return nil, ErrFixAllUnsupported
	}
	return provider.Fix(ctx, fc)
}

func (e *SitterEngine) SeverityFor(rule Descriptor, doc *Document) Severity {
	name, ok := doc.Config.RuleSeverity(rule.ID)
	if !ok {
		return rule.DefaultSeverity
	}
	sev, err := ParseSeverity(name)
	if err != nil {
		e.Logger.Debug("ignoring invalid rule severity", "rule", rule.ID, "path", doc.File.Path, "value", name)
		return rule.DefaultSeverity
	}
	return sev
}
