// Package fixer applies fix-all actions rule by rule, isolating every
// rule's failure from the rest of the run.
package fixer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/agentic-research/reform/internal/analysis"
	"github.com/agentic-research/reform/internal/guard"
	"github.com/agentic-research/reform/internal/runner"
	"github.com/agentic-research/reform/internal/workspace"
)

// Applier merges one rule's fix-all action into a snapshot.
type Applier struct {
	Engine analysis.Engine
	Logger *slog.Logger
}

// New returns an applier dispatching fixes through engine.
func New(engine analysis.Engine, logger *slog.Logger) *Applier {
	return &Applier{Engine: engine, Logger: logger}
}

var (
	errNoAction   = errors.New("code fix didn't return a Fix All action")
	errNoApply    = errors.New("code fix returned an unexpected operation")
	errNoFindings = errors.New("no findings to anchor the fix")
	errAnchorGone = errors.New("anchor file is not in the workspace")
)

// Apply fixes every finding of entry's rule in ws with a single fix-all
// invocation and returns the resulting snapshot. Whatever goes wrong is
// logged as a warning and ws is returned unchanged.
func (a *Applier) Apply(ctx context.Context, ws *workspace.Workspace, entry analysis.Entry, findings runner.Findings) *workspace.Workspace {
	id := entry.Rule.Descriptor().ID
	if !supportsWorkspace(entry.Fixer) {
		a.Logger.Warn("unable to fix rule: code fix doesn't support Fix All in Solution",
			"rule", id, "fixer", fixerName(entry.Fixer))
		return ws
	}

	var out *workspace.Workspace
	err := guard.Run(func() error {
		var err error
		out, err = a.fixAll(ctx, ws, id, entry.Fixer, findings)
		return err
	})
	switch {
	case errors.Is(err, errNoAction), errors.Is(err, errNoApply):
		a.Logger.Warn(err.Error(), "rule", id, "fixer", fixerName(entry.Fixer))
		return ws
	case err != nil:
		a.Logger.Warn("failed to apply code fix", "rule", id, "error", err)
		return ws
	}
	return out
}

func (a *Applier) fixAll(ctx context.Context, ws *workspace.Workspace, id string, fixer analysis.Fixer, findings runner.Findings) (*workspace.Workspace, error) {
	if len(findings) == 0 {
		return nil, errNoFindings
	}
	// File IDs follow enumeration order.
	first := slices.MinFunc(findings, func(x, y analysis.Finding) int { return cmp.Compare(x.File, y.File) })
	anchor := ws.File(first.File)
	if anchor == nil {
		return nil, errAnchorGone
	}

	action, err := a.Engine.FixAll(ctx, fixer, analysis.FixAllContext{
		RuleID:    id,
		Scope:     analysis.ScopeWorkspace,
		Anchor:    anchor,
		Workspace: ws,
		Findings:  findings,
	})
	if err != nil {
		return nil, err
	}
	if action == nil {
		return nil, errNoAction
	}
	for _, op := range action.Operations {
		if apply, ok := op.(analysis.ApplyChanges); ok && apply.Workspace != nil {
			return apply.Workspace, nil
		}
	}
	return nil, errNoApply
}

func supportsWorkspace(f analysis.Fixer) bool {
	if f == nil {
		return false
	}
	p := f.FixAllProvider()
	return p != nil && slices.Contains(p.SupportedScopes(), analysis.ScopeWorkspace)
}

func fixerName(f analysis.Fixer) string {
	if f == nil {
		return "<none>"
	}
	return fmt.Sprintf("%T", f)
}
