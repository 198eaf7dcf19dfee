package format

import (
	"context"

	"github.com/agentic-research/reform/api"
	"github.com/agentic-research/reform/internal/analysis"
	"github.com/agentic-research/reform/internal/eligibility"
	"github.com/agentic-research/reform/internal/fixer"
	"github.com/agentic-research/reform/internal/runner"
	"github.com/agentic-research/reform/internal/workspace"
)

// Analyzers runs the registered rules and applies their fix-all actions,
// one rule at a time in registry order.
type Analyzers struct {
	env       *Env
	registry  *analysis.Registry
	threshold analysis.Severity
	runner    *runner.Runner
	applier   *fixer.Applier
}

// NewAnalyzers returns the rule-fixing stage.
func NewAnalyzers(env *Env, registry *analysis.Registry, threshold analysis.Severity) *Analyzers {
	return &Analyzers{
		env:       env,
		registry:  registry,
		threshold: threshold,
		runner:    runner.New(env.Engine, env.Logger),
		applier:   fixer.New(env.Engine, env.Logger),
	}
}

func (s *Analyzers) Name() string { return "analyzers" }

// Apply fixes rules strictly in sequence. Findings come from one analysis
// of the input snapshot; once a fix has changed the snapshot, each later
// rule is analyzed again so its fixer sees where its findings are now.
func (s *Analyzers) Apply(ctx context.Context, ws *workspace.Workspace, eligible []eligibility.File) *workspace.Workspace {
	opts := runner.Options{Threshold: s.threshold, Jobs: s.env.Jobs}
	res, err := s.runner.Run(ctx, ws, eligible, s.registry.Rules(), opts)
	if err != nil {
		return ws
	}
	s.env.Logger.Debug("analysis complete", "findings", res.Len(), "rules", len(res.RuleIDs()))

	analyzed := ws
	for _, e := range s.registry.Entries() {
		if ctx.Err() != nil {
			return ws
		}
		desc := e.Rule.Descriptor()
		findings := res.Findings(desc.ID)
		if ws != analyzed {
			again, err := s.runner.Run(ctx, ws, eligible, []analysis.Rule{e.Rule}, opts)
			if err != nil {
				return ws
			}
			findings = again.Findings(desc.ID)
		}
		if len(findings) == 0 {
			continue
		}
		s.env.Logger.Debug("fixing rule", "rule", desc.ID, "findings", len(findings))

		before := ws
		ws = s.applier.Apply(ctx, ws, e, findings)
		for _, f := range workspace.ChangedFiles(ws, workspace.Diff(before, ws)) {
			s.env.record(ctx, ws, f, before.File(f.ID).Text, f.Text, desc.ID+": "+desc.Title)
		}
	}
	return ws
}

// Stages returns the stages selected by categories in their fixed order:
// whitespace, final newline and end of line, then imports and analyzers.
func Stages(env *Env, categories api.FixCategory, registry *analysis.Registry, threshold analysis.Severity) []Stage {
	eol := NewEndOfLine(env)
	var out []Stage
	if categories.Has(api.FixWhitespace) {
		out = append(out, NewWhitespace(env), NewFinalNewline(env), eol)
	}
	if categories.Has(api.FixStyle) {
		out = append(out, NewImports(env, eol), NewAnalyzers(env, registry, threshold))
	}
	return out
}
