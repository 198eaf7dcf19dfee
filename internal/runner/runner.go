// Package runner analyzes the eligible files of every project concurrently
// and returns the actionable findings grouped by rule.
package runner

import (
	"cmp"
	"context"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/reform/internal/analysis"
	"github.com/agentic-research/reform/internal/eligibility"
	"github.com/agentic-research/reform/internal/guard"
	"github.com/agentic-research/reform/internal/workspace"
)

// Options controls one analysis pass.
type Options struct {
	// Threshold is the lowest severity kept.
	Threshold analysis.Severity
	Jobs      int
}

// Runner runs rules over the projects of a snapshot.
type Runner struct {
	Engine analysis.Engine
	Logger *slog.Logger
}

// New returns a runner backed by engine.
func New(engine analysis.Engine, logger *slog.Logger) *Runner {
	return &Runner{Engine: engine, Logger: logger}
}

// accumulator collects findings per project from concurrent units.
type accumulator struct {
	mu        sync.Mutex
	byProject map[workspace.ProjectID][]analysis.Finding
}

func (a *accumulator) add(p workspace.ProjectID, fs []analysis.Finding) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byProject[p] = append(a.byProject[p], fs...)
}

// Run analyzes each project holding eligible files as one isolated unit. A
// unit that fails or panics is logged and contributes no findings. The
// only error is cancellation, returned with whatever was collected.
func (r *Runner) Run(ctx context.Context, ws *workspace.Workspace, eligible []eligibility.File, rules []analysis.Rule, opts Options) (*Result, error) {
	paths := make(map[string]bool, len(eligible))
	byProject := make(map[workspace.ProjectID][]eligibility.File)
	for _, f := range eligible {
		paths[workspace.PathKey(f.Path)] = true
		byProject[f.Project] = append(byProject[f.Project], f)
	}

	acc := &accumulator{byProject: make(map[workspace.ProjectID][]analysis.Finding)}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(max(1, jobs))
	for _, p := range ws.Projects() {
		files := byProject[p.ID]
		if len(files) == 0 {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			var found []analysis.Finding
			err := guard.Run(func() error {
				docs := make([]*analysis.Document, 0, len(files))
				for _, f := range files {
					docs = append(docs, analysis.NewDocument(ws.File(f.ID), f.Config))
				}
				var err error
				found, err = r.Engine.RunRules(ctx, p, docs, rules)
				return err
			})
			if err != nil {
				if ctx.Err() == nil {
					r.Logger.Warn("project analysis failed", "project", p.Name, "error", err)
				}
				return nil
			}
			acc.add(p.ID, found)
			return nil
		})
	}
	_ = g.Wait()

	res := newResult(rules)
	for _, p := range ws.Projects() {
		for _, f := range acc.byProject[p.ID] {
			switch {
			case f.Suppressed, f.Severity < opts.Threshold, !f.Location.Valid():
			case !paths[workspace.PathKey(f.Location.Path)]:
			default:
				res.add(f)
			}
		}
	}
	res.sort()
	return res, ctx.Err()
}

// Result holds findings grouped by rule in registry order. It serves the
// findings of every rule to fix-all providers.
type Result struct {
	order  []string
	byRule map[string]Findings
}

func newResult(rules []analysis.Rule) *Result {
	res := &Result{byRule: make(map[string]Findings, len(rules))}
	for _, r := range rules {
		res.order = append(res.order, r.Descriptor().ID)
	}
	return res
}

func (r *Result) add(f analysis.Finding) {
	r.byRule[f.RuleID] = append(r.byRule[f.RuleID], f)
}

func (r *Result) sort() {
	for _, fs := range r.byRule {
		slices.SortStableFunc(fs, func(a, b analysis.Finding) int {
			return cmp.Or(cmp.Compare(a.File, b.File), cmp.Compare(a.Location.Start, b.Location.Start))
		})
	}
}

// RuleIDs returns the rules with findings, in registry order.
func (r *Result) RuleIDs() []string {
	var out []string
	for _, id := range r.order {
		if len(r.byRule[id]) > 0 {
			out = append(out, id)
		}
	}
	return out
}

// Findings returns the findings of one rule, ordered by file then offset.
func (r *Result) Findings(ruleID string) Findings { return r.byRule[ruleID] }

// Len is the total number of findings.
func (r *Result) Len() int {
	n := 0
	for _, fs := range r.byRule {
		n += len(fs)
	}
	return n
}

func (r *Result) FileFindings(id workspace.FileID) []analysis.Finding {
	return r.all().FileFindings(id)
}

func (r *Result) ProjectFindings(id workspace.ProjectID) []analysis.Finding {
	return r.all().ProjectFindings(id)
}

func (r *Result) AllFindings() []analysis.Finding { return r.all() }

func (r *Result) all() Findings {
	var out Findings
	for _, id := range r.order {
		out = append(out, r.byRule[id]...)
	}
	return out
}

var (
	_ analysis.FindingProvider = (*Result)(nil)
	_ analysis.FindingProvider = Findings(nil)
)

// Findings is a list of findings usable as an analysis.FindingProvider.
type Findings []analysis.Finding

func (fs Findings) FileFindings(id workspace.FileID) []analysis.Finding {
	var out []analysis.Finding
	for _, f := range fs {
		if f.File == id {
			out = append(out, f)
		}
	}
	return out
}

func (fs Findings) ProjectFindings(id workspace.ProjectID) []analysis.Finding {
	var out []analysis.Finding
	for _, f := range fs {
		if f.Project == id {
			out = append(out, f)
		}
	}
	return out
}

func (fs Findings) AllFindings() []analysis.Finding { return fs }
