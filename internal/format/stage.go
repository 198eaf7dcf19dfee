// Package format holds the formatter stages. Each stage maps a snapshot
// and the fixed eligible set to a new snapshot.
package format

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/reform/internal/analysis"
	"github.com/agentic-research/reform/internal/eligibility"
	"github.com/agentic-research/reform/internal/guard"
	"github.com/agentic-research/reform/internal/logging"
	"github.com/agentic-research/reform/internal/report"
	"github.com/agentic-research/reform/internal/workspace"
)

// Stage is one step of the pipeline. Apply must not touch files outside
// eligible and returns ws itself when nothing changed.
type Stage interface {
	Name() string
	Apply(ctx context.Context, ws *workspace.Workspace, eligible []eligibility.File) *workspace.Workspace
}

// Env is what stages share within a run.
type Env struct {
	Engine analysis.Engine
	Logger *slog.Logger
	// Jobs bounds per-file parallelism; zero means GOMAXPROCS.
	Jobs int
	// Report, when set, collects every change a stage folds in.
	Report *report.Collector
}

func (e *Env) jobs() int {
	if e.Jobs > 0 {
		return e.Jobs
	}
	return runtime.GOMAXPROCS(0)
}

// record logs and collects the changes between two versions of f.
func (e *Env) record(ctx context.Context, ws *workspace.Workspace, f *workspace.File, before, after, description string) {
	trace := e.Logger.Enabled(ctx, logging.LevelTrace)
	if e.Report == nil && !trace {
		return
	}
	var changes []report.FileChange
	if e.Report != nil {
		changes = e.Report.Record(ws, f, before, after, description)
	} else {
		changes = report.Changes(before, after, description)
	}
	if !trace {
		return
	}
	for _, c := range changes {
		e.Logger.Log(ctx, logging.LevelTrace, fmt.Sprintf("%s(%d,%d): %s", f.Path, c.Line, c.Column, c.Description))
	}
}

// formatFunc computes the new text of one document.
type formatFunc func(ctx context.Context, doc *analysis.Document) (string, error)

// documentStage runs a formatFunc over every eligible file concurrently and
// folds the results in eligible order.
type documentStage struct {
	env         *Env
	name        string
	description string
	format      formatFunc
}

func (s *documentStage) Name() string { return s.name }

func (s *documentStage) Apply(ctx context.Context, ws *workspace.Workspace, eligible []eligibility.File) *workspace.Workspace {
	// slots[i] is the new text of eligible[i], nil when unchanged.
	slots := make([]*string, len(eligible))

	var g errgroup.Group
	g.SetLimit(max(1, min(s.env.jobs(), len(eligible))))
	for i, ef := range eligible {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			file := ws.File(ef.ID)
			s.env.Logger.Log(ctx, logging.LevelTrace, "formatting file", "stage", s.name, "path", file.Path)
			var out string
			err := guard.Run(func() error {
				var err error
				out, err = s.format(ctx, analysis.NewDocument(file, ef.Config))
				return err
			})
			if err != nil {
				s.env.Logger.Warn("could not format file", "stage", s.name, "path", file.Path, "error", err)
				return nil
			}
			if out != file.Text {
				slots[i] = &out
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, out := range slots {
		if out == nil {
			continue
		}
		file := ws.File(eligible[i].ID)
		s.env.record(ctx, ws, file, file.Text, *out, s.description)
		ws = ws.WithFileText(file.ID, *out)
	}
	return ws
}
