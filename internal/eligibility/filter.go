// Package eligibility decides, once per run, which files the formatting
// stages may touch and with which effective configuration.
package eligibility

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/reform/internal/editorconfig"
	"github.com/agentic-research/reform/internal/workspace"
)

// File is one file admitted to a run, with its effective configuration.
type File struct {
	ID      workspace.FileID
	Project workspace.ProjectID
	Path    string
	Config  editorconfig.Config
}

// ConfigResolver yields the effective configuration of a workspace path.
type ConfigResolver interface {
	Resolve(path string) editorconfig.Config
}

// Options narrows the working set.
type Options struct {
	// Project, when set, restricts the run to the named project.
	Project          string
	Include          []string
	Exclude          []string
	IncludeGenerated bool
	Jobs             int
}

// Filter computes the eligible working set.
type Filter struct {
	Resolver ConfigResolver
	Logger   *slog.Logger
}

// Eligible returns the admitted files in workspace enumeration order. The
// only error is an invalid include or exclude pattern; cancellation yields
// the files checked so far.
func (f *Filter) Eligible(ctx context.Context, ws *workspace.Workspace, opts Options) ([]File, error) {
	matcher, err := NewMatcher(opts.Include, opts.Exclude)
	if err != nil {
		return nil, fmt.Errorf("file matcher: %w", err)
	}

	var candidates []*workspace.File
	for _, p := range ws.Projects() {
		if opts.Project != "" && p.Name != opts.Project {
			f.Logger.Debug("skipping referenced project", "project", p.Name)
			continue
		}
		for _, id := range p.Files {
			file := ws.File(id)
			if !matcher.Match(file.Path) {
				f.Logger.Debug("file excluded by pattern", "path", file.Path)
				continue
			}
			if file.Kind != workspace.KindSource {
				f.Logger.Debug("file has no syntax tree", "path", file.Path, "kind", file.Kind)
				continue
			}
			candidates = append(candidates, file)
		}
	}

	// slots are written by index; nil means rejected or not reached.
	slots := make([]*File, len(candidates))
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(max(1, min(jobs, len(candidates))))
	for i, file := range candidates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if !opts.IncludeGenerated && IsGenerated(ctx, file) {
				f.Logger.Debug("skipping generated file", "path", file.Path)
				return nil
			}
			slots[i] = &File{
				ID:      file.ID,
				Project: file.Project,
				Path:    file.Path,
				Config:  f.Resolver.Resolve(file.Path),
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]File, 0, len(slots))
	claimed := make(map[string]workspace.ProjectID, len(slots))
	for _, s := range slots {
		if s == nil {
			continue
		}
		key := workspace.PathKey(s.Path)
		if owner, dup := claimed[key]; dup {
			f.Logger.Debug("file already claimed by an earlier project",
				"path", s.Path, "owner", ws.Project(owner).Name)
			continue
		}
		claimed[key] = s.Project
		out = append(out, *s)
	}
	return out, nil
}
