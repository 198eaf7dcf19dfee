// Package pipeline drives one formatting run: load the workspace, fix the
// eligible set, run the selected stages in order and persist the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/agentic-research/reform/api"
	"github.com/agentic-research/reform/internal/analysis"
	"github.com/agentic-research/reform/internal/editorconfig"
	"github.com/agentic-research/reform/internal/eligibility"
	"github.com/agentic-research/reform/internal/format"
	"github.com/agentic-research/reform/internal/ingest"
	"github.com/agentic-research/reform/internal/report"
	"github.com/agentic-research/reform/internal/rules"
	"github.com/agentic-research/reform/internal/workspace"
	"github.com/agentic-research/reform/internal/writeback"
)

// ErrProjectNotFound is returned when a project workspace names a project
// its manifest does not declare.
var ErrProjectNotFound = errors.New("project not found")

// State is a step of the coordinator's state machine.
type State int

const (
	Idle State = iota
	Resolving
	RunningStages
	Finalizing
	Done
)

func (s State) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case RunningStages:
		return "running-stages"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	default:
		return "idle"
	}
}

// Loader loads a workspace snapshot.
type Loader interface {
	Load(ctx context.Context, opts ingest.LoadOptions) (*workspace.Workspace, error)
}

// Persister writes changed files back, all or nothing.
type Persister interface {
	WriteChangedFiles(ctx context.Context, ws *workspace.Workspace, changed *roaring.Bitmap) error
}

// Services are the collaborators of a run. They are built once per run and
// passed down explicitly.
type Services struct {
	Loader    Loader
	Resolver  eligibility.ConfigResolver
	Engine    analysis.Engine
	Registry  *analysis.Registry
	Persister Persister
	Logger    *slog.Logger
}

// DefaultServices wires the loader, .editorconfig resolver and persister
// over fsys, the tree-sitter engine and the built-in rules. When fsys is
// rooted at a host directory the resolver also reads the host directories
// above it.
func DefaultServices(fsys billy.Filesystem, logger *slog.Logger) Services {
	return Services{
		Loader:    ingest.NewLoader(fsys, logger),
		Resolver:  newResolver(fsys, logger),
		Engine:    analysis.NewSitterEngine(logger),
		Registry:  rules.Builtin(),
		Persister: writeback.NewPersister(fsys, logger),
		Logger:    logger,
	}
}

func newResolver(fsys billy.Filesystem, logger *slog.Logger) *editorconfig.Resolver {
	r := editorconfig.NewResolver(editorconfig.FSSource{FS: fsys}, logger)
	root := fsys.Root()
	if !filepath.IsAbs(root) || filepath.Dir(root) == root {
		return r
	}
	vol := filepath.VolumeName(root)
	host := osfs.New(vol + string(filepath.Separator))
	return r.WithParents(filepath.ToSlash(strings.TrimPrefix(root, vol)), editorconfig.FSSource{FS: host})
}

// SplitPath splits a workspace path into the directory to load from and
// the manifest name within it. A directory path leaves the manifest empty.
func SplitPath(p string, kind api.WorkspaceKind) (dir, manifest string) {
	if kind != api.KindFolder && strings.EqualFold(filepath.Ext(p), ".hcl") {
		return filepath.Dir(p), filepath.Base(p)
	}
	return p, ""
}

// RunResult summarizes a run.
type RunResult struct {
	FilesConsidered int
	FilesChanged    int
	// ChangedFiles are the changed paths in enumeration order.
	ChangedFiles []string
	ExitCode     int
	Cancelled    bool
	// Report is only filled when a report was requested.
	Report []report.FormattedFile
	// Workspace is the final snapshot, nil when loading failed.
	Workspace *workspace.Workspace
	Elapsed   time.Duration
}

// Coordinator runs the pipeline. It is single-use per run.
type Coordinator struct {
	svc Services

	// OnTransition, when set, observes every state change. stage is the
	// index of the stage about to run and -1 outside RunningStages.
	OnTransition func(from, to State, stage int)

	state State
}

// New returns an idle coordinator.
func New(svc Services) *Coordinator {
	return &Coordinator{svc: svc}
}

// State returns the current state.
func (c *Coordinator) State() State { return c.state }

func (c *Coordinator) enter(to State, stage int) {
	from := c.state
	c.state = to
	if c.OnTransition != nil {
		c.OnTransition(from, to, stage)
	}
}

// Run formats the workspace described by opts. Failures are logged and
// reflected in the exit code; a run that started its stages always
// returns the best result it reached.
func (c *Coordinator) Run(ctx context.Context, opts api.RunOptions) RunResult {
	start := time.Now()
	log := c.svc.Logger
	res := RunResult{ExitCode: api.ExitFailure}
	finish := func() RunResult {
		res.Elapsed = time.Since(start)
		c.enter(Done, -1)
		return res
	}

	if err := opts.Validate(); err != nil {
		log.Error("invalid options", "error", err)
		return finish()
	}
	threshold, err := analysis.ParseSeverity(severityOrDefault(opts.Severity))
	if err != nil {
		log.Error("invalid options", "error", err)
		return finish()
	}

	_, manifest := SplitPath(opts.Path, opts.Kind)
	log.Debug("loading workspace", "path", opts.Path, "kind", opts.Kind)
	original, err := c.svc.Loader.Load(ctx, ingest.LoadOptions{Manifest: manifest, Kind: opts.Kind})
	if err != nil {
		log.Error("could not load workspace", "error", err)
		return finish()
	}
	log.Debug("workspace loaded", "projects", len(original.Projects()), "files", original.FileCount(), "elapsed", time.Since(start))
	res.Workspace = original

	c.enter(Resolving, -1)
	eligible, err := c.resolve(ctx, original, opts)
	if err != nil {
		log.Error("could not resolve files", "error", err)
		return finish()
	}
	res.FilesConsidered = len(eligible)

	env := &format.Env{Engine: c.svc.Engine, Logger: log, Jobs: opts.Jobs}
	if opts.ReportPath != "" {
		env.Report = report.NewCollector()
	}
	stages := format.Stages(env, opts.Categories, c.svc.Registry, threshold)

	ws := original
	touched := roaring.New()
	for i, s := range stages {
		if ctx.Err() != nil {
			break
		}
		c.enter(RunningStages, i)
		began := time.Now()
		before := ws
		ws = s.Apply(ctx, ws, eligible)
		diff := workspace.Diff(before, ws)
		touched.Or(diff)
		log.Debug("stage complete", "stage", s.Name(), "changed", diff.GetCardinality(), "elapsed", time.Since(began))
	}
	res.Cancelled = ctx.Err() != nil

	c.enter(Finalizing, -1)
	res.Workspace = ws
	changed := workspace.Diff(original, ws)
	log.Debug("changed sets", "touched", touched.GetCardinality(), "final", changed.GetCardinality())
	for _, f := range workspace.ChangedFiles(ws, changed) {
		res.ChangedFiles = append(res.ChangedFiles, f.Path)
		if opts.Check {
			log.Warn("file is not formatted", "path", f.Path)
		} else {
			log.Info("formatted file", "path", f.Path)
		}
	}
	res.FilesChanged = len(res.ChangedFiles)
	if env.Report != nil {
		res.Report = env.Report.Files(changed)
	}

	res.ExitCode = c.finalize(ctx, ws, changed, opts, &res)
	log.Info("format complete",
		"considered", res.FilesConsidered,
		"changed", res.FilesChanged,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return finish()
}

// resolve computes the eligible set once for the whole run.
func (c *Coordinator) resolve(ctx context.Context, ws *workspace.Workspace, opts api.RunOptions) ([]eligibility.File, error) {
	var project string
	if opts.Kind == api.KindProject {
		if _, ok := ws.ProjectByName(opts.Project); !ok {
			return nil, fmt.Errorf("%w: %q", ErrProjectNotFound, opts.Project)
		}
		project = opts.Project
	}
	filter := &eligibility.Filter{Resolver: c.svc.Resolver, Logger: c.svc.Logger}
	return filter.Eligible(ctx, ws, eligibility.Options{
		Project:          project,
		Include:          opts.Include,
		Exclude:          opts.Exclude,
		IncludeGenerated: opts.IncludeGenerated,
		Jobs:             opts.Jobs,
	})
}

// finalize persists and reports, returning the exit code.
func (c *Coordinator) finalize(ctx context.Context, ws *workspace.Workspace, changed *roaring.Bitmap, opts api.RunOptions, res *RunResult) int {
	log := c.svc.Logger
	code := api.ExitOK

	if opts.ReportPath != "" {
		out, err := report.Write(opts.ReportPath, res.Report)
		if err != nil {
			log.Error("could not write report", "path", opts.ReportPath, "error", err)
			code = api.ExitFailure
		} else {
			log.Info("wrote report", "path", out, "files", len(res.Report))
		}
	}

	switch {
	case res.Cancelled:
		log.Warn("run cancelled; no files were written", "changed", res.FilesChanged)
		return api.ExitFailure
	case opts.Check:
		if res.FilesChanged > 0 && code == api.ExitOK {
			return api.ExitCheckFailed
		}
		return code
	case changed.IsEmpty():
		return code
	}

	if err := c.svc.Persister.WriteChangedFiles(ctx, ws, changed); err != nil {
		log.Error("failed to save formatting changes", "error", err)
		return api.ExitFailure
	}
	return code
}

func severityOrDefault(s string) string {
	if s == "" {
		return analysis.SeverityWarning.String()
	}
	return s
}
