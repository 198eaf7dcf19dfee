package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/reform/api"
	"github.com/agentic-research/reform/internal/workspace"
)

// maxFileSize bounds the files whose text is kept in the snapshot. Larger
// files load as binary and are never formatted.
const maxFileSize = 8 << 20

// maxWarnings is how many loader warnings are logged before the rest are
// summarized, unless Loader.LogAllWarnings is set.
const maxWarnings = 5

var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
}

// LoadError wraps any failure that prevents a workspace from loading.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("could not load workspace %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadOptions selects what to load from the loader's filesystem.
type LoadOptions struct {
	// Manifest is the manifest file name, relative to the filesystem root.
	// Empty means DefaultManifest. Ignored for folder workspaces.
	Manifest string
	Kind     api.WorkspaceKind
}

// Loader builds workspace snapshots from a billy filesystem whose root is
// the workspace directory.
type Loader struct {
	FS             billy.Filesystem
	Logger         *slog.Logger
	LogAllWarnings bool
}

// NewLoader returns a loader over fsys.
func NewLoader(fsys billy.Filesystem, logger *slog.Logger) *Loader {
	return &Loader{FS: fsys, Logger: logger}
}

// Load reads every project and file. Any error is a *LoadError.
func (l *Loader) Load(ctx context.Context, opts LoadOptions) (*workspace.Workspace, error) {
	root := l.FS.Root()
	b := workspace.NewBuilder(root)
	w := &warnings{logger: l.Logger, all: l.LogAllWarnings}

	if opts.Kind == api.KindFolder {
		name := filepath.Base(root)
		if name == "." || name == string(filepath.Separator) {
			name = "workspace"
		}
		p := b.AddProject(name, "", "")
		if err := l.addTree(ctx, b, w, p, "", nil); err != nil {
			return nil, &LoadError{Path: root, Err: err}
		}
		w.flush()
		return b.Build(), nil
	}

	manifest := opts.Manifest
	if manifest == "" {
		manifest = DefaultManifest
	}
	m, err := ReadManifest(l.FS, manifest)
	if err != nil {
		return nil, &LoadError{Path: filepath.Join(root, manifest), Err: err}
	}
	if len(m.Projects) == 0 {
		return nil, &LoadError{Path: filepath.Join(root, manifest), Err: errors.New("manifest declares no projects")}
	}

	for _, pb := range m.Projects {
		projRoot := workspace.CleanPath(pb.Root)
		if escapes(projRoot) {
			return nil, &LoadError{Path: root, Err: fmt.Errorf("project %q: root %q is outside the workspace", pb.Name, pb.Root)}
		}
		p := b.AddProject(pb.Name, pb.Language, projRoot)
		if err := l.addTree(ctx, b, w, p, projRoot, pb.Files); err != nil {
			return nil, &LoadError{Path: root, Err: fmt.Errorf("project %q: %w", pb.Name, err)}
		}
		for _, link := range pb.Links {
			rel := workspace.CleanPath(path.Join(projRoot, filepath.ToSlash(link)))
			if escapes(rel) {
				w.warn("linked file is outside the workspace", "project", pb.Name, "link", link)
				continue
			}
			if err := l.addFile(b, p, rel); err != nil {
				w.warn("linked file could not be read", "project", pb.Name, "link", link, "error", err)
			}
		}
	}
	w.flush()
	return b.Build(), nil
}

// addTree adds every regular file under dir, optionally filtered by globs
// relative to dir.
func (l *Loader) addTree(ctx context.Context, b *workspace.Builder, w *warnings, p workspace.ProjectID, dir string, globs []string) error {
	start := dir
	if start == "" {
		start = "."
	}
	return util.Walk(l.FS, start, func(name string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if name == start {
				return err
			}
			w.warn("skipping unreadable path", "path", name, "error", err)
			return nil
		}
		rel := workspace.CleanPath(name)
		if info.IsDir() {
			if rel != workspace.CleanPath(dir) && (skipDirs[info.Name()] || strings.HasPrefix(info.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if len(globs) > 0 && !matchAny(globs, strings.TrimPrefix(rel, dir+"/")) {
			return nil
		}
		if err := l.addFile(b, p, rel); err != nil {
			w.warn("skipping unreadable file", "path", rel, "error", err)
		}
		return nil
	})
}

func (l *Loader) addFile(b *workspace.Builder, p workspace.ProjectID, rel string) error {
	info, err := l.FS.Stat(rel)
	if err != nil {
		return err
	}
	if info.Size() > maxFileSize {
		l.Logger.Debug("loading oversized file as binary", "path", rel, "size", humanize.Bytes(uint64(info.Size())))
		b.AddFile(p, rel, "", workspace.KindBinary, "")
		return nil
	}
	content, err := util.ReadFile(l.FS, rel)
	if err != nil {
		return err
	}
	if isBinary(content) {
		b.AddFile(p, rel, "", workspace.KindBinary, "")
		return nil
	}
	if lang, _, ok := DetectLanguage(rel); ok {
		b.AddFile(p, rel, lang, workspace.KindSource, string(content))
		return nil
	}
	b.AddFile(p, rel, "", workspace.KindText, string(content))
	return nil
}

func matchAny(globs []string, rel string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel)
}

// warnings caps how many loader warnings reach the log.
type warnings struct {
	logger *slog.Logger
	all    bool
	n      int
}

func (w *warnings) warn(msg string, args ...any) {
	w.n++
	if w.all || w.n <= maxWarnings {
		w.logger.Warn(msg, args...)
	}
}

func (w *warnings) flush() {
	if !w.all && w.n > maxWarnings {
		w.logger.Warn("further workspace warnings suppressed", "count", w.n-maxWarnings)
	}
}
