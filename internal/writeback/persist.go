package writeback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/RoaringBitmap/roaring"
	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"

	"github.com/agentic-research/reform/internal/workspace"
)

const tempPrefix = ".reform-write-"

// Persister writes changed snapshot files back to a filesystem.
type Persister struct {
	FS     billy.Filesystem
	Logger *slog.Logger
}

// NewPersister returns a persister over fsys.
func NewPersister(fsys billy.Filesystem, logger *slog.Logger) *Persister {
	return &Persister{FS: fsys, Logger: logger}
}

type staged struct {
	tmp    string
	target string
}

// WriteChangedFiles writes every file in changed. All contents are first
// staged into temp files next to their targets; if any staging step fails
// every temp file is removed and nothing is replaced. Staged files are then
// renamed over their targets, preserving the target's permissions.
func (p *Persister) WriteChangedFiles(ctx context.Context, ws *workspace.Workspace, changed *roaring.Bitmap) error {
	files := workspace.ChangedFiles(ws, changed)
	var (
		pending []staged
		written uint64
	)
	cleanup := func() {
		for _, s := range pending {
			_ = p.FS.Remove(s.tmp) // best-effort cleanup
		}
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			cleanup()
			return err
		}
		tmp, err := p.stage(f)
		if err != nil {
			cleanup()
			return err
		}
		pending = append(pending, staged{tmp: tmp, target: f.Path})
		written += uint64(len(f.Text))
	}

	var errs []error
	for _, s := range pending {
		if err := p.FS.Rename(s.tmp, s.target); err != nil {
			_ = p.FS.Remove(s.tmp) // best-effort cleanup
			errs = append(errs, fmt.Errorf("rename temp to %s: %w", s.target, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	p.Logger.Debug("wrote changed files", "count", len(pending), "size", humanize.Bytes(written))
	return nil
}

func (p *Persister) stage(f *workspace.File) (string, error) {
	dir := path.Dir(f.Path)
	tmp, err := p.FS.TempFile(dir, tempPrefix)
	if err != nil {
		return "", fmt.Errorf("create temp file for %s: %w", f.Path, err)
	}
	name := tmp.Name()

	if _, err := tmp.Write([]byte(f.Text)); err != nil {
		_ = tmp.Close()
		_ = p.FS.Remove(name) // best-effort cleanup
		return "", fmt.Errorf("write temp for %s: %w", f.Path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = p.FS.Remove(name) // best-effort cleanup
		return "", fmt.Errorf("close temp for %s: %w", f.Path, err)
	}

	// Preserve original file permissions
	if ch, ok := p.FS.(billy.Change); ok {
		if info, err := p.FS.Stat(f.Path); err == nil {
			_ = ch.Chmod(name, info.Mode()) // best-effort permission sync
		}
	}
	return name, nil
}
