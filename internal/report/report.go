// Package report records where each stage changed each file and writes the
// result as JSON or as a SQLite database.
package report

import (
	"path"

	"github.com/RoaringBitmap/roaring"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/agentic-research/reform/internal/workspace"
)

// FileChange is one changed region. Line and Column are 1-based and refer to
// the text before the change.
type FileChange struct {
	Line        int
	Column      int
	Description string
}

// FormattedFile lists the changes made to one file.
type FormattedFile struct {
	FileID   workspace.FileID
	FileName string
	FilePath string
	Changes  []FileChange
}

// Changes diffs before against after and returns one entry per changed
// region, each tagged with description.
func Changes(before, after, description string) []FileChange {
	if before == after {
		return nil
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)

	var out []FileChange
	offset := 0
	open := false
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			offset += len(d.Text)
			open = false
			continue
		}
		if !open {
			line, col := workspace.Position(before, offset)
			out = append(out, FileChange{Line: line, Column: col, Description: description})
			open = true
		}
		if d.Type == diffmatchpatch.DiffDelete {
			offset += len(d.Text)
		}
	}
	return out
}

// Collector accumulates the changes of a run. Stages fold sequentially, so
// it is not safe for concurrent use.
type Collector struct {
	files map[workspace.FileID]*FormattedFile
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{files: make(map[workspace.FileID]*FormattedFile)}
}

// Record adds the changes between two versions of f and returns them.
func (c *Collector) Record(ws *workspace.Workspace, f *workspace.File, before, after, description string) []FileChange {
	changes := Changes(before, after, description)
	if len(changes) == 0 {
		return nil
	}
	ff, ok := c.files[f.ID]
	if !ok {
		ff = &FormattedFile{FileID: f.ID, FileName: path.Base(f.Path), FilePath: ws.AbsPath(f.Path)}
		c.files[f.ID] = ff
	}
	ff.Changes = append(ff.Changes, changes...)
	return changes
}

// Files returns the recorded files that are in changed, in enumeration
// order. Files whose edits cancelled out are left out.
func (c *Collector) Files(changed *roaring.Bitmap) []FormattedFile {
	var out []FormattedFile
	it := changed.Iterator()
	for it.HasNext() {
		if ff, ok := c.files[workspace.FileID(it.Next())]; ok {
			out = append(out, *ff)
		}
	}
	return out
}
