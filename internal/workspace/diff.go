package workspace

import (
	"github.com/RoaringBitmap/roaring"
)

// Diff returns the IDs of files whose text differs between from and to.
// Both snapshots must derive from the same Build. Chunks shared by the two
// snapshots are skipped without comparing text.
func Diff(from, to *Workspace) *roaring.Bitmap {
	changed := roaring.New()
	if from == to {
		return changed
	}
	for i := range from.files.chunks {
		if i >= len(to.files.chunks) {
			break
		}
		if sameChunk(from.files, to.files, i) {
			continue
		}
		a, b := from.files.chunks[i], to.files.chunks[i]
		for j := range a {
			if j >= len(b) {
				break
			}
			if a[j] != b[j] && a[j].Text != b[j].Text {
				changed.Add(uint32(a[j].ID))
			}
		}
	}
	return changed
}

// ChangedFiles resolves a change set against ws, in enumeration order.
func ChangedFiles(ws *Workspace, changed *roaring.Bitmap) []*File {
	out := make([]*File, 0, changed.GetCardinality())
	it := changed.Iterator()
	for it.HasNext() {
		if f := ws.File(FileID(it.Next())); f != nil {
			out = append(out, f)
		}
	}
	return out
}
