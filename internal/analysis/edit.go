package analysis

import (
	"cmp"
	"slices"
	"strings"
)

// Edit replaces text[Start:End], which is expected to equal Old, with New.
type Edit struct {
	Start int
	End   int
	Old   string
	New   string
}

// EditResult reports how a batch of edits was applied.
type EditResult struct {
	Text    string
	Applied int
	// Stale counts edits whose expected text no longer matched.
	Stale int
	// Conflicts counts edits overlapping an edit applied before them.
	Conflicts int
}

// ApplyEdits applies edits in source order. Edits are verified against
// their expected old text, so spans computed against a different version
// of the text are discarded instead of corrupting it. Of two overlapping
// edits the earlier one wins.
func ApplyEdits(text string, edits []Edit) EditResult {
	sorted := slices.Clone(edits)
	slices.SortStableFunc(sorted, func(a, b Edit) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.End, b.End)
	})

	res := EditResult{}
	var b strings.Builder
	b.Grow(len(text))
	cursor := 0
	for _, e := range sorted {
		switch {
		case e.Start < cursor:
			res.Conflicts++
			continue
		case e.Start < 0 || e.End > len(text) || e.Start > e.End || text[e.Start:e.End] != e.Old:
			res.Stale++
			continue
		}
		b.WriteString(text[cursor:e.Start])
		b.WriteString(e.New)
		cursor = e.End
		res.Applied++
	}
	if res.Applied == 0 {
		res.Text = text
		return res
	}
	b.WriteString(text[cursor:])
	res.Text = b.String()
	return res
}
