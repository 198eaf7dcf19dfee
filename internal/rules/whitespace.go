package rules

import (
	"context"
	"strings"

	"github.com/agentic-research/reform/internal/analysis"
)

const (
	IDTrailingWhitespace = "RF1001"
	IDBlankLines         = "RF1002"
)

type trailingWhitespace struct{}

func (trailingWhitespace) descriptor() analysis.Descriptor {
	return analysis.Descriptor{
		ID:              IDTrailingWhitespace,
		Title:           "Trailing whitespace",
		DefaultSeverity: analysis.SeverityWarning,
	}
}

func (trailingWhitespace) check(ctx context.Context, doc *analysis.Document) ([]violation, error) {
	literals := doc.MultilineLiterals(ctx)
	var out []violation
	for _, l := range analysis.SplitLines(doc.Text()) {
		trimmed := strings.TrimRight(l.Content, " \t")
		if len(trimmed) == len(l.Content) || analysis.InLiteral(literals, l.End()) {
			continue
		}
		start := l.Start + len(trimmed)
		out = append(out, violation{
			finding: analysis.Finding{Location: analysis.Location{Start: start, End: l.End()}},
			edit:    analysis.Edit{Start: start, End: l.End(), Old: l.Content[len(trimmed):]},
		})
	}
	return out, nil
}

// blankLines reports runs of more than one empty line and removes all but
// the first line of each run. Lines holding only whitespace are not empty;
// they become so once RF1001 is fixed.
type blankLines struct{}

func (blankLines) descriptor() analysis.Descriptor {
	return analysis.Descriptor{
		ID:              IDBlankLines,
		Title:           "Consecutive blank lines",
		DefaultSeverity: analysis.SeverityWarning,
	}
}

func (blankLines) check(ctx context.Context, doc *analysis.Document) ([]violation, error) {
	text := doc.Text()
	lines := analysis.SplitLines(text)
	if last := lines[len(lines)-1]; last.Content == "" {
		lines = lines[:len(lines)-1]
	}
	literals := doc.MultilineLiterals(ctx)
	blank := func(l analysis.Line) bool {
		return l.Content == "" && !analysis.InLiteral(literals, l.Start)
	}

	var out []violation
	for i := 0; i < len(lines); i++ {
		if !blank(lines[i]) {
			continue
		}
		j := i
		for j+1 < len(lines) && blank(lines[j+1]) {
			j++
		}
		if j > i {
			start := lines[i+1].Start
			end := lines[j].End() + len(lines[j].Terminator)
			out = append(out, violation{
				finding: analysis.Finding{Location: analysis.Location{Start: start, End: end}},
				edit:    analysis.Edit{Start: start, End: end, Old: text[start:end]},
			})
		}
		i = j
	}
	return out, nil
}
