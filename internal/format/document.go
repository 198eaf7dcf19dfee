package format

import (
	"context"
	"runtime"
	"strings"

	"github.com/agentic-research/reform/internal/analysis"
	"github.com/agentic-research/reform/internal/editorconfig"
)

// PlatformNewline is the terminator used when a file needs one and no
// end_of_line is configured.
var PlatformNewline = func() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}()

// newline maps an end_of_line value to its terminator.
// newline maps end_of_line to a terminator. Unrecognized values select the
// platform terminator.
func newline(cfg editorconfig.Config) (string, bool) {
	v, ok := cfg.EndOfLine()
	if !ok {
		return "", false
	}
	switch v {
	case "lf":
		return "\n", true
	case "cr":
		return "\r", true
	case "crlf":
		return "\r\n", true
	}
	return PlatformNewline, true
}

// EndOfLine rewrites every line terminator to the configured end_of_line.
type EndOfLine struct {
	documentStage
}

// NewEndOfLine returns the end-of-line stage.
func NewEndOfLine(env *Env) *EndOfLine {
	s := &EndOfLine{}
	s.documentStage = documentStage{env: env, name: "end-of-line", description: "Fix end of line marker", format: s.FormatOne}
	return s
}

// FormatOne returns doc's text with normalized terminators. Files without
// an end_of_line setting are returned as is.
func (s *EndOfLine) FormatOne(_ context.Context, doc *analysis.Document) (string, error) {
	eol, ok := newline(doc.Config)
	if !ok {
		return doc.Text(), nil
	}
	lines := analysis.SplitLines(doc.Text())
	changed := false
	for i, l := range lines {
		if l.Terminator != "" && l.Terminator != eol {
			lines[i].Terminator = eol
			changed = true
		}
	}
	if !changed {
		return doc.Text(), nil
	}
	return analysis.JoinLines(lines), nil
}

// NewFinalNewline returns the stage enforcing insert_final_newline.
func NewFinalNewline(env *Env) Stage {
	return &documentStage{env: env, name: "final-newline", description: "Add final newline", format: finalNewline}
}

func finalNewline(_ context.Context, doc *analysis.Document) (string, error) {
	text := doc.Text()
	insert, ok := doc.Config.InsertFinalNewline()
	if !ok {
		return text, nil
	}
	// An empty file is one empty line and counts as terminated.
	hasFinal := text == "" || strings.HasSuffix(text, "\n") || strings.HasSuffix(text, "\r")
	switch {
	case insert && !hasFinal:
		eol, ok := newline(doc.Config)
		if !ok {
			eol = PlatformNewline
		}
		return text + eol, nil
	case !insert && hasFinal:
		return strings.TrimRight(text, "\r\n"), nil
	}
	return text, nil
}

// NewImports returns the stage organizing imports. Organizing may move
// lines with their original terminators, so the result goes through eol
// again.
func NewImports(env *Env, eol *EndOfLine) Stage {
	return &documentStage{
		env:         env,
		name:        "imports",
		description: "Fix imports ordering",
		format: func(ctx context.Context, doc *analysis.Document) (string, error) {
			out, err := env.Engine.OrganizeImports(ctx, doc)
			if err != nil || out == doc.Text() {
				return doc.Text(), err
			}
			return eol.FormatOne(ctx, analysis.NewDocument(doc.File.WithText(out), doc.Config))
		},
	}
}

// NewWhitespace returns the stage delegating to the engine's formatter.
func NewWhitespace(env *Env) Stage {
	return &documentStage{
		env:         env,
		name:        "whitespace",
		description: "Fix whitespace formatting",
		format:      env.Engine.Format,
	}
}
