package format

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/reform/api"
	"github.com/agentic-research/reform/internal/analysis"
	"github.com/agentic-research/reform/internal/editorconfig"
	"github.com/agentic-research/reform/internal/eligibility"
	"github.com/agentic-research/reform/internal/logging"
	"github.com/agentic-research/reform/internal/report"
	"github.com/agentic-research/reform/internal/rules"
	"github.com/agentic-research/reform/internal/workspace"
)

func testEnv() *Env {
	logger := logging.Discard()
	return &Env{Engine: analysis.NewSitterEngine(logger), Logger: logger, Jobs: 2}
}

// single builds a one-file workspace with its eligible entry.
func single(path, lang, text string, cfg map[string]string) (*workspace.Workspace, []eligibility.File) {
	b := workspace.NewBuilder("/w")
	p := b.AddProject("p", lang, "")
	id := b.AddFile(p, path, lang, workspace.KindSource, text)
	return b.Build(), []eligibility.File{{ID: id, Project: p, Path: path, Config: editorconfig.NewConfig(cfg)}}
}

func run(t *testing.T, s Stage, path, lang, text string, cfg map[string]string) string {
	t.Helper()
	ws, eligible := single(path, lang, text, cfg)
	return s.Apply(context.Background(), ws, eligible).File(eligible[0].ID).Text
}

func TestEndOfLine(t *testing.T) {
	s := NewEndOfLine(testEnv())
	assert.Equal(t, "a\r\nb\r\nc", run(t, s, "a.py", "python", "a\nb\r\nc", map[string]string{"end_of_line": "crlf"}))
	assert.Equal(t, "a\rb\r", run(t, s, "a.py", "python", "a\r\nb\n", map[string]string{"end_of_line": "cr"}))
	assert.Equal(t, "a\r\nb\n", run(t, s, "a.py", "python", "a\r\nb\n", nil))
	native := strings.ReplaceAll("a\nb\n", "\n", PlatformNewline)
	assert.Equal(t, native, run(t, s, "a.py", "python", "a\r\nb\n", map[string]string{"end_of_line": "native"}),
		"unrecognized values use the platform terminator")
}

func TestFinalNewline(t *testing.T) {
	tests := []struct {
		name string
		in   string
		cfg  map[string]string
		want string
	}{
		{"unset", "a", nil, "a"},
		{"insert lf", "a", map[string]string{"insert_final_newline": "true", "end_of_line": "lf"}, "a\n"},
		{"insert crlf", "a", map[string]string{"insert_final_newline": "true", "end_of_line": "crlf"}, "a\r\n"},
		{"insert platform", "a", map[string]string{"insert_final_newline": "true"}, "a" + PlatformNewline},
		{"insert unrecognized", "a", map[string]string{"insert_final_newline": "true", "end_of_line": "native"}, "a" + PlatformNewline},
		{"already terminated", "a\r\n", map[string]string{"insert_final_newline": "true", "end_of_line": "lf"}, "a\r\n"},
		{"remove all", "a\n\r\n\n", map[string]string{"insert_final_newline": "false"}, "a"},
		{"empty file", "", map[string]string{"insert_final_newline": "true"}, ""},
		{"empty file remove", "", map[string]string{"insert_final_newline": "false"}, ""},
	}
	s := NewFinalNewline(testEnv())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, run(t, s, "a.py", "python", tt.in, tt.cfg))
		})
	}
}

func TestImports_ReappliesEndOfLine(t *testing.T) {
	env := testEnv()
	s := NewImports(env, NewEndOfLine(env))
	got := run(t, s, "m.py", "python", "import b\nimport a\n", map[string]string{"end_of_line": "crlf"})
	assert.Equal(t, "import a\r\nimport b\r\n", got)

	unchanged := "import a\nimport b\n"
	assert.Equal(t, unchanged, run(t, s, "m.py", "python", unchanged, map[string]string{"end_of_line": "crlf"}),
		"sorted imports leave the file to the end-of-line stage")
}

func TestWhitespace(t *testing.T) {
	got := run(t, NewWhitespace(testEnv()), "m.py", "python", "x = 1   \n", map[string]string{"trim_trailing_whitespace": "true"})
	assert.Equal(t, "x = 1\n", got)
}

func TestDocumentStage_IsolatesFailures(t *testing.T) {
	b := workspace.NewBuilder("/w")
	p := b.AddProject("p", "python", "")
	var eligible []eligibility.File
	for _, name := range []string{"a.py", "boom.py", "c.py"} {
		id := b.AddFile(p, name, "python", workspace.KindSource, name)
		eligible = append(eligible, eligibility.File{ID: id, Project: p, Path: name})
	}
	ws := b.Build()

	s := &documentStage{env: testEnv(), name: "upper", format: func(_ context.Context, doc *analysis.Document) (string, error) {
		if doc.File.Path == "boom.py" {
			panic("exploded")
		}
		return strings.ToUpper(doc.Text()), nil
	}}
	out := s.Apply(context.Background(), ws, eligible)
	assert.Equal(t, "A.PY", out.File(0).Text)
	assert.Equal(t, "boom.py", out.File(1).Text)
	assert.Equal(t, "C.PY", out.File(2).Text)
	assert.Equal(t, "a.py", ws.File(0).Text, "input snapshot is untouched")
}

func TestDocumentStage_FoldsInEligibleOrder(t *testing.T) {
	const n = 16
	b := workspace.NewBuilder("/w")
	p := b.AddProject("p", "python", "")
	var eligible []eligibility.File
	var paths []string
	index := map[string]int{}
	for i := range n {
		name := fmt.Sprintf("f%02d.py", i)
		id := b.AddFile(p, name, "python", workspace.KindSource, name)
		eligible = append(eligible, eligibility.File{ID: id, Project: p, Path: name})
		paths = append(paths, name)
		index[name] = i
	}
	ws := b.Build()

	// Later files finish first.
	slow := func(suffix string) formatFunc {
		return func(_ context.Context, doc *analysis.Document) (string, error) {
			time.Sleep(time.Duration(n-index[doc.File.Path]) * time.Millisecond)
			return doc.Text() + suffix, nil
		}
	}

	for range 3 {
		var buf bytes.Buffer
		logger := slog.New(logging.NewConsoleHandler(&buf, logging.LevelTrace, false))
		env := &Env{Engine: analysis.NewSitterEngine(logger), Logger: logger, Jobs: 4, Report: report.NewCollector()}
		first := &documentStage{env: env, name: "first", description: "First", format: slow("!")}
		second := &documentStage{env: env, name: "second", description: "Second", format: slow("?")}

		out := second.Apply(context.Background(), first.Apply(context.Background(), ws, eligible), eligible)

		changed := workspace.ChangedFiles(out, workspace.Diff(ws, out))
		require.Len(t, changed, n)
		var got []string
		for i, f := range changed {
			assert.Equal(t, paths[i]+"!?", f.Text)
			got = append(got, f.Path)
		}
		assert.Equal(t, paths, got)

		files := env.Report.Files(workspace.Diff(ws, out))
		require.Len(t, files, n)
		for i, ff := range files {
			assert.Equal(t, paths[i], ff.FileName)
			require.Len(t, ff.Changes, 2)
			assert.Equal(t, "First", ff.Changes[0].Description)
			assert.Equal(t, "Second", ff.Changes[1].Description)
		}

		var traced []string
		for _, line := range strings.Split(buf.String(), "\n") {
			if _, rest, ok := strings.Cut(line, "trace: "); ok && strings.Contains(rest, "): ") {
				traced = append(traced, rest)
			}
		}
		var want []string
		for _, p := range paths {
			want = append(want, fmt.Sprintf("%s(1,7): First", p))
		}
		for _, p := range paths {
			want = append(want, fmt.Sprintf("%s(1,8): Second", p))
		}
		assert.Equal(t, want, traced)
	}
}

func TestDocumentStage_NoOpKeepsSnapshot(t *testing.T) {
	ws, eligible := single("m.py", "python", "x = 1\n", nil)
	out := NewWhitespace(testEnv()).Apply(context.Background(), ws, eligible)
	assert.Same(t, ws, out)
}

func TestDocumentStage_Cancelled(t *testing.T) {
	ws, eligible := single("m.py", "python", "x = 1  \n", map[string]string{"trim_trailing_whitespace": "true"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Same(t, ws, NewWhitespace(testEnv()).Apply(ctx, ws, eligible))
}

func TestStage_RecordsAndTracesChanges(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewConsoleHandler(&buf, logging.LevelTrace, false))
	env := &Env{Engine: analysis.NewSitterEngine(logger), Logger: logger, Report: report.NewCollector()}

	ws, eligible := single("m.py", "python", "x = 1  \n", map[string]string{"trim_trailing_whitespace": "true"})
	out := NewWhitespace(env).Apply(context.Background(), ws, eligible)

	assert.Contains(t, buf.String(), "trace: m.py(1,6): Fix whitespace formatting")
	files := env.Report.Files(workspace.Diff(ws, out))
	require.Len(t, files, 1)
	assert.Equal(t, []report.FileChange{{Line: 1, Column: 6, Description: "Fix whitespace formatting"}}, files[0].Changes)
}

func TestAnalyzers_FixesRulesInSequence(t *testing.T) {
	// Fixing trailing whitespace turns the whitespace-only line into a
	// blank one, which the blank-line rule must then see.
	in := "x = 1  \n  \n\n\ny = 2\n"
	s := NewAnalyzers(testEnv(), rules.Builtin(), analysis.SeverityWarning)
	assert.Equal(t, "x = 1\n\ny = 2\n", run(t, s, "m.py", "python", in, nil))
}

func TestAnalyzers_ThresholdSkipsInfoRules(t *testing.T) {
	in := "package m\n\nvar xs []string\n"
	s := NewAnalyzers(testEnv(), rules.Builtin(), analysis.SeverityWarning)
	assert.Equal(t, in, run(t, s, "m.go", "go", in, nil))

	s = NewAnalyzers(testEnv(), rules.Builtin(), analysis.SeverityInfo)
	assert.Equal(t, "package m\n\nvar xs = make([]string, 0)\n", run(t, s, "m.go", "go", in, nil))
}

func TestStages(t *testing.T) {
	names := func(ss []Stage) []string {
		var out []string
		for _, s := range ss {
			out = append(out, s.Name())
		}
		return out
	}
	env := testEnv()
	reg := rules.Builtin()
	assert.Equal(t, []string{"whitespace", "final-newline", "end-of-line", "imports", "analyzers"}, names(Stages(env, api.FixAll, reg, analysis.SeverityWarning)))
	assert.Equal(t, []string{"whitespace", "final-newline", "end-of-line"}, names(Stages(env, api.FixWhitespace, reg, analysis.SeverityWarning)))
	assert.Equal(t, []string{"imports", "analyzers"}, names(Stages(env, api.FixStyle, reg, analysis.SeverityWarning)))
}
