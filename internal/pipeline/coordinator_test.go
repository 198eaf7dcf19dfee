package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/reform/api"
	"github.com/agentic-research/reform/internal/analysis"
	"github.com/agentic-research/reform/internal/ingest"
	"github.com/agentic-research/reform/internal/rules"
	"github.com/agentic-research/reform/internal/workspace"
)

const finalNewlineLF = "root = true\n\n[*]\ninsert_final_newline = true\nend_of_line = lf\n"

type harness struct {
	fs   billy.Filesystem
	svc  Services
	logs *bytes.Buffer
}

func newHarness(t *testing.T, files map[string]string) *harness {
	t.Helper()
	fsys := memfs.New()
	for name, content := range files {
		require.NoError(t, util.WriteFile(fsys, name, []byte(content), 0o644))
	}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &harness{fs: fsys, svc: DefaultServices(fsys, logger), logs: &logs}
}

func (h *harness) read(t *testing.T, name string) string {
	t.Helper()
	b, err := util.ReadFile(h.fs, name)
	require.NoError(t, err)
	return string(b)
}

func (h *harness) run(opts api.RunOptions) RunResult {
	if opts.Path == "" {
		opts.Path = "."
	}
	if opts.Categories == 0 {
		opts.Categories = api.FixAll
	}
	return New(h.svc).Run(context.Background(), opts)
}

func folder() api.RunOptions { return api.RunOptions{Kind: api.KindFolder} }

func TestRun_AddsFinalNewline(t *testing.T) {
	h := newHarness(t, map[string]string{
		".editorconfig": finalNewlineLF,
		"C.cs":          "class C\n{\n}",
	})

	res := h.run(folder())
	assert.Equal(t, api.ExitOK, res.ExitCode)
	assert.Equal(t, 1, res.FilesConsidered)
	assert.Equal(t, []string{"C.cs"}, res.ChangedFiles)
	assert.Equal(t, "class C\n{\n}\n", h.read(t, "C.cs"))
}

func TestRun_FormattedFileIsUnchanged(t *testing.T) {
	h := newHarness(t, map[string]string{
		".editorconfig": finalNewlineLF,
		"C.cs":          "class C\n{\n}\n",
	})

	res := h.run(folder())
	assert.Equal(t, api.ExitOK, res.ExitCode)
	assert.Empty(t, res.ChangedFiles)
	assert.Zero(t, res.FilesChanged)
}

func TestRun_ExcludedFileIsNeverTouched(t *testing.T) {
	h := newHarness(t, map[string]string{
		".editorconfig": finalNewlineLF,
		"src/a.py":      "a = 1",
		"gen/b.py":      "b = 1",
	})

	opts := folder()
	opts.Exclude = []string{"gen"}
	res := h.run(opts)
	assert.Equal(t, 1, res.FilesConsidered)
	assert.Equal(t, []string{"src/a.py"}, res.ChangedFiles)
	assert.Equal(t, "b = 1", h.read(t, "gen/b.py"))
}

func TestRun_LinkedFileIsFormattedOnce(t *testing.T) {
	h := newHarness(t, map[string]string{
		".editorconfig": finalNewlineLF,
		"reform.hcl": `
project "a" {
  root  = "a"
  files = ["**/*.py"]
}

project "b" {
  root  = "b"
  files = ["**/*.py"]
  links = ["../shared/util.py"]
}

project "c" {
  root  = "c"
  files = ["**/*.py"]
  links = ["../shared/util.py"]
}
`,
		"a/main.py":      "import util\n",
		"b/main.py":      "import util\n",
		"c/main.py":      "import util\n",
		"shared/util.py": "x = 1",
	})

	res := h.run(api.RunOptions{Path: "reform.hcl", Kind: api.KindSolution})
	require.Equal(t, api.ExitOK, res.ExitCode)
	assert.Equal(t, []string{"shared/util.py"}, res.ChangedFiles)
	assert.Equal(t, "x = 1\n", h.read(t, "shared/util.py"))

	var copies int
	res.Workspace.Files(func(f *workspace.File) bool {
		if f.Path == "shared/util.py" {
			copies++
		}
		return true
	})
	assert.Equal(t, 2, copies, "both projects load the link")
}

// explodingFixer panics on every fix-all request.
type explodingFixer struct{}

func (explodingFixer) FixableIDs() []string { return []string{rules.IDTrailingWhitespace} }
func (f explodingFixer) FixAllProvider() analysis.FixAllProvider { return f }
func (explodingFixer) SupportedScopes() []analysis.FixAllScope {
	return []analysis.FixAllScope{analysis.ScopeWorkspace}
}
func (explodingFixer) Fix(context.Context, analysis.FixAllContext) (*analysis.CodeAction, error) {
	panic("fixer exploded")
}

func TestRun_FailingFixerDoesNotStopOtherRules(t *testing.T) {
	h := newHarness(t, map[string]string{"m.py": "x = 1  \n\n\n\ny = 2\n"})
	trailing, _ := rules.Builtin().Lookup(rules.IDTrailingWhitespace)
	blank, _ := rules.Builtin().Lookup(rules.IDBlankLines)
	h.svc.Registry = analysis.MustRegistry(
		analysis.Entry{Rule: trailing.Rule, Fixer: explodingFixer{}},
		blank,
	)

	opts := folder()
	opts.Categories = api.FixStyle
	res := h.run(opts)
	assert.Equal(t, api.ExitOK, res.ExitCode)
	assert.Equal(t, "x = 1  \n\ny = 2\n", h.read(t, "m.py"))
	assert.Contains(t, h.logs.String(), "rule="+rules.IDTrailingWhitespace)
	assert.Contains(t, h.logs.String(), "fixer exploded")
}

func TestRun_NearestEditorconfigWins(t *testing.T) {
	h := newHarness(t, map[string]string{
		".editorconfig":     "root = true\n\n[*]\nend_of_line = crlf\n",
		"sub/.editorconfig": "[*]\nend_of_line = lf\n",
		"top.py":            "a = 1\nb = 2\n",
		"sub/low.py":        "a = 1\r\nb = 2\r\n",
	})

	res := h.run(folder())
	require.Equal(t, api.ExitOK, res.ExitCode)
	assert.Equal(t, "a = 1\r\nb = 2\r\n", h.read(t, "top.py"))
	assert.Equal(t, "a = 1\nb = 2\n", h.read(t, "sub/low.py"))
}

func TestRun_Idempotent(t *testing.T) {
	h := newHarness(t, map[string]string{
		".editorconfig": "root = true\n\n[*]\ninsert_final_newline = true\nend_of_line = lf\ntrim_trailing_whitespace = true\n",
		"m.py":          "import b\r\nimport a  \r\n\r\n\r\n\r\nx = 1",
		"main.go":       "package main\nfunc main() {\n}",
	})

	first := h.run(folder())
	require.Equal(t, api.ExitOK, first.ExitCode)
	assert.Equal(t, []string{"m.py", "main.go"}, first.ChangedFiles)

	second := h.run(folder())
	assert.Equal(t, api.ExitOK, second.ExitCode)
	assert.Empty(t, second.ChangedFiles)
}

func TestRun_CheckNeverWrites(t *testing.T) {
	h := newHarness(t, map[string]string{
		".editorconfig": finalNewlineLF,
		"a.py":          "a = 1",
	})

	opts := folder()
	opts.Check = true
	res := h.run(opts)
	assert.Equal(t, api.ExitCheckFailed, res.ExitCode)
	assert.Equal(t, []string{"a.py"}, res.ChangedFiles)
	assert.Equal(t, "a = 1", h.read(t, "a.py"))
	assert.Contains(t, h.logs.String(), "file is not formatted")
}

func TestRun_LoadFailure(t *testing.T) {
	h := newHarness(t, nil)
	var states []State
	c := New(h.svc)
	c.OnTransition = func(_, to State, _ int) { states = append(states, to) }

	res := c.Run(context.Background(), api.RunOptions{Path: ".", Kind: api.KindSolution, Categories: api.FixAll})
	assert.Equal(t, api.ExitFailure, res.ExitCode)
	assert.Zero(t, res.FilesConsidered)
	assert.Nil(t, res.Workspace)
	assert.Equal(t, []State{Done}, states, "never enters resolving")
	assert.Contains(t, h.logs.String(), ingest.ErrManifestNotFound.Error())
}

func TestRun_ProjectNotFound(t *testing.T) {
	h := newHarness(t, map[string]string{
		"reform.hcl": "project \"a\" {\n  root = \"a\"\n}\n",
		"a/m.py":     "x = 1",
	})

	res := h.run(api.RunOptions{Path: ".", Kind: api.KindProject, Project: "missing"})
	assert.Equal(t, api.ExitFailure, res.ExitCode)
	assert.Zero(t, res.FilesConsidered)
	assert.Contains(t, h.logs.String(), ErrProjectNotFound.Error())
}

func TestRun_ProjectScopesToRequestedProject(t *testing.T) {
	h := newHarness(t, map[string]string{
		".editorconfig": finalNewlineLF,
		"reform.hcl":    "project \"a\" {\n  root = \"a\"\n}\n\nproject \"b\" {\n  root = \"b\"\n}\n",
		"a/m.py":        "x = 1",
		"b/m.py":        "y = 1",
	})

	res := h.run(api.RunOptions{Path: ".", Kind: api.KindProject, Project: "b"})
	require.Equal(t, api.ExitOK, res.ExitCode)
	assert.Equal(t, []string{"b/m.py"}, res.ChangedFiles)
	assert.Equal(t, "x = 1", h.read(t, "a/m.py"))
}

type failingPersister struct{}

func (failingPersister) WriteChangedFiles(context.Context, *workspace.Workspace, *roaring.Bitmap) error {
	return errors.New("disk full")
}

func TestRun_SaveFailure(t *testing.T) {
	h := newHarness(t, map[string]string{
		".editorconfig": finalNewlineLF,
		"a.py":          "a = 1",
	})
	h.svc.Persister = failingPersister{}

	res := h.run(folder())
	assert.Equal(t, api.ExitFailure, res.ExitCode)
	assert.Equal(t, 1, res.FilesChanged)
	assert.Contains(t, h.logs.String(), "disk full")
}

func TestRun_Cancelled(t *testing.T) {
	h := newHarness(t, map[string]string{
		".editorconfig": finalNewlineLF,
		"a.py":          "a = 1",
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(h.svc).Run(ctx, api.RunOptions{Path: ".", Kind: api.KindFolder, Categories: api.FixAll})
	assert.True(t, res.Cancelled)
	assert.Equal(t, api.ExitFailure, res.ExitCode)
	assert.Equal(t, "a = 1", h.read(t, "a.py"))
}

func TestRun_StateMachine(t *testing.T) {
	h := newHarness(t, map[string]string{"a.py": "a = 1\n"})
	type step struct {
		to    State
		stage int
	}
	var steps []step
	c := New(h.svc)
	c.OnTransition = func(_, to State, stage int) { steps = append(steps, step{to, stage}) }

	opts := folder()
	opts.Path = "."
	opts.Categories = api.FixWhitespace
	c.Run(context.Background(), opts)

	assert.Equal(t, []step{
		{Resolving, -1},
		{RunningStages, 0},
		{RunningStages, 1},
		{RunningStages, 2},
		{Finalizing, -1},
		{Done, -1},
	}, steps)
	assert.Equal(t, Done, c.State())
}

func TestRun_WritesReport(t *testing.T) {
	h := newHarness(t, map[string]string{
		".editorconfig": finalNewlineLF,
		"a.py":          "a = 1",
		"b.py":          "b = 1\n",
	})

	out := filepath.Join(t.TempDir(), "changes.json")
	opts := folder()
	opts.ReportPath = out
	res := h.run(opts)
	require.Equal(t, api.ExitOK, res.ExitCode)
	require.Len(t, res.Report, 1)
	assert.Equal(t, "a.py", res.Report[0].FileName)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	data, err := oj.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []any{"Add final newline"}, jp.MustParseString("$[*].FileChanges[*].FormatDescription").Get(data))
}

func TestSplitPath(t *testing.T) {
	dir, manifest := SplitPath(filepath.Join("repo", "reform.hcl"), api.KindSolution)
	assert.Equal(t, "repo", dir)
	assert.Equal(t, "reform.hcl", manifest)

	dir, manifest = SplitPath("repo", api.KindProject)
	assert.Equal(t, "repo", dir)
	assert.Empty(t, manifest)

	dir, manifest = SplitPath("infra.hcl", api.KindFolder)
	assert.Equal(t, "infra.hcl", dir)
	assert.Empty(t, manifest)
}
