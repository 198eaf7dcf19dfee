package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/agentic-research/reform/api"
	"github.com/agentic-research/reform/internal/analysis"
	"github.com/agentic-research/reform/internal/config"
	"github.com/agentic-research/reform/internal/ingest"
	"github.com/agentic-research/reform/internal/logging"
	"github.com/agentic-research/reform/internal/pipeline"
)

// exitError carries a non-zero exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// runFlags are the flags that are not tool configuration.
type runFlags struct {
	folder     bool
	project    string
	check      bool
	configPath string
}

// NewRootCmd builds the reform command tree.
func NewRootCmd() *cobra.Command {
	var rf runFlags
	root := &cobra.Command{
		Use:   "reform [workspace]",
		Short: "Format a source workspace following its .editorconfig and style rules",
		Long: `reform loads a workspace (a reform.hcl manifest, one of its projects, or a
bare folder), formats every eligible file and writes the changed files back.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return runFormat(cmd, root.PersistentFlags(), rf, args, api.FixAll)
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&rf.folder, "folder", false, "Treat the workspace path as a bare folder of files")
	pf.StringVar(&rf.project, "project", "", "Format only the named project of the manifest")
	pf.BoolVar(&rf.check, "check", false, "Report files that would change without writing them; exits 2 if any")
	pf.StringVar(&rf.configPath, "config", "", "Path to a config file (default .reform.yaml in the workspace)")
	pf.StringSlice("include", nil, "Only format files matching these globs")
	pf.StringSlice("exclude", nil, "Never format files matching these globs")
	pf.Bool("include-generated", false, "Also format generated files")
	pf.String("severity", "", "Minimum rule severity to fix: info, warning or error")
	pf.StringP("verbosity", "v", "", "Log verbosity: q[uiet], m[inimal], n[ormal], d[etailed] or diag[nostic]")
	pf.String("report", "", "Write a change report to a .json, .db or directory path")
	pf.Int("jobs", 0, "Parallel jobs (default GOMAXPROCS)")

	root.AddCommand(
		categoryCmd("whitespace", "Fix whitespace, final newlines and line endings only", api.FixWhitespace, root.PersistentFlags(), &rf),
		categoryCmd("style", "Organize imports and fix rule findings only", api.FixStyle, root.PersistentFlags(), &rf),
		newRulesCmd(),
	)
	return root
}

// Execute runs the root command and exits with its status.
func Execute() {
	root := NewRootCmd()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(api.ExitFailure)
}

func categoryCmd(name, short string, categories api.FixCategory, flags *pflag.FlagSet, rf *runFlags) *cobra.Command {
	return &cobra.Command{
		Use:   name + " [workspace]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFormat(cmd, flags, *rf, args, categories)
		},
	}
}

func runFormat(cmd *cobra.Command, flags *pflag.FlagSet, rf runFlags, args []string, categories api.FixCategory) error {
	path := "."
	if len(args) == 1 {
		path = args[0]
	}
	kind := api.KindSolution
	switch {
	case rf.folder:
		kind = api.KindFolder
	case rf.project != "":
		kind = api.KindProject
	}

	dir, _ := pipeline.SplitPath(path, kind)
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve workspace path: %w", err)
	}
	if info, err := os.Stat(abs); err != nil {
		return fmt.Errorf("workspace %s: %w", path, err)
	} else if !info.IsDir() {
		return fmt.Errorf("workspace %s is not a directory or manifest", path)
	}

	cfg, err := config.Load(rf.configPath, abs, flags)
	if err != nil {
		return err
	}
	level, _ := logging.ParseVerbosity(cfg.Verbosity)
	logger := logging.New(os.Stderr, level)

	fsys := osfs.New(abs)
	svc := pipeline.DefaultServices(fsys, logger)
	svc.Loader = &ingest.Loader{FS: fsys, Logger: logger, LogAllWarnings: level <= logging.LevelTrace}
	svc.Engine = &analysis.SitterEngine{Logger: logger, GoVersion: cfg.GoVersion}
	if len(cfg.DisabledRules) > 0 {
		if svc.Registry, err = svc.Registry.Without(cfg.DisabledRules...); err != nil {
			return fmt.Errorf("disabled_rules: %w", err)
		}
	}

	res := pipeline.New(svc).Run(cmd.Context(), api.RunOptions{
		Path:             path,
		Kind:             kind,
		Project:          rf.project,
		Include:          cfg.Include,
		Exclude:          cfg.Exclude,
		IncludeGenerated: cfg.IncludeGenerated,
		Categories:       categories,
		Severity:         cfg.Severity,
		Check:            rf.check,
		ReportPath:       cfg.Report,
		Jobs:             cfg.Jobs,
	})
	if level <= slog.LevelInfo {
		printSummary(cmd.OutOrStdout(), res, rf.check)
	}
	if res.ExitCode != api.ExitOK {
		return &exitError{code: res.ExitCode}
	}
	return nil
}

func printSummary(w io.Writer, res pipeline.RunResult, check bool) {
	verb := "Formatted"
	if check {
		verb = "Would format"
	}
	_, _ = fmt.Fprintf(w, "%s %s of %s files in %s\n",
		verb,
		humanize.Comma(int64(res.FilesChanged)),
		humanize.Comma(int64(res.FilesConsidered)),
		res.Elapsed.Round(time.Millisecond))
}
