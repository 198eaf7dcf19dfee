package api

import (
	"fmt"
	"strings"
)

// WorkspaceKind selects how the workspace path is interpreted.
type WorkspaceKind int

const (
	// KindSolution loads every project of a manifest.
	KindSolution WorkspaceKind = iota
	// KindProject loads a manifest and formats one named project.
	KindProject
	// KindFolder treats a bare directory as a single project.
	KindFolder
)

func (k WorkspaceKind) String() string {
	switch k {
	case KindProject:
		return "project"
	case KindFolder:
		return "folder"
	default:
		return "solution"
	}
}

// FixCategory is a bit set selecting groups of formatting stages.
type FixCategory uint8

const (
	// FixWhitespace covers whitespace, final newline and end of line.
	FixWhitespace FixCategory = 1 << iota
	// FixStyle covers import ordering and rule fixes.
	FixStyle

	FixAll = FixWhitespace | FixStyle
)

// Has reports whether every bit of o is set in c.
func (c FixCategory) Has(o FixCategory) bool { return c&o == o }

// Exit codes returned by the CLI.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitCheckFailed = 2
)

// RunOptions describes one formatting run.
type RunOptions struct {
	// Path is a manifest file, a directory containing reform.hcl, or (with
	// KindFolder) any directory.
	Path string
	Kind WorkspaceKind
	// Project names the project to format when Kind is KindProject.
	Project string

	Include []string
	Exclude []string

	IncludeGenerated bool

	Categories FixCategory
	// Severity is the minimum rule severity that gets fixed.
	Severity string

	// Check reports would-be changes without writing them.
	Check bool

	// ReportPath, when set, receives the change report (.json or .db).
	ReportPath string

	// Jobs bounds per-file and per-project parallelism. Zero means
	// GOMAXPROCS.
	Jobs int
}

// Validate rejects option combinations the pipeline cannot run.
func (o RunOptions) Validate() error {
	if o.Path == "" {
		return fmt.Errorf("workspace path is required")
	}
	if o.Kind == KindProject && strings.TrimSpace(o.Project) == "" {
		return fmt.Errorf("a project name is required for project workspaces")
	}
	if o.Categories == 0 {
		return fmt.Errorf("no fix category selected")
	}
	if o.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative, got %d", o.Jobs)
	}
	return nil
}
