package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/agentic-research/reform/internal/analysis"
	"github.com/agentic-research/reform/internal/rules"
)

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the built-in rules and their fixers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			writeRules(cmd.OutOrStdout(), rules.Builtin())
			return nil
		},
	}
}

func writeRules(w io.Writer, reg *analysis.Registry) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false

	tbl.AppendHeader(table.Row{"ID", "Title", "Severity", "Languages", "Fix all"})
	for _, e := range reg.Entries() {
		d := e.Rule.Descriptor()
		langs := "all"
		if len(d.Languages) > 0 {
			langs = strings.Join(d.Languages, ", ")
		}
		tbl.AppendRow(table.Row{d.ID, d.Title, d.DefaultSeverity, langs, fixScopes(e.Fixer)})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d rules", len(reg.Entries()))})
	tbl.Render()
}

func fixScopes(f analysis.Fixer) string {
	if f == nil || f.FixAllProvider() == nil {
		return "-"
	}
	var names []string
	for _, s := range f.FixAllProvider().SupportedScopes() {
		switch s {
		case analysis.ScopeDocument:
			names = append(names, "document")
		case analysis.ScopeProject:
			names = append(names, "project")
		case analysis.ScopeWorkspace:
			names = append(names, "workspace")
		}
	}
	return strings.Join(names, ", ")
}
