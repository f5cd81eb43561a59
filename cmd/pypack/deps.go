// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pypack/pypack/internal/dag"
	"github.com/pypack/pypack/internal/pipeline"
	"github.com/pypack/pypack/pkg/pymod"
)

type depsFlags struct {
	analysisFlags
	order bool
}

func newDepsCommand(app *App) *cobra.Command {
	var f depsFlags
	cmd := &cobra.Command{
		Use:   "deps <script.py>",
		Short: "Show the modules a script imports and how each was classified",
		Long: `Resolve the import graph of a script and list every module by category,
with the file it resolved to and the rule that classified it.

Nothing is compiled or written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			over, err := overrides(cmd)
			if err != nil {
				return app.fail(err)
			}
			loaded, err := app.loadConfig(cmd, over)
			if err != nil {
				return app.fail(err)
			}
			req := loaded.Config.Request(args[0])
			req.Logger = newLogger(app.stderr, loaded.Config.Debug)

			analysis, err := app.Builder.Analyze(cmd.Context(), req)
			if err != nil {
				return app.fail(err)
			}
			renderDeps(app.stdout, analysis.Partition)
			if f.order {
				renderLocalOrder(app.stdout, analysis)
			}
			return nil
		},
	}
	addAnalysisFlags(cmd, &f.analysisFlags)
	cmd.Flags().BoolVar(&f.order, "order", false, "also print local modules in dependency order")
	return cmd
}

func renderDeps(w io.Writer, p *pymod.Partition) {
	for _, class := range pymod.AllClassifications() {
		members := p.Members(class)
		fmt.Fprintf(w, "%s %s\n", TitleStyle.Render(class.String()), SubtitleStyle.Render(fmt.Sprintf("(%d)", len(members))))
		for _, m := range members {
			fmt.Fprintf(w, "  %s %s %s\n", PathStyle.Render(m.Name.String()), describeOrigin(m), SubtitleStyle.Render("["+m.Reason.String()+"]"))
		}
	}
}

func describeOrigin(m pymod.Classified) string {
	switch {
	case !m.Found:
		return WarningStyle.Render("not found")
	case m.Origin.Builtin:
		return "built-in"
	case m.Origin.IsNamespace():
		locs := make([]string, len(m.Origin.SearchLocations))
		for i, loc := range m.Origin.SearchLocations {
			locs[i] = loc.String()
		}
		return "namespace " + strings.Join(locs, ", ")
	default:
		return m.Origin.File.String()
	}
}

// renderLocalOrder prints the local modules so that each follows the
// modules it imports. A cycle is reported rather than treated as failure.
func renderLocalOrder(w io.Writer, analysis *pipeline.Analysis) {
	local := make(map[string]bool)
	for _, name := range analysis.Partition.Names(pymod.ClassLocal) {
		local[string(name)] = true
	}
	sub := analysis.Graph().Subgraph(func(name string) bool { return local[name] })

	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("dependency order"))
	order, err := sub.DependencyOrder()
	if err != nil {
		var cycle *dag.CycleError
		if errors.As(err, &cycle) {
			fmt.Fprintln(w, "  "+WarningStyle.Render("cycle among: "+strings.Join(cycle.Cycle, ", ")))
			return
		}
		fmt.Fprintln(w, "  "+ErrorStyle.Render(err.Error()))
		return
	}
	for i, name := range order {
		fmt.Fprintf(w, "%s %s\n", countStyle.Render(fmt.Sprint(i+1)), name)
	}
}
