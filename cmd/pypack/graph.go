// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pypack/pypack/internal/dag"
	"github.com/pypack/pypack/pkg/pymod"
)

// dotColors fills graph nodes by classification.
var dotColors = map[pymod.Classification]string{
	pymod.ClassBuiltin:    "#E5E7EB",
	pymod.ClassStdlib:     "#DBEAFE",
	pymod.ClassLocal:      "#D1FAE5",
	pymod.ClassThirdParty: "#FEF3C7",
}

func newGraphCommand(app *App) *cobra.Command {
	var f analysisFlags
	cmd := &cobra.Command{
		Use:   "graph <script.py>",
		Short: "Print the import graph of a script in Graphviz DOT format",
		Args:  cobra.ExactArgs(1),
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
			return writeDOT(app.stdout, analysis.Graph(), analysis.Partition)
		},
	}
	addAnalysisFlags(cmd, &f)
	return cmd
}

// writeDOT writes g with each node filled by its classification. Nodes
// without one, such as the entry script, are drawn as boxes.
func writeDOT(w io.Writer, g *dag.Graph, p *pymod.Partition) error {
	if _, err := fmt.Fprintln(w, "digraph imports {"); err != nil {
		return err
	}
	fmt.Fprintln(w, "  node [style=filled, fontname=\"Helvetica\"];")
	for _, name := range g.Nodes() {
		attrs := "shape=box, fillcolor=\"#FFFFFF\""
		if c, ok := p.Get(pymod.ModuleName(name)); ok {
			attrs = fmt.Sprintf("fillcolor=%q, tooltip=%q", dotColors[c.Class], c.Class.String())
		}
		fmt.Fprintf(w, "  %s [%s];\n", strconv.Quote(name), attrs)
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(w, "  %s -> %s;\n", strconv.Quote(e[0]), strconv.Quote(e[1]))
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}
