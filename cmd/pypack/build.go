// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/pypack/pypack/internal/archive"
	"github.com/pypack/pypack/internal/pipeline"
	"github.com/pypack/pypack/pkg/pymod"
)

type buildFlags struct {
	analysisFlags
	name          string
	output        string
	data          []string
	workspaceRoot string
}

func newBuildCommand(app *App) *cobra.Command {
	var f buildFlags
	cmd := &cobra.Command{
		Use:   "build <script.py>",
		Short: "Package a Python script and the modules it imports",
		Long: `Package a Python script and the modules it imports.

The build runs in a fresh workspace directory, build_<name>_<time>_<random>,
under the workspace root. It holds the compiled entry script, one ZIP
archive per module category that has members, data_files.zip for --add-data
resources and manifest.mp for the native bundle builder.

The bundle name is --name, else the file name of --output, else the stem of
the entry script.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, app, &f, args[0])
		},
	}

	addAnalysisFlags(cmd, &f.analysisFlags)
	fs := cmd.Flags()
	fs.StringVarP(&f.name, "name", "n", "", "bundle name (default: entry script stem)")
	fs.StringVarP(&f.output, "output", "o", "", "path of the final executable; recorded for the native builder")
	fs.StringArrayVar(&f.data, "add-data", nil, "resource to bundle as src[:dest] (repeatable)")
	fs.StringVar(&f.workspaceRoot, "workspace-root", "", "directory for build workspaces (default: system temp dir)")
	return cmd
}

func runBuild(cmd *cobra.Command, app *App, f *buildFlags, entry string) error {
	over, err := overrides(cmd)
	if err != nil {
		return app.fail(err)
	}
	if f.output != "" {
		over["output_dir"] = filepath.Dir(f.output)
	}
	loaded, err := app.loadConfig(cmd, over)
	if err != nil {
		return app.fail(err)
	}

	req := loaded.Config.Request(entry)
	req.OutputName = pipeline.OutputNameFor(f.name, f.output, entry)
	req.Logger = newLogger(app.stderr, loaded.Config.Debug)

	res, err := app.Builder.Build(cmd.Context(), req)
	if err != nil {
		return app.fail(err)
	}
	renderBuildSummary(app.stdout, res)
	return nil
}

func renderBuildSummary(w io.Writer, res *pipeline.Result) {
	var b strings.Builder
	b.WriteString(SuccessStyle.Render("✓") + " " + TitleStyle.Render("Built "+res.OutputName) + "\n\n")

	b.WriteString(kv("workspace", PathStyle.Render(res.Workspace.Dir)) + "\n")
	b.WriteString(kv("main artifact", PathStyle.Render(res.MainArtifact)) + "\n")
	b.WriteString(kv("manifest", PathStyle.Render(res.Manifest)) + "\n")
	if res.SharedLib != "" {
		b.WriteString(kv("shared lib", PathStyle.Render(string(res.SharedLib))) + "\n")
	} else {
		b.WriteString(kv("shared lib", WarningStyle.Render("not found")) + "\n")
	}

	b.WriteString("\n" + SubtitleStyle.Render("Modules") + "\n")
	counts := res.Partition.Counts()
	for _, class := range pymod.AllClassifications() {
		b.WriteString(countStyle.Render(fmt.Sprint(counts[class])) + " " + class.String() + "\n")
	}

	b.WriteString("\n" + SubtitleStyle.Render("Archives") + "\n")
	reports := make([]*archive.Report, 0, len(res.Archives)+1)
	for _, category := range archive.ModuleCategories() {
		if r := res.Archives[category]; r != nil {
			reports = append(reports, r)
		}
	}
	if res.DataArchive != nil {
		reports = append(reports, res.DataArchive)
	}
	if len(reports) == 0 {
		b.WriteString("      " + SubtitleStyle.Render("(none)") + "\n")
	}
	for _, r := range reports {
		b.WriteString(countStyle.Render(fmt.Sprint(len(r.Entries))) + " " + PathStyle.Render(filepath.Base(r.Path)) + "\n")
	}

	if res.Warnings > 0 {
		b.WriteString("\n" + WarningStyle.Render(fmt.Sprintf("%d warning(s); see the log above", res.Warnings)) + "\n")
	}
	fmt.Fprint(w, lipgloss.NewStyle().MarginLeft(1).Render(b.String()))
	fmt.Fprintln(w)
}
