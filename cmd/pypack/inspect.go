// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pypack/pypack/internal/archive"
	"github.com/pypack/pypack/internal/manifest"
	"github.com/pypack/pypack/internal/pycompile"
	"github.com/pypack/pypack/pkg/pymod"
)

// errBadArtifacts is returned by inspect --entries when any compiled entry
// does not match the interpreter recorded in the manifest.
var errBadArtifacts = errors.New("workspace has invalid bytecode artifacts")

func newInspectCommand(app *App) *cobra.Command {
	var entries bool
	cmd := &cobra.Command{
		Use:   "inspect <workspace|manifest.mp>",
		Short: "Summarize a finished build from its manifest",
		Long: `Summarize a finished build from its manifest.

With --entries every archive is opened and each compiled entry's header is
checked against the bytecode magic of the interpreter the build targeted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := manifestPathFor(args[0])
			m, err := manifest.Read(path)
			if err != nil {
				return app.fail(err)
			}
			renderManifest(app.stdout, m)
			if !entries {
				return nil
			}
			bad, err := verifyEntries(app.stdout, m)
			if err != nil {
				return app.fail(err)
			}
			if bad > 0 {
				return app.fail(fmt.Errorf("%w: %d entries", errBadArtifacts, bad))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&entries, "entries", false, "list archive entries and verify compiled headers")
	return cmd
}

// manifestPathFor accepts a workspace directory or the manifest itself.
func manifestPathFor(arg string) string {
	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		return manifest.Path(arg)
	}
	return arg
}

// archiveOrder lists the categories in the order inspect reports them.
func archiveOrder() []archive.Category {
	return append(archive.ModuleCategories(), archive.CategoryData)
}

func renderManifest(w io.Writer, m *manifest.Manifest) {
	fmt.Fprintln(w, TitleStyle.Render(m.OutputName))
	fmt.Fprintln(w, kv("workspace", PathStyle.Render(m.Workspace)))
	fmt.Fprintln(w, kv("entry", PathStyle.Render(m.Entry)))
	fmt.Fprintln(w, kv("main artifact", PathStyle.Render(m.MainArtifact)))
	if m.OutputDir != "" {
		fmt.Fprintln(w, kv("output dir", PathStyle.Render(m.OutputDir)))
	}
	fmt.Fprintln(w, kv("interpreter", fmt.Sprintf("%s %s (%s)", m.Interpreter.Executable, m.Interpreter.Version, m.Interpreter.Platform)))
	fmt.Fprintln(w, kv("magic", m.Interpreter.Magic))
	if m.SharedLib != "" {
		fmt.Fprintln(w, kv("shared lib", PathStyle.Render(m.SharedLib)))
	}
	fmt.Fprintln(w, kv("created", m.CreatedAt.Format("2006-01-02 15:04:05 MST")))
	if m.Warnings > 0 {
		fmt.Fprintln(w, kv("warnings", WarningStyle.Render(fmt.Sprint(m.Warnings))))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, SubtitleStyle.Render("Modules"))
	for _, class := range pymod.AllClassifications() {
		names := m.Modules[class.String()]
		line := countStyle.Render(fmt.Sprint(len(names))) + " " + class.String()
		if len(names) > 0 {
			line += "  " + SubtitleStyle.Render(truncateList(names, 6))
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, SubtitleStyle.Render("Archives"))
	for _, c := range archiveOrder() {
		r, ok := m.Archives[c]
		if !ok {
			continue
		}
		fmt.Fprintln(w, countStyle.Render(fmt.Sprint(len(r.Entries)))+" "+PathStyle.Render(filepath.Base(r.Path)))
	}
}

func truncateList(names []string, limit int) string {
	if len(names) <= limit {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:limit], ", ") + fmt.Sprintf(", ... (%d more)", len(names)-limit)
}

// verifyEntries lists every archive member and checks compiled headers
// against the manifest's magic. It returns the number of bad artifacts.
func verifyEntries(w io.Writer, m *manifest.Manifest) (int, error) {
	magic, err := hex.DecodeString(m.Interpreter.Magic)
	if err != nil {
		return 0, fmt.Errorf("manifest magic %q: %w", m.Interpreter.Magic, err)
	}

	bad := 0
	check := func(data []byte) string {
		got, _, decErr := pycompile.DecodeArtifact(data)
		switch {
		case decErr != nil:
			bad++
			return ErrorStyle.Render(decErr.Error())
		case !bytes.Equal(got, magic):
			bad++
			return ErrorStyle.Render(fmt.Sprintf("magic %x, want %x", got, magic))
		default:
			return SuccessStyle.Render("ok")
		}
	}

	fmt.Fprintln(w)
	mainData, err := os.ReadFile(m.MainArtifact)
	if err != nil {
		return 0, fmt.Errorf("reading main artifact: %w", err)
	}
	fmt.Fprintf(w, "%s  %s\n", PathStyle.Render(filepath.Base(m.MainArtifact)), check(mainData))

	for _, c := range archiveOrder() {
		r, ok := m.Archives[c]
		if !ok {
			continue
		}
		entries, err := archive.ReadEntries(r.Path)
		if err != nil {
			return bad, err
		}
		fmt.Fprintln(w, TitleStyle.Render(filepath.Base(r.Path)))
		for _, e := range entries {
			status := SubtitleStyle.Render(fmt.Sprintf("%d bytes", len(e.Data)))
			if c != archive.CategoryData && strings.HasSuffix(e.Name, ".pyc") {
				status = check(e.Data)
			}
			fmt.Fprintf(w, "  %s  %s\n", e.Name, status)
		}
	}
	return bad, nil
}
