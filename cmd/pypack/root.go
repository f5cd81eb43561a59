// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/pypack/pypack/internal/config"
	"github.com/pypack/pypack/pkg/types"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootOptions holds the persistent flags and the state derived from them
// once configuration is loaded.
type rootOptions struct {
	configFile string
	debug      bool
	// colorScheme is the glamour style used for issue help.
	colorScheme string
}

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	opts := &rootOptions{}
	app.opts = opts

	rootCmd := &cobra.Command{
		Use:   "pypack",
		Short: "Package a Python program with the modules it imports",
		Long: TitleStyle.Render("pypack") + SubtitleStyle.Render(" - package a Python program with the modules it imports") + `

pypack follows the import statements of an entry script, sorts every module
it finds into builtin, stdlib, local and third-party, compiles the sources
with the target interpreter and writes one archive per category plus a
manifest for the native bundle builder.

` + SubtitleStyle.Render("Examples:") + `
  pypack build app.py                   Package app.py with python3
  pypack build app.py --python python3.12 --add-data assets/logo.png
  pypack deps app.py                    Show how each import was classified
  pypack graph app.py | dot -Tsvg       Draw the import graph
  pypack inspect /tmp/build_app_*       Summarize a finished build`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is <config dir>/pypack/config.cue, then ./pypack.cue)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newBuildCommand(app),
		newDepsCommand(app),
		newGraphCommand(app),
		newInspectCommand(app),
		newConfigCommand(app),
		newVersionCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version != "dev" {
		return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev (built from source)"
}

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pypack version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(app.stdout, "pypack "+getVersionString())
			return nil
		},
	}
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd := NewRootCommand(app)
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(app.handleError),
	); err != nil {
		os.Exit(int(exitCodeFor(err)))
	}
}

// exitCodeFor returns the code carried by an ExitError. Anything else was
// rejected by cobra before a command ran, which makes it a usage error.
func exitCodeFor(err error) types.ExitCode {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return types.ExitUsage
}

// handleError renders classified failures with their issue help and leaves
// everything else to fang.
func (app *App) handleError(w io.Writer, styles fang.Styles, err error) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		renderServiceError(w, svcErr, app.opts.colorScheme)
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}

// loadConfig merges the configuration sources with overrides from the
// command line and records the display settings it selects.
func (app *App) loadConfig(cmd *cobra.Command, overrides map[string]any) (*config.Loaded, error) {
	if cmd.Flags().Changed("debug") {
		if overrides == nil {
			overrides = map[string]any{}
		}
		overrides["debug"] = app.opts.debug
	}
	loaded, err := app.Config.Load(cmd.Context(), config.LoadOptions{
		ConfigFilePath: types.FilesystemPath(app.opts.configFile),
		Overrides:      overrides,
	})
	if err != nil {
		return nil, err
	}
	app.opts.debug = loaded.Config.Debug
	app.opts.colorScheme = string(loaded.Config.UI.ColorScheme)
	return loaded, nil
}

// fail wraps err for the error handler and the exit code.
func (app *App) fail(err error) error {
	return &ExitError{Code: types.ExitFailure, Err: classifyError(err, app.opts.debug)}
}
