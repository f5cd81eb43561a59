// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pypack/pypack/internal/config"
)

func newConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create pypack configuration",
		Long: `Inspect and create pypack configuration.

Settings are merged in this order, later sources winning: built-in defaults,
the first CUE file found (--config, <config dir>/pypack/config.cue, then
./pypack.cue), the [tool.pypack] table of ./pyproject.toml, and flags.`,
	}
	cmd.AddCommand(
		newConfigShowCommand(app),
		newConfigPathCommand(app),
		newConfigInitCommand(app),
	)
	return cmd
}

func newConfigShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration and where it came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := app.loadConfig(cmd, nil)
			if err != nil {
				return app.fail(err)
			}
			fmt.Fprintln(app.stdout, kv("config file", sourceOrNone(loaded.ConfigFile)))
			fmt.Fprintln(app.stdout, kv("pyproject", sourceOrNone(loaded.Pyproject)))
			fmt.Fprintln(app.stdout)
			fmt.Fprint(app.stdout, config.GenerateCUE(loaded.Config))
			return nil
		},
	}
}

func sourceOrNone(path string) string {
	if path == "" {
		return SubtitleStyle.Render("(none)")
	}
	return PathStyle.Render(path)
}

func newConfigPathCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the path of the user configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigFilePath()
			if err != nil {
				return app.fail(err)
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	}
}

func newConfigInitCommand(app *App) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, created, err := config.CreateDefaultConfig(dir)
			if err != nil {
				return app.fail(err)
			}
			if !created {
				fmt.Fprintln(app.stdout, WarningStyle.Render("exists")+" "+PathStyle.Render(path))
				return nil
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("created")+" "+PathStyle.Render(path))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory for config.cue (default: the user config directory)")
	return cmd
}
