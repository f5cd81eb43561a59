// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"log/slog"

	charmlog "github.com/charmbracelet/log"
)

// newLogger returns the slog logger handed to the pipeline. Records are
// printed by charmbracelet/log; debug records and timestamps only appear
// when debug is set.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := charmlog.InfoLevel
	if debug {
		level = charmlog.DebugLevel
	}
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		Prefix:          "pypack",
		Level:           level,
		ReportTimestamp: debug,
	})
	return slog.New(handler)
}
