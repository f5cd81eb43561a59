// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the pypack command-line interface.
//
// Commands are thin: they merge flags over the loaded configuration, call the
// pipeline through the App's services and render results with lipgloss.
// Failures are mapped to issue catalog entries before they reach fang's
// error output.
package cmd
