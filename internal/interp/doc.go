// SPDX-License-Identifier: MPL-2.0

// Package interp asks the target CPython interpreter about itself: its
// search path, standard library and site-packages roots, builtin module
// names, bytecode magic number and shared library directory. Everything the
// pipeline knows about the runtime it packages for comes from one Probe.
package interp
