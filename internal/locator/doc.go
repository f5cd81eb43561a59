// SPDX-License-Identifier: MPL-2.0

// Package locator answers "where does module X live?" the way CPython's
// path-based finder does, over an explicit search-path table. It also
// implements the upward sibling search used for modules that sit next to
// the importing file but outside the interpreter's search path.
package locator
