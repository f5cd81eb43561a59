// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// Fatal pipeline errors are ActionableError values carrying the failed
// operation, the resource involved and remediation hints. The CLI pairs them
// with a Markdown catalog entry rendered through glamour.
package issue
