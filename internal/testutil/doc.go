// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by pypack tests: a controllable
// clock, Python source tree fixtures, a capturing slog handler, and a
// semaphore bounding concurrent container tests.
package testutil
