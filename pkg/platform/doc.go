// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities.
//
// It centralizes OS name constants, detection of application sandboxes that
// hide the host interpreter, and Windows reserved file names that cannot be
// used as bundle output names.
package platform
