// SPDX-License-Identifier: MPL-2.0

package platform

// GOOS values that select shared-library candidates and config locations.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)
