// SPDX-License-Identifier: MPL-2.0

// Package pymod defines the value types shared by the resolution and
// packaging pipeline: dotted module names, module origins, provenance
// classifications, and the sets that accumulate during one build.
package pymod
