// SPDX-License-Identifier: MPL-2.0

package pymod

import (
	"errors"
	"fmt"
)

const (
	// ClassBuiltin is a module compiled into the interpreter; nothing is collected.
	ClassBuiltin Classification = iota + 1
	// ClassStdlib is a module under the interpreter's standard library roots.
	ClassStdlib
	// ClassLocal is a module inside the entry script's directory tree.
	ClassLocal
	// ClassThirdParty is every other module, resolved or not.
	ClassThirdParty
)

// Classification reasons, reported in logs and by the deps command.
const (
	ReasonBuiltinName           Reason = "builtin-name"
	ReasonStdlibRoot            Reason = "stdlib-root"
	ReasonEntryTree             Reason = "entry-tree"
	ReasonNamespaceStdlibRoot   Reason = "namespace-stdlib-root"
	ReasonNamespaceEntryTree    Reason = "namespace-entry-tree"
	ReasonNamespaceSitePackages Reason = "namespace-site-packages"
	ReasonNamespaceConvention   Reason = "namespace-convention"
	ReasonUnresolved            Reason = "unresolved"
	ReasonOutsideKnownRoots     Reason = "outside-known-roots"
)

// ErrInvalidClassification is returned for classification values outside the enum.
var ErrInvalidClassification = errors.New("invalid classification")

type (
	// Classification is the provenance bucket of a module. Each module name
	// is assigned exactly one classification per build.
	Classification int

	// Reason records which rule produced a classification.
	Reason string
)

// AllClassifications lists the buckets in reporting order.
func AllClassifications() []Classification {
	return []Classification{ClassBuiltin, ClassStdlib, ClassLocal, ClassThirdParty}
}

// String returns the lowercase bucket name.
func (c Classification) String() string {
	switch c {
	case ClassBuiltin:
		return "builtin"
	case ClassStdlib:
		return "stdlib"
	case ClassLocal:
		return "local"
	case ClassThirdParty:
		return "third-party"
	default:
		return "unknown"
	}
}

// Validate returns an error if c is not one of the four buckets.
func (c Classification) Validate() error {
	if c < ClassBuiltin || c > ClassThirdParty {
		return fmt.Errorf("%w: %d", ErrInvalidClassification, int(c))
	}
	return nil
}

// ParseClassification is the inverse of Classification.String.
func ParseClassification(s string) (Classification, error) {
	for _, c := range AllClassifications() {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidClassification, s)
}

// String returns the reason tag.
func (r Reason) String() string { return string(r) }
