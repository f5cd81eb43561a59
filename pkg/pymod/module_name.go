// SPDX-License-Identifier: MPL-2.0

package pymod

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// CurrentPackage is the sentinel produced by "from . import x". It never
// names a resolvable module and is never stored in a DependencySet.
const CurrentPackage ModuleName = "."

// ErrInvalidModuleName is the sentinel error wrapped by InvalidModuleNameError.
var ErrInvalidModuleName = errors.New("invalid module name")

type (
	// ModuleName is a dotted Python module identifier such as "os.path".
	// The first segment is the unit of import resolution.
	ModuleName string

	// InvalidModuleNameError is returned when a ModuleName is not a dotted
	// sequence of Python identifiers.
	InvalidModuleNameError struct {
		Value  ModuleName
		Reason string
	}
)

// String returns the dotted form of the name.
func (n ModuleName) String() string { return string(n) }

// IsCurrentPackage reports whether n is the relative-import sentinel.
func (n ModuleName) IsCurrentPackage() bool { return n == CurrentPackage }

// Validate returns an error if n is empty or any segment is not an identifier.
func (n ModuleName) Validate() error {
	if n == "" {
		return &InvalidModuleNameError{Value: n, Reason: "must be non-empty"}
	}
	for _, seg := range strings.Split(string(n), ".") {
		if seg == "" {
			return &InvalidModuleNameError{Value: n, Reason: "contains an empty segment"}
		}
		if !isIdentifier(seg) {
			return &InvalidModuleNameError{Value: n, Reason: fmt.Sprintf("segment %q is not an identifier", seg)}
		}
	}
	return nil
}

// Segments splits the name on dots.
func (n ModuleName) Segments() []string {
	if n == "" {
		return nil
	}
	return strings.Split(string(n), ".")
}

// TopLevel returns the first dotted segment ("a.b.c" -> "a").
func (n ModuleName) TopLevel() ModuleName {
	head, _, _ := strings.Cut(string(n), ".")
	return ModuleName(head)
}

// Parent returns the enclosing package name and true, or "" and false for
// a top-level name.
func (n ModuleName) Parent() (ModuleName, bool) {
	i := strings.LastIndexByte(string(n), '.')
	if i <= 0 {
		return "", false
	}
	return n[:i], true
}

// Child returns the name of a member inside package n.
func (n ModuleName) Child(member string) ModuleName {
	return ModuleName(string(n) + "." + member)
}

// Error implements the error interface.
func (e *InvalidModuleNameError) Error() string {
	return fmt.Sprintf("invalid module name %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidModuleName for errors.Is() compatibility.
func (e *InvalidModuleNameError) Unwrap() error { return ErrInvalidModuleName }

func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return s != ""
}
