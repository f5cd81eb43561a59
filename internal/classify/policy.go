// SPDX-License-Identifier: MPL-2.0

package classify

import (
	"errors"
	"fmt"
)

const (
	// PolicyLocation classifies a namespace package by where its portions live.
	PolicyLocation NamespacePolicy = "location"
	// PolicyStdlib classifies every namespace package as stdlib.
	PolicyStdlib NamespacePolicy = "stdlib"
)

// ErrInvalidNamespacePolicy is returned when a NamespacePolicy value is not recognized.
var ErrInvalidNamespacePolicy = errors.New("invalid namespace policy")

type (
	// NamespacePolicy selects how namespace packages (no __init__.py and no
	// file origin) are classified.
	NamespacePolicy string

	// InvalidNamespacePolicyError is returned when a NamespacePolicy value is not recognized.
	// It wraps ErrInvalidNamespacePolicy for errors.Is() compatibility.
	InvalidNamespacePolicyError struct {
		Value NamespacePolicy
	}
)

// Error implements the error interface.
func (e *InvalidNamespacePolicyError) Error() string {
	return fmt.Sprintf("invalid namespace policy %q (valid: %s, %s)", e.Value, PolicyLocation, PolicyStdlib)
}

// Unwrap returns ErrInvalidNamespacePolicy for errors.Is() compatibility.
func (e *InvalidNamespacePolicyError) Unwrap() error { return ErrInvalidNamespacePolicy }

// String returns the string representation of the NamespacePolicy.
func (p NamespacePolicy) String() string { return string(p) }

// Validate returns nil if the policy is recognized. The zero value is
// accepted and means PolicyLocation.
func (p NamespacePolicy) Validate() error {
	switch p {
	case "", PolicyLocation, PolicyStdlib:
		return nil
	default:
		return &InvalidNamespacePolicyError{Value: p}
	}
}
