// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCUEPath is returned when a CUEPath is blank.
var ErrInvalidCUEPath = errors.New("invalid CUE path")

type (
	// CUEPath is a field path in JSON-path notation, such as "data[0].source".
	CUEPath string

	// InvalidCUEPathError reports a blank CUEPath.
	InvalidCUEPathError struct {
		Value CUEPath
	}
)

// String returns the path text.
func (p CUEPath) String() string { return string(p) }

// Validate rejects empty and whitespace-only paths.
func (p CUEPath) Validate() error {
	if strings.TrimSpace(string(p)) == "" {
		return &InvalidCUEPathError{Value: p}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidCUEPathError) Error() string {
	return fmt.Sprintf("invalid CUE path %q: must not be blank", e.Value)
}

// Unwrap returns ErrInvalidCUEPath for errors.Is() compatibility.
func (e *InvalidCUEPathError) Unwrap() error { return ErrInvalidCUEPath }
