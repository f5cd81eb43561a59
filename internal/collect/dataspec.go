// SPDX-License-Identifier: MPL-2.0

package collect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pypack/pypack/pkg/types"
)

// ErrInvalidDataSpec is returned when a data resource specification is malformed.
var ErrInvalidDataSpec = errors.New("invalid data spec")

type (
	// DataSpec is a user-supplied data resource in "source[:destination]" form.
	DataSpec struct {
		Source types.FilesystemPath `msgpack:"source"`
		// Destination is recorded for the native builder only; archive
		// entries are flattened to the file's base name regardless.
		Destination string `msgpack:"destination,omitempty"`
	}

	// InvalidDataSpecError is returned when a data resource specification is malformed.
	// It wraps ErrInvalidDataSpec for errors.Is() compatibility.
	InvalidDataSpecError struct {
		Value  string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidDataSpecError) Error() string {
	return fmt.Sprintf("invalid data spec %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidDataSpec for errors.Is() compatibility.
func (e *InvalidDataSpecError) Unwrap() error { return ErrInvalidDataSpec }

// String returns the spec in "source[:destination]" form.
func (d DataSpec) String() string {
	if d.Destination == "" {
		return string(d.Source)
	}
	return string(d.Source) + ":" + d.Destination
}

// ParseDataSpec splits s at the first colon that is not part of a Windows
// drive prefix, so "C:\assets:img" parses as source "C:\assets" and
// destination "img".
func ParseDataSpec(s string) (DataSpec, error) {
	if strings.TrimSpace(s) == "" {
		return DataSpec{}, &InvalidDataSpecError{Value: s, Reason: "empty"}
	}
	offset := 0
	if hasDrivePrefix(s) {
		offset = 2
	}
	src, dest := s, ""
	if i := strings.IndexByte(s[offset:], ':'); i >= 0 {
		src, dest = s[:offset+i], s[offset+i+1:]
	}
	if src == "" {
		return DataSpec{}, &InvalidDataSpecError{Value: s, Reason: "missing source"}
	}
	return DataSpec{Source: types.FilesystemPath(src), Destination: dest}, nil
}

// ParseDataSpecs parses each spec, stopping at the first invalid one.
func ParseDataSpecs(specs []string) ([]DataSpec, error) {
	out := make([]DataSpec, 0, len(specs))
	for _, s := range specs {
		d, err := ParseDataSpec(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// hasDrivePrefix reports whether s starts with a drive letter and colon
// followed by a path separator, as in C:\ or C:/.
func hasDrivePrefix(s string) bool {
	if len(s) < 3 || s[1] != ':' || (s[2] != '\\' && s[2] != '/') {
		return false
	}
	c := s[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
