// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

var (
	// ErrValidation is wrapped by every error describing invalid user data.
	ErrValidation = errors.New("CUE validation failed")
	// ErrFileTooLarge is returned when input exceeds the configured size cap.
	ErrFileTooLarge = errors.New("file exceeds maximum size")
)

// ValidationError is one problem found in a user file.
type ValidationError struct {
	FilePath string
	// CUEPath locates the offending value; empty for file-level errors such
	// as syntax errors.
	CUEPath CUEPath
	Message string
	// Suggestion is an optional hint shown by the CLI, not part of Error().
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.CUEPath != "" {
		return fmt.Sprintf("%s: %s: %s", e.FilePath, e.CUEPath, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}

// Unwrap returns ErrValidation for errors.Is() compatibility.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// FormatError converts a CUE error into ValidationErrors prefixed with the
// file path and the JSON path of each offending field:
//
//	config.cue: namespace_policy: conflicting values "location" and "sometimes"
//
// A single problem is returned as a *ValidationError; several are joined.
// Errors that did not come from CUE are wrapped with the file path only.
func FormatError(err error, filePath string) error {
	if err == nil {
		return nil
	}

	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	out := make([]error, 0, len(list))
	for _, e := range list {
		path := CUEPath(formatPath(cueerrors.Path(e)))
		msg := e.Error()
		// CUE sometimes repeats the path at the start of the message.
		if path != "" && strings.HasPrefix(msg, string(path)) {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, string(path)), ":"))
		}
		out = append(out, &ValidationError{FilePath: filePath, CUEPath: path, Message: msg})
	}
	if len(out) == 1 {
		return out[0]
	}
	return errors.Join(out...)
}

// formatPath renders CUE's flat path ["data", "0", "source"] as
// "data[0].source".
func formatPath(path []string) string {
	var b strings.Builder
	for i, part := range path {
		if i > 0 && isIndex(part) {
			b.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CheckFileSize returns an error wrapping ErrFileTooLarge when data is
// longer than maxSize bytes.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: %w: %d bytes, limit %d bytes", filename, ErrFileTooLarge, len(data), maxSize)
	}
	return nil
}
