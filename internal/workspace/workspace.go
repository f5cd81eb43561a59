// SPDX-License-Identifier: MPL-2.0

// Package workspace creates the per-build directory that owns every
// intermediate file of a build.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pypack/pypack/internal/issue"
	"github.com/pypack/pypack/pkg/platform"
)

// ErrInvalidOutputName is returned when an output name cannot be used as a
// file name on every supported platform.
var ErrInvalidOutputName = errors.New("invalid output name")

// ErrCreate is wrapped when the workspace directory cannot be created.
var ErrCreate = errors.New("workspace creation failed")

type (
	// Clock supplies the build timestamp.
	Clock interface {
		Now() time.Time
	}

	// InvalidOutputNameError is returned when an output name is rejected.
	// It wraps ErrInvalidOutputName for errors.Is() compatibility.
	InvalidOutputNameError struct {
		Value  string
		Reason string
	}

	// Workspace is a uniquely named build directory. It is never removed by
	// the build; callers decide when to clean it up.
	Workspace struct {
		Dir        string
		OutputName string
		Created    time.Time
	}

	systemClock struct{}
)

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

// Error implements the error interface.
func (e *InvalidOutputNameError) Error() string {
	return fmt.Sprintf("invalid output name %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidOutputName for errors.Is() compatibility.
func (e *InvalidOutputNameError) Unwrap() error { return ErrInvalidOutputName }

// ValidateOutputName rejects empty names, path separators, dot names and
// Windows device names.
func ValidateOutputName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return &InvalidOutputNameError{Value: name, Reason: "must not be empty"}
	case strings.ContainsAny(name, `/\`):
		return &InvalidOutputNameError{Value: name, Reason: "must not contain path separators"}
	case name == "." || name == "..":
		return &InvalidOutputNameError{Value: name, Reason: "must not be a relative directory name"}
	case strings.ContainsRune(name, 0):
		return &InvalidOutputNameError{Value: name, Reason: "must not contain NUL bytes"}
	case platform.IsWindowsReservedName(name):
		return &InvalidOutputNameError{Value: name, Reason: "is a reserved device name on Windows"}
	}
	return nil
}

// New creates build_<outputName>_<unix-seconds>_<random> under root,
// creating root when missing.
func New(root, outputName string, clock Clock) (*Workspace, error) {
	if err := ValidateOutputName(outputName); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock()
	}
	if root == "" {
		root = os.TempDir()
	}
	now := clock.Now()

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, createError(root, err)
	}
	dir, err := os.MkdirTemp(root, fmt.Sprintf("build_%s_%d_", outputName, now.Unix()))
	if err != nil {
		return nil, createError(root, err)
	}
	return &Workspace{Dir: dir, OutputName: outputName, Created: now}, nil
}

// Path returns name joined onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

func createError(root string, err error) error {
	return issue.NewErrorContext().
		WithOperation("create build workspace").
		WithResource(root).
		WithSuggestion("Check that the workspace root is writable").
		WithSuggestion("Choose another location with --workspace-root").
		ForIssue(issue.WorkspaceCreateFailedId).
		Wrap(fmt.Errorf("%w: %w", ErrCreate, err)).
		BuildError()
}
