// SPDX-License-Identifier: MPL-2.0

// Package manifest writes the hand-off record read by the native builder.
// It is msgpack-encoded and lives at <workspace>/manifest.mp.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pypack/pypack/internal/archive"
	"github.com/pypack/pypack/internal/collect"
	"github.com/pypack/pypack/internal/issue"
)

// FileName is the manifest's name inside a workspace.
const FileName = "manifest.mp"

// SchemaVersion is bumped whenever the Manifest layout changes.
const SchemaVersion uint16 = 1

var (
	// ErrSchemaMismatch is returned when a manifest was written by an
	// incompatible version.
	ErrSchemaMismatch = errors.New("manifest schema version mismatch")
	// ErrRead is wrapped by every error returned from Read.
	ErrRead = errors.New("manifest read failed")
)

type (
	// Interpreter records the facts of the interpreter the build targeted.
	Interpreter struct {
		Executable string `msgpack:"executable"`
		Version    string `msgpack:"version"`
		Magic      string `msgpack:"magic"`
		Platform   string `msgpack:"platform"`
	}

	// Manifest is the build's hand-off record.
	Manifest struct {
		Schema     uint16 `msgpack:"schema"`
		OutputName string `msgpack:"output_name"`
		OutputDir  string `msgpack:"output_dir"`
		Workspace  string `msgpack:"workspace"`
		Entry      string `msgpack:"entry"`
		// MainArtifact is the compiled entry script.
		MainArtifact string `msgpack:"main_artifact"`
		// Archives maps each written archive's category to its report.
		Archives    map[archive.Category]archive.Report `msgpack:"archives"`
		SharedLib   string                              `msgpack:"shared_lib,omitempty"`
		Interpreter Interpreter                         `msgpack:"interpreter"`
		// Modules lists module names per classification ("builtin", "stdlib", ...).
		Modules   map[string][]string `msgpack:"modules"`
		Data      []collect.DataSpec  `msgpack:"data,omitempty"`
		Warnings  int                 `msgpack:"warnings"`
		CreatedAt time.Time           `msgpack:"created_at"`
	}
)

// Path returns the manifest path inside workspaceDir.
func Path(workspaceDir string) string {
	return filepath.Join(workspaceDir, FileName)
}

// Write encodes m to path. The file is written to a temporary name in the
// same directory and renamed into place.
func Write(path string, m *Manifest) (err error) {
	if m.Schema == 0 {
		m.Schema = SchemaVersion
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("creating manifest: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := msgpack.NewEncoder(tmp).Encode(m); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming manifest into place: %w", err)
	}
	return nil
}

// Read decodes the manifest at path and checks its schema version.
func Read(path string) (m *Manifest, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, readError(path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = readError(path, closeErr)
		}
	}()

	m = &Manifest{}
	if err := msgpack.NewDecoder(f).Decode(m); err != nil {
		return nil, readError(path, fmt.Errorf("decoding manifest: %w", err))
	}
	if m.Schema != SchemaVersion {
		return nil, readError(path, fmt.Errorf("%w: got %d, want %d", ErrSchemaMismatch, m.Schema, SchemaVersion))
	}
	return m, nil
}

func readError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("read build manifest").
		WithResource(path).
		WithSuggestion("Pass a workspace directory created by pypack build, or its manifest.mp").
		WithSuggestion("Rebuild with this version of pypack if the manifest is from another release").
		ForIssue(issue.ManifestReadFailedId).
		Wrap(fmt.Errorf("%w: %w", ErrRead, err)).
		BuildError()
}
