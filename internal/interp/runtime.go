// SPDX-License-Identifier: MPL-2.0

package interp

import (
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/pypack/pypack/pkg/types"
)

// MagicLen is the length of a CPython bytecode magic number.
const MagicLen = 4

// ErrInvalidMagic is returned when the probed magic number is not 4 bytes of hex.
var ErrInvalidMagic = errors.New("invalid bytecode magic number")

type (
	// Version is a CPython version triple.
	Version struct {
		Major int `json:"major"`
		Minor int `json:"minor"`
		Micro int `json:"micro"`
	}

	// Runtime holds the facts reported by the target interpreter.
	Runtime struct {
		Executable string   `json:"executable"`
		Version    Version  `json:"version"`
		MagicHex   string   `json:"magic"`
		Stdlib     string   `json:"stdlib"`
		PlatStdlib string   `json:"platstdlib"`
		Purelib    string   `json:"purelib"`
		Platlib    string   `json:"platlib"`
		LibDir     string   `json:"libdir"`
		Path       []string `json:"path"`
		Builtins   []string `json:"builtins"`
		Platform   string   `json:"platform"`
	}
)

// String returns the dotted version ("3.12.4").
func (v Version) String() string { return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro) }

// Short returns "X.Y", used in shared library names such as libpython3.12.so.
func (v Version) Short() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// NoDot returns "XY", used in Windows DLL names such as python312.dll.
func (v Version) NoDot() string { return fmt.Sprintf("%d%d", v.Major, v.Minor) }

// Magic decodes the 4-byte bytecode magic number.
func (r *Runtime) Magic() ([]byte, error) {
	b, err := hex.DecodeString(r.MagicHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMagic, err)
	}
	if len(b) != MagicLen {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidMagic, len(b), MagicLen)
	}
	return b, nil
}

// IsBuiltin reports whether name is compiled into the interpreter.
func (r *Runtime) IsBuiltin(name string) bool {
	_, found := slices.BinarySearch(r.Builtins, name)
	return found
}

// StdlibRoots returns the distinct, non-empty standard library roots.
func (r *Runtime) StdlibRoots() []types.FilesystemPath {
	return distinctPaths(r.Stdlib, r.PlatStdlib)
}

// SitePackagesRoots returns the distinct, non-empty site-packages roots.
func (r *Runtime) SitePackagesRoots() []types.FilesystemPath {
	return distinctPaths(r.Purelib, r.Platlib)
}

// SearchPath returns the interpreter's sys.path as typed paths.
func (r *Runtime) SearchPath() []types.FilesystemPath {
	return distinctPaths(r.Path...)
}

// ExecutableDir returns the directory holding the interpreter binary.
func (r *Runtime) ExecutableDir() types.FilesystemPath {
	if r.Executable == "" {
		return ""
	}
	return types.FilesystemPath(filepath.Dir(r.Executable))
}

// normalize sorts the builtin names so IsBuiltin can binary-search them.
func (r *Runtime) normalize() {
	slices.Sort(r.Builtins)
	r.Builtins = slices.Compact(r.Builtins)
}

func distinctPaths(paths ...string) []types.FilesystemPath {
	out := make([]types.FilesystemPath, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		tp := types.FilesystemPath(filepath.Clean(p))
		if !slices.Contains(out, tp) {
			out = append(out, tp)
		}
	}
	return out
}
