// SPDX-License-Identifier: MPL-2.0

// Package fspath provides typed wrappers around path/filepath functions that
// accept and return types.FilesystemPath, plus the subtree and canonical-path
// helpers the module classifier and resolver depend on.
package fspath

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pypack/pypack/pkg/types"
)

// Join wraps filepath.Join, accepting and returning types.FilesystemPath.
func Join(elem ...types.FilesystemPath) types.FilesystemPath {
	strs := make([]string, len(elem))
	for i, e := range elem {
		strs[i] = string(e)
	}
	return types.FilesystemPath(filepath.Join(strs...))
}

// JoinStr wraps filepath.Join, accepting a typed base path and raw string
// segments. Use this when joining a path with literal names (e.g. "__init__.py")
// or OS-provided file names (e.g. from os.ReadDir).
func JoinStr(base types.FilesystemPath, elem ...string) types.FilesystemPath {
	parts := make([]string, 1, 1+len(elem))
	parts[0] = string(base)
	parts = append(parts, elem...)
	return types.FilesystemPath(filepath.Join(parts...))
}

// Dir wraps filepath.Dir for FilesystemPath.
func Dir(p types.FilesystemPath) types.FilesystemPath {
	return types.FilesystemPath(filepath.Dir(string(p)))
}

// Abs wraps filepath.Abs for FilesystemPath. Returns an error if the
// underlying OS call fails.
func Abs(p types.FilesystemPath) (types.FilesystemPath, error) {
	abs, err := filepath.Abs(string(p))
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	return types.FilesystemPath(abs), nil
}

// Clean wraps filepath.Clean for FilesystemPath.
func Clean(p types.FilesystemPath) types.FilesystemPath {
	return types.FilesystemPath(filepath.Clean(string(p)))
}

// IsAbs wraps filepath.IsAbs for FilesystemPath.
func IsAbs(p types.FilesystemPath) bool {
	return filepath.IsAbs(string(p))
}

// Canonical returns the absolute, cleaned form of p with symlinks evaluated.
// When symlink evaluation fails (e.g. the path does not exist yet) the
// absolute cleaned path is returned instead.
func Canonical(p types.FilesystemPath) (types.FilesystemPath, error) {
	abs, err := Abs(p)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(string(abs))
	if err != nil {
		return Clean(abs), nil
	}
	return types.FilesystemPath(resolved), nil
}

// Within reports whether p equals root or lies inside root's subtree.
// Both paths are compared in cleaned form; callers should pass absolute
// paths. An empty root never contains anything.
func Within(root, p types.FilesystemPath) bool {
	if root == "" || p == "" {
		return false
	}
	r := filepath.Clean(string(root))
	c := filepath.Clean(string(p))
	if r == c {
		return true
	}
	rel, err := filepath.Rel(r, c)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// WithinAny reports whether p lies inside at least one of roots.
func WithinAny(roots []types.FilesystemPath, p types.FilesystemPath) bool {
	for _, root := range roots {
		if Within(root, p) {
			return true
		}
	}
	return false
}
