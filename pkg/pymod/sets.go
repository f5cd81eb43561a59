// SPDX-License-Identifier: MPL-2.0

package pymod

import (
	"slices"
	"strings"

	"github.com/pypack/pypack/pkg/types"
)

type (
	// DependencySet is the deduplicated set of module names discovered for
	// one build. It only grows during resolution; RemoveTree exists for the
	// final exclude pass.
	DependencySet struct {
		names map[ModuleName]struct{}
	}

	// VisitedFiles records the canonical paths of source files that have
	// already been parsed. Each file is parsed at most once per build.
	VisitedFiles struct {
		paths map[types.FilesystemPath]struct{}
	}
)

// NewDependencySet returns a set holding names.
func NewDependencySet(names ...ModuleName) *DependencySet {
	s := &DependencySet{names: make(map[ModuleName]struct{}, len(names))}
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name and reports whether it was new. The CurrentPackage
// sentinel and empty names are rejected.
func (s *DependencySet) Add(name ModuleName) bool {
	if name == "" || name.IsCurrentPackage() {
		return false
	}
	if _, ok := s.names[name]; ok {
		return false
	}
	s.names[name] = struct{}{}
	return true
}

// Remove deletes name and reports whether it was present.
func (s *DependencySet) Remove(name ModuleName) bool {
	if _, ok := s.names[name]; !ok {
		return false
	}
	delete(s.names, name)
	return true
}

// RemoveTree deletes name and every dotted member below it, and returns
// how many names were removed.
func (s *DependencySet) RemoveTree(name ModuleName) int {
	prefix := string(name) + "."
	removed := 0
	for n := range s.names {
		if n == name || strings.HasPrefix(string(n), prefix) {
			delete(s.names, n)
			removed++
		}
	}
	return removed
}

// Has reports whether name is in the set.
func (s *DependencySet) Has(name ModuleName) bool {
	_, ok := s.names[name]
	return ok
}

// Len returns the number of names.
func (s *DependencySet) Len() int { return len(s.names) }

// Sorted returns the names in lexical order.
func (s *DependencySet) Sorted() []ModuleName {
	out := make([]ModuleName, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// NewVisitedFiles returns an empty visited set.
func NewVisitedFiles() *VisitedFiles {
	return &VisitedFiles{paths: make(map[types.FilesystemPath]struct{})}
}

// Mark records path and reports whether it was not seen before.
func (v *VisitedFiles) Mark(path types.FilesystemPath) bool {
	if _, ok := v.paths[path]; ok {
		return false
	}
	v.paths[path] = struct{}{}
	return true
}

// Has reports whether path has been visited.
func (v *VisitedFiles) Has(path types.FilesystemPath) bool {
	_, ok := v.paths[path]
	return ok
}

// Len returns the number of visited files.
func (v *VisitedFiles) Len() int { return len(v.paths) }

// Sorted returns the visited paths in lexical order.
func (v *VisitedFiles) Sorted() []types.FilesystemPath {
	out := make([]types.FilesystemPath, 0, len(v.paths))
	for p := range v.paths {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
