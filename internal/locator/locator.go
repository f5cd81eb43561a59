// SPDX-License-Identifier: MPL-2.0

package locator

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pypack/pypack/pkg/fspath"
	"github.com/pypack/pypack/pkg/pymod"
	"github.com/pypack/pypack/pkg/types"
)

const initFile = "__init__.py"

var (
	// sourceSuffixes are tried after extension modules, in this order.
	sourceSuffixes = []string{".py", ".pyw"}
	// extensionSuffixes are the untagged extension module suffixes. Tagged
	// forms such as name.cpython-312-x86_64-linux-gnu.so are matched by glob.
	extensionSuffixes = []string{".so", ".pyd"}
)

type (
	// Locator resolves a module name to its origin. The second result is
	// false when the module cannot be found.
	Locator interface {
		Resolve(name pymod.ModuleName) (pymod.Origin, bool)
	}

	// PathLocator resolves modules against an ordered search-path table and
	// a set of builtin module names.
	PathLocator struct {
		paths    []types.FilesystemPath
		builtins map[pymod.ModuleName]struct{}
	}

	// Static is a fixed name-to-origin table. Names absent from the map are
	// reported as not found.
	Static map[pymod.ModuleName]pymod.Origin
)

// NewPathLocator returns a locator searching paths in order. Builtin names
// resolve to a builtin origin before any path is consulted.
func NewPathLocator(paths []types.FilesystemPath, builtins []string) *PathLocator {
	b := make(map[pymod.ModuleName]struct{}, len(builtins))
	for _, name := range builtins {
		b[pymod.ModuleName(name)] = struct{}{}
	}
	return &PathLocator{paths: slices.Clone(paths), builtins: b}
}

// Paths returns the search-path table.
func (l *PathLocator) Paths() []types.FilesystemPath { return slices.Clone(l.paths) }

// Resolve finds name. Dotted names are resolved segment by segment through
// each parent package's search locations.
func (l *PathLocator) Resolve(name pymod.ModuleName) (pymod.Origin, bool) {
	if name == "" || name.IsCurrentPackage() {
		return pymod.Origin{}, false
	}
	if _, ok := l.builtins[name]; ok {
		return pymod.Origin{Builtin: true}, true
	}

	dirs := l.paths
	var origin pymod.Origin
	for i, seg := range name.Segments() {
		if i > 0 {
			if !origin.IsPackage() {
				return pymod.Origin{}, false
			}
			dirs = origin.SearchLocations
		}
		var found bool
		origin, found = findIn(dirs, seg)
		if !found {
			return pymod.Origin{}, false
		}
	}
	return origin, true
}

// Resolve implements Locator.
func (s Static) Resolve(name pymod.ModuleName) (pymod.Origin, bool) {
	o, ok := s[name]
	return o, ok
}

// findIn looks for seg in each directory. Within one directory a regular
// package wins over an extension module, which wins over a source module.
// A directory without __init__.py becomes a namespace portion, used only if
// no directory yields a concrete module.
func findIn(dirs []types.FilesystemPath, seg string) (pymod.Origin, bool) {
	var portions []types.FilesystemPath
	for _, dir := range dirs {
		pkgDir := fspath.JoinStr(dir, seg)
		if isDir(pkgDir) {
			if init := fspath.JoinStr(pkgDir, initFile); isFile(init) {
				return pymod.Origin{File: init, SearchLocations: []types.FilesystemPath{pkgDir}}, true
			}
			portions = append(portions, pkgDir)
		}
		if file, ok := findModuleFile(dir, seg); ok {
			return pymod.Origin{File: file}, true
		}
	}
	if len(portions) > 0 {
		return pymod.Origin{SearchLocations: portions}, true
	}
	return pymod.Origin{}, false
}

func findModuleFile(dir types.FilesystemPath, seg string) (types.FilesystemPath, bool) {
	globbable := !strings.ContainsAny(seg, `*?[\`)
	for _, suffix := range extensionSuffixes {
		if globbable {
			matches, _ := filepath.Glob(filepath.Join(string(dir), seg+".*"+suffix))
			slices.Sort(matches)
			for _, m := range matches {
				if isFile(types.FilesystemPath(m)) {
					return types.FilesystemPath(m), true
				}
			}
		}
		if p := fspath.JoinStr(dir, seg+suffix); isFile(p) {
			return p, true
		}
	}
	for _, suffix := range sourceSuffixes {
		if p := fspath.JoinStr(dir, seg+suffix); isFile(p) {
			return p, true
		}
	}
	return "", false
}

func isFile(p types.FilesystemPath) bool {
	info, err := os.Stat(string(p))
	return err == nil && info.Mode().IsRegular()
}

func isDir(p types.FilesystemPath) bool {
	info, err := os.Stat(string(p))
	return err == nil && info.IsDir()
}
