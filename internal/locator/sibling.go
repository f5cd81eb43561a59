// SPDX-License-Identifier: MPL-2.0

package locator

import (
	"path/filepath"

	"github.com/pypack/pypack/pkg/fspath"
	"github.com/pypack/pypack/pkg/pymod"
	"github.com/pypack/pypack/pkg/types"
)

// DefaultMaxParentHops bounds the upward sibling search.
const DefaultMaxParentHops = 64

// FindSibling searches for a top-level module next to the importing file:
// <dir>/<name>.py, then <dir>/<name>/__init__.py, then the same in each
// parent directory. The walk stops at the filesystem root or after maxHops
// parent steps (DefaultMaxParentHops when maxHops <= 0).
func FindSibling(name pymod.ModuleName, dir types.FilesystemPath, maxHops int) (pymod.Origin, bool) {
	if name == "" || name.IsCurrentPackage() {
		return pymod.Origin{}, false
	}
	if maxHops <= 0 {
		maxHops = DefaultMaxParentHops
	}
	top := string(name.TopLevel())

	current, err := fspath.Abs(dir)
	if err != nil {
		return pymod.Origin{}, false
	}
	current = fspath.Clean(current)

	for hops := 0; ; hops++ {
		if file := fspath.JoinStr(current, top+".py"); isFile(file) {
			return pymod.Origin{File: file}, true
		}
		pkgDir := fspath.JoinStr(current, top)
		if init := fspath.JoinStr(pkgDir, initFile); isFile(init) {
			return pymod.Origin{File: init, SearchLocations: []types.FilesystemPath{pkgDir}}, true
		}

		parent := types.FilesystemPath(filepath.Dir(string(current)))
		if parent == current || hops >= maxHops {
			return pymod.Origin{}, false
		}
		current = parent
	}
}
