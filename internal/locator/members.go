// SPDX-License-Identifier: MPL-2.0

package locator

import (
	"os"
	"slices"
	"strings"

	"github.com/pypack/pypack/pkg/fspath"
	"github.com/pypack/pypack/pkg/pymod"
	"github.com/pypack/pypack/pkg/types"
)

// Member is an immediate submodule of a package.
type Member struct {
	Name pymod.ModuleName
	File types.FilesystemPath
}

// Members lists the immediate *.py files of pkg's search locations, one
// level deep, excluding __init__.py. Members are named pkg.<stem> and
// returned sorted by name; a stem seen in an earlier location wins.
func Members(pkg pymod.ModuleName, origin pymod.Origin) []Member {
	seen := make(map[string]bool)
	var out []Member
	for _, loc := range origin.SearchLocations {
		entries, err := os.ReadDir(string(loc))
		if err != nil {
			continue
		}
		for _, e := range entries {
			fileName := e.Name()
			if e.IsDir() || !strings.HasSuffix(fileName, ".py") || fileName == initFile {
				continue
			}
			stem := strings.TrimSuffix(fileName, ".py")
			if seen[stem] {
				continue
			}
			seen[stem] = true
			out = append(out, Member{Name: pkg.Child(stem), File: fspath.JoinStr(loc, fileName)})
		}
	}
	slices.SortFunc(out, func(a, b Member) int { return strings.Compare(string(a.Name), string(b.Name)) })
	return out
}
