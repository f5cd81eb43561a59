// SPDX-License-Identifier: MPL-2.0

package pymod

import (
	"slices"

	"github.com/pypack/pypack/pkg/types"
)

// Origin describes where a resolved module lives.
//
// A plain module has only File. A regular package has File pointing at its
// __init__.py and one SearchLocations entry. A namespace package has
// SearchLocations and no File. Builtin modules are compiled into the
// interpreter and have neither.
type Origin struct {
	File            types.FilesystemPath
	SearchLocations []types.FilesystemPath
	Builtin         bool
}

// HasFile reports whether the origin is backed by a concrete file.
func (o Origin) HasFile() bool { return o.File != "" }

// IsPackage reports whether the module has member search locations.
func (o Origin) IsPackage() bool { return len(o.SearchLocations) > 0 }

// IsNamespace reports whether the module is a package with no __init__ file.
func (o Origin) IsNamespace() bool { return o.IsPackage() && !o.HasFile() }

// Equal reports whether two origins describe the same location.
func (o Origin) Equal(other Origin) bool {
	return o.File == other.File && o.Builtin == other.Builtin &&
		slices.Equal(o.SearchLocations, other.SearchLocations)
}
