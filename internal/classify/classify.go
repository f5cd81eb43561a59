// SPDX-License-Identifier: MPL-2.0

// Package classify assigns every resolved module exactly one provenance
// bucket: builtin, stdlib, local or third-party.
package classify

import (
	"log/slog"

	"github.com/pypack/pypack/internal/interp"
	"github.com/pypack/pypack/internal/resolver"
	"github.com/pypack/pypack/pkg/fspath"
	"github.com/pypack/pypack/pkg/pymod"
	"github.com/pypack/pypack/pkg/types"
)

type (
	// Options describes the environment a Classifier judges origins against.
	Options struct {
		// Builtins are the interpreter's compiled-in module names.
		Builtins []string
		// StdlibRoots are the stdlib and platstdlib directories.
		StdlibRoots []types.FilesystemPath
		// SiteRoots are the purelib and platlib directories. They are carved
		// out of the stdlib roots when nested inside them.
		SiteRoots []types.FilesystemPath
		// EntryRoot is the entry script's directory.
		EntryRoot types.FilesystemPath
		Policy    NamespacePolicy
		Logger    *slog.Logger
	}

	// Classifier applies the classification precedence: builtin, stdlib,
	// local, third-party.
	Classifier struct {
		builtins  map[pymod.ModuleName]struct{}
		stdlib    []types.FilesystemPath
		site      []types.FilesystemPath
		entryRoot []types.FilesystemPath
		policy    NamespacePolicy
		log       *slog.Logger
	}
)

// New returns a Classifier for opts. Roots are compared both as given and
// in canonical form so symlinked installs classify the same either way.
func New(opts Options) (*Classifier, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	policy := opts.Policy
	if policy == "" {
		policy = PolicyLocation
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	b := make(map[pymod.ModuleName]struct{}, len(opts.Builtins))
	for _, name := range opts.Builtins {
		b[pymod.ModuleName(name)] = struct{}{}
	}
	var entry []types.FilesystemPath
	if opts.EntryRoot != "" {
		entry = expandRoots([]types.FilesystemPath{opts.EntryRoot})
	}
	return &Classifier{
		builtins:  b,
		stdlib:    expandRoots(opts.StdlibRoots),
		site:      expandRoots(opts.SiteRoots),
		entryRoot: entry,
		policy:    policy,
		log:       log,
	}, nil
}

// ForRuntime returns a Classifier for the probed interpreter rt.
func ForRuntime(rt *interp.Runtime, entryRoot types.FilesystemPath, policy NamespacePolicy, log *slog.Logger) (*Classifier, error) {
	return New(Options{
		Builtins:    rt.Builtins,
		StdlibRoots: rt.StdlibRoots(),
		SiteRoots:   rt.SitePackagesRoots(),
		EntryRoot:   entryRoot,
		Policy:      policy,
		Logger:      log,
	})
}

// Classify returns the classification of one module.
func (c *Classifier) Classify(name pymod.ModuleName, origin pymod.Origin, found bool) pymod.Classified {
	out := pymod.Classified{Name: name, Origin: origin, Found: found}
	out.Class, out.Reason = c.decide(name, origin, found)
	c.log.Debug("classified module", "module", name, "class", out.Class, "reason", out.Reason)
	return out
}

func (c *Classifier) decide(name pymod.ModuleName, origin pymod.Origin, found bool) (pymod.Classification, pymod.Reason) {
	if _, ok := c.builtins[name]; ok || origin.Builtin {
		return pymod.ClassBuiltin, pymod.ReasonBuiltinName
	}
	if !found {
		return pymod.ClassThirdParty, pymod.ReasonUnresolved
	}
	if origin.IsNamespace() {
		return c.namespace(name, origin)
	}
	switch {
	case c.isStdlib(origin.File):
		return pymod.ClassStdlib, pymod.ReasonStdlibRoot
	case under(c.entryRoot, origin.File):
		return pymod.ClassLocal, pymod.ReasonEntryTree
	default:
		return pymod.ClassThirdParty, pymod.ReasonOutsideKnownRoots
	}
}

func (c *Classifier) namespace(name pymod.ModuleName, origin pymod.Origin) (pymod.Classification, pymod.Reason) {
	if c.policy == PolicyStdlib {
		return pymod.ClassStdlib, pymod.ReasonNamespaceConvention
	}
	locs := origin.SearchLocations
	if all(locs, c.isStdlib) {
		return pymod.ClassStdlib, pymod.ReasonNamespaceStdlibRoot
	}
	if all(locs, func(p types.FilesystemPath) bool { return under(c.entryRoot, p) }) {
		return pymod.ClassLocal, pymod.ReasonNamespaceEntryTree
	}
	for _, loc := range locs {
		if under(c.site, loc) {
			return pymod.ClassThirdParty, pymod.ReasonNamespaceSitePackages
		}
	}
	c.log.Warn("namespace package outside known roots, treating as stdlib", "module", name, "locations", locs)
	return pymod.ClassStdlib, pymod.ReasonNamespaceConvention
}

func (c *Classifier) isStdlib(p types.FilesystemPath) bool {
	return under(c.stdlib, p) && !under(c.site, p)
}

// ClassifyAll classifies every name in res.Deps once.
func (c *Classifier) ClassifyAll(res *resolver.Result) *pymod.Partition {
	part := pymod.NewPartition()
	for _, name := range res.Deps.Sorted() {
		origin, found := res.Lookup(name)
		part.Set(c.Classify(name, origin, found))
	}
	return part
}

// under reports whether p, as given or canonicalized, is inside any root.
func under(roots []types.FilesystemPath, p types.FilesystemPath) bool {
	if p == "" || len(roots) == 0 {
		return false
	}
	if fspath.WithinAny(roots, p) {
		return true
	}
	canonical, err := fspath.Canonical(p)
	return err == nil && canonical != p && fspath.WithinAny(roots, canonical)
}

func all(paths []types.FilesystemPath, pred func(types.FilesystemPath) bool) bool {
	if len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		if !pred(p) {
			return false
		}
	}
	return true
}

// expandRoots returns roots plus the canonical form of each where it differs.
func expandRoots(roots []types.FilesystemPath) []types.FilesystemPath {
	out := make([]types.FilesystemPath, 0, 2*len(roots))
	for _, r := range roots {
		if r == "" {
			continue
		}
		out = append(out, fspath.Clean(r))
		if canonical, err := fspath.Canonical(r); err == nil && canonical != fspath.Clean(r) {
			out = append(out, canonical)
		}
	}
	return out
}
