// SPDX-License-Identifier: MPL-2.0

// Package resolver walks the static import graph of a Python program.
//
// Starting from the entry script, every file inside the entry script's
// directory tree is parsed once and its imports are added to a flat
// DependencySet. Modules found outside the entry tree are recorded with
// their origin but never opened. Classification happens afterwards.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pypack/pypack/internal/dag"
	"github.com/pypack/pypack/internal/issue"
	"github.com/pypack/pypack/internal/locator"
	"github.com/pypack/pypack/internal/pysource"
	"github.com/pypack/pypack/pkg/fspath"
	"github.com/pypack/pypack/pkg/pymod"
	"github.com/pypack/pypack/pkg/types"
)

// EntryModule is the graph node of the entry script.
const EntryModule pymod.ModuleName = "__main__"

var (
	// ErrEntryUnreadable is wrapped when the entry script cannot be read.
	ErrEntryUnreadable = errors.New("entry script is unreadable")
	// ErrEntryParse is wrapped when the entry script does not parse.
	ErrEntryParse = errors.New("entry script failed to parse")
	// ErrNoLocator is returned when Options carries no Locator.
	ErrNoLocator = errors.New("resolver requires a locator")
)

type (
	// Options configures a resolution run.
	Options struct {
		// Locator resolves names against the interpreter's search path.
		Locator locator.Locator
		// Include names are added after the walk.
		Include []pymod.ModuleName
		// Exclude names are removed last, together with their dotted
		// members, and always win over Include.
		Exclude []pymod.ModuleName
		// MaxParentHops bounds the sibling search. Zero means
		// locator.DefaultMaxParentHops.
		MaxParentHops int
		// Logger receives progress and warnings. Nil means slog.Default().
		Logger *slog.Logger
	}

	// Resolution is the cached lookup outcome of one module name.
	Resolution struct {
		Origin pymod.Origin
		Found  bool
		// Sibling is true when the origin came from the upward sibling
		// search rather than the locator.
		Sibling bool
	}

	// Result is the outcome of one resolution run.
	Result struct {
		// Entry is the canonical path of the entry script.
		Entry types.FilesystemPath
		// EntryRoot is the directory containing Entry. Files under it are local.
		EntryRoot types.FilesystemPath
		Deps      *pymod.DependencySet
		Origins   map[pymod.ModuleName]Resolution
		Graph     *dag.Graph
		Visited   *pymod.VisitedFiles
		// Warnings counts recoverable problems logged during the run.
		Warnings int
	}

	target struct {
		name   pymod.ModuleName
		origin pymod.Origin
	}

	siblingKey struct {
		dir  types.FilesystemPath
		name pymod.ModuleName
	}

	resolver struct {
		opts     Options
		log      *slog.Logger
		parser   *pysource.Parser
		result   *Result
		located  map[pymod.ModuleName]Resolution
		siblings map[siblingKey]Resolution
	}
)

// Lookup returns the recorded origin of name.
func (r *Result) Lookup(name pymod.ModuleName) (pymod.Origin, bool) {
	res, ok := r.Origins[name]
	if !ok || !res.Found {
		return pymod.Origin{}, false
	}
	return res.Origin, true
}

// IsLocal reports whether path lies inside the entry script's directory tree.
func (r *Result) IsLocal(path types.FilesystemPath) bool {
	return path != "" && fspath.Within(r.EntryRoot, path)
}

// Resolve walks the import graph rooted at entry. Failures to read or parse
// the entry script are fatal; the same failures in any other file are logged
// and that file is skipped.
func Resolve(ctx context.Context, entry types.FilesystemPath, opts Options) (*Result, error) {
	if opts.Locator == nil {
		return nil, ErrNoLocator
	}
	if opts.MaxParentHops <= 0 {
		opts.MaxParentHops = locator.DefaultMaxParentHops
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	canonical, err := fspath.Canonical(entry)
	if err != nil {
		return nil, entryReadError(entry, err)
	}

	r := &resolver{
		opts:     opts,
		log:      log,
		parser:   pysource.NewParser(),
		located:  make(map[pymod.ModuleName]Resolution),
		siblings: make(map[siblingKey]Resolution),
		result: &Result{
			Entry:     canonical,
			EntryRoot: fspath.Dir(canonical),
			Deps:      pymod.NewDependencySet(),
			Origins:   make(map[pymod.ModuleName]Resolution),
			Graph:     dag.New(),
			Visited:   pymod.NewVisitedFiles(),
		},
	}
	defer r.parser.Close()

	r.result.Graph.AddNode(string(EntryModule))
	if err := r.visit(ctx, canonical, EntryModule, true); err != nil {
		return nil, err
	}

	r.applyIncludes(ctx)
	r.applyExcludes()

	log.Debug("import graph resolved",
		"entry", canonical,
		"modules", r.result.Deps.Len(),
		"files", r.result.Visited.Len())
	return r.result, nil
}

// visit parses file once and follows its imports. module names the graph
// node the file's imports originate from.
func (r *resolver) visit(ctx context.Context, file types.FilesystemPath, module pymod.ModuleName, entry bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	canonical, err := fspath.Canonical(file)
	if err != nil {
		canonical = fspath.Clean(file)
	}
	if !r.result.Visited.Mark(canonical) {
		return nil
	}
	r.log.Debug("analyzing file", "file", canonical, "module", module)

	src, err := pysource.ReadFile(string(canonical))
	if err != nil {
		if entry {
			return entryReadError(canonical, err)
		}
		r.warn("could not read module file", "file", canonical, "error", err)
		return nil
	}
	if src.Encoding != pysource.EncodingUTF8 {
		r.log.Debug("decoded source with fallback encoding", "file", canonical, "encoding", src.Encoding)
	}

	imports, err := r.parser.Imports(ctx, string(canonical), src.Text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry {
			return entryParseError(canonical, err)
		}
		r.warn("syntax error in module file", "file", canonical, "error", err)
		return nil
	}

	dir := fspath.Dir(canonical)
	var follow []target
	for _, imp := range imports {
		if imp.Module.IsCurrentPackage() {
			r.log.Debug("skipping current-package import", "file", canonical, "line", imp.Line)
			continue
		}
		r.result.Deps.Add(imp.Module)
		r.result.Graph.AddEdge(string(module), string(imp.Module))

		res := r.lookup(imp.Module, dir)
		if !res.Found {
			continue
		}
		follow = append(follow, target{name: imp.Module, origin: res.Origin})
		follow = append(follow, r.addMembers(imp.Module, res.Origin)...)
	}
	return r.follow(ctx, follow)
}

// follow visits the local targets in order.
func (r *resolver) follow(ctx context.Context, targets []target) error {
	for _, t := range targets {
		if !t.origin.HasFile() || !r.result.IsLocal(t.origin.File) {
			continue
		}
		if err := r.visit(ctx, t.origin.File, t.name, false); err != nil {
			return err
		}
	}
	return nil
}

// lookup resolves name against the locator once per run. Locator misses
// fall back to the sibling search, which depends on the importing
// directory and is cached per (dir, name). Origins keeps the first hit.
func (r *resolver) lookup(name pymod.ModuleName, dir types.FilesystemPath) Resolution {
	located, tried := r.located[name]
	if !tried {
		if origin, ok := r.opts.Locator.Resolve(name); ok {
			located = Resolution{Origin: origin, Found: true}
		}
		r.located[name] = located
	}
	if located.Found {
		r.record(name, located)
		return located
	}

	key := siblingKey{dir: dir, name: name}
	if res, ok := r.siblings[key]; ok {
		return res
	}
	var res Resolution
	if origin, ok := locator.FindSibling(name, dir, r.opts.MaxParentHops); ok {
		res = Resolution{Origin: origin, Found: true, Sibling: true}
		r.log.Debug("module found by sibling search",
			"module", name,
			"dir", dir,
			"file", origin.File,
			"local", r.result.IsLocal(origin.File))
	} else if _, seen := r.result.Origins[name]; !seen {
		r.warn("module not found", "module", name)
	}
	r.siblings[key] = res
	r.record(name, res)
	return res
}

// record stores res under name unless a hit is already recorded.
func (r *resolver) record(name pymod.ModuleName, res Resolution) {
	if prev, ok := r.result.Origins[name]; ok && (prev.Found || !res.Found) {
		return
	}
	r.result.Origins[name] = res
}

// addMembers records the immediate submodules of a package and returns
// them as walk targets.
func (r *resolver) addMembers(pkg pymod.ModuleName, origin pymod.Origin) []target {
	if !origin.IsPackage() {
		return nil
	}
	members := locator.Members(pkg, origin)
	out := make([]target, 0, len(members))
	for _, m := range members {
		r.result.Deps.Add(m.Name)
		r.result.Graph.AddEdge(string(pkg), string(m.Name))
		memberOrigin := pymod.Origin{File: m.File}
		if _, seen := r.result.Origins[m.Name]; !seen {
			r.result.Origins[m.Name] = Resolution{Origin: memberOrigin, Found: true}
		}
		out = append(out, target{name: m.Name, origin: memberOrigin})
	}
	return out
}

func (r *resolver) applyIncludes(ctx context.Context) {
	for _, name := range r.opts.Include {
		if err := name.Validate(); err != nil {
			r.warn("ignoring invalid include", "module", name, "error", err)
			continue
		}
		r.result.Deps.Add(name)
		r.result.Graph.AddNode(string(name))
		res := r.lookup(name, r.result.EntryRoot)
		if !res.Found {
			continue
		}
		// Local includes are walked like imports so their own imports count.
		targets := append([]target{{name: name, origin: res.Origin}}, r.addMembers(name, res.Origin)...)
		if err := r.follow(ctx, targets); err != nil {
			r.warn("stopped walking included module", "module", name, "error", err)
			return
		}
	}
}

func (r *resolver) applyExcludes() {
	for _, name := range r.opts.Exclude {
		if n := r.result.Deps.RemoveTree(name); n > 0 {
			r.log.Debug("excluded module", "module", name, "removed", n)
		}
	}
}

func (r *resolver) warn(msg string, args ...any) {
	r.result.Warnings++
	r.log.Warn(msg, args...)
}

func entryReadError(path types.FilesystemPath, err error) error {
	return issue.NewErrorContext().
		WithOperation("read entry script").
		WithResource(string(path)).
		WithSuggestion("Check that the path passed to pypack build exists and is readable").
		ForIssue(issue.EntryScriptNotFoundId).
		Wrap(fmt.Errorf("%w: %w", ErrEntryUnreadable, err)).
		BuildError()
}

func entryParseError(path types.FilesystemPath, err error) error {
	return issue.NewErrorContext().
		WithOperation("parse entry script").
		WithResource(string(path)).
		WithSuggestion("Fix the syntax error reported above and run the build again").
		WithSuggestion("Make sure --python points at the interpreter version the script targets").
		ForIssue(issue.EntryScriptParseFailedId).
		Wrap(fmt.Errorf("%w: %w", ErrEntryParse, err)).
		BuildError()
}
