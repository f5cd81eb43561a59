// SPDX-License-Identifier: MPL-2.0

// Package pipeline runs a build end to end: probe the interpreter, resolve
// the import graph, classify, collect, compile and archive, then write the
// manifest for the native builder.
package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pypack/pypack/internal/archive"
	"github.com/pypack/pypack/internal/classify"
	"github.com/pypack/pypack/internal/collect"
	"github.com/pypack/pypack/internal/dag"
	"github.com/pypack/pypack/internal/interp"
	"github.com/pypack/pypack/internal/issue"
	"github.com/pypack/pypack/internal/locator"
	"github.com/pypack/pypack/internal/manifest"
	"github.com/pypack/pypack/internal/pycompile"
	"github.com/pypack/pypack/internal/resolver"
	"github.com/pypack/pypack/internal/workspace"
	"github.com/pypack/pypack/pkg/pymod"
	"github.com/pypack/pypack/pkg/types"
)

// DefaultInterpreter is used when a Request names no interpreter.
const DefaultInterpreter = "python3"

// Stage names reported in Result.Timings.
const (
	StageProbe    = "probe"
	StageResolve  = "resolve"
	StageClassify = "classify"
	StageCollect  = "collect"
	StageCompile  = "compile"
	StageArchive  = "archive"
	StageManifest = "manifest"
)

var (
	// ErrEntryCompile is wrapped when the entry script fails to compile.
	ErrEntryCompile = errors.New("entry script failed to compile")
	// ErrArtifactWrite is wrapped when the main artifact or manifest cannot be written.
	ErrArtifactWrite = errors.New("artifact write failed")
)

type (
	// Request describes one build.
	Request struct {
		// Entry is the path of the script to package.
		Entry string
		// OutputName names the bundle; empty means the entry script's stem.
		OutputName string
		// OutputDir is recorded for the native builder.
		OutputDir string
		Include   []string
		Exclude   []string
		// Data holds "source[:destination]" resource specs.
		Data []string
		// Interpreter is the command line of the target interpreter.
		Interpreter string
		// SearchPaths are searched after the entry directory and before the
		// interpreter's sys.path.
		SearchPaths     []string
		WorkspaceRoot   string
		NamespacePolicy classify.NamespacePolicy
		MaxParentHops   int
		Logger          *slog.Logger
		Clock           workspace.Clock

		// Runtime, Locator, Compiler and SharedLibs replace the probed or
		// interpreter-backed defaults when set.
		Runtime    *interp.Runtime
		Locator    locator.Locator
		Compiler   pycompile.Compiler
		SharedLibs *collect.SharedLibFinder
	}

	// StageTiming is the wall time of one stage.
	StageTiming struct {
		Stage    string
		Duration time.Duration
	}

	// Analysis is the outcome of resolve and classify.
	Analysis struct {
		Runtime    *interp.Runtime
		Resolution *resolver.Result
		Partition  *pymod.Partition
		Timings    []StageTiming
	}

	// Result is the outcome of a full build.
	Result struct {
		Analysis
		OutputName   string
		Workspace    *workspace.Workspace
		MainArtifact string
		// Archives maps each written module archive's category to its
		// report. Categories without members are absent.
		Archives    map[archive.Category]*archive.Report
		DataArchive *archive.Report
		SharedLib   types.FilesystemPath
		Files       *collect.FileSet
		Manifest    string
		Warnings    int
	}

	run struct {
		req     Request
		log     *slog.Logger
		clock   workspace.Clock
		timings []StageTiming
	}
)

// Graph returns the import graph of the analysis.
func (a *Analysis) Graph() *dag.Graph { return a.Resolution.Graph }

// OutputNameFor returns the bundle name: name when set, else the stem of
// output, else the stem of the entry script.
func OutputNameFor(name, output, entry string) string {
	if name != "" {
		return name
	}
	for _, p := range []string{output, entry} {
		if p == "" {
			continue
		}
		base := filepath.Base(p)
		if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" && stem != "." {
			return stem
		}
	}
	return ""
}

// Analyze runs only the probe, resolve and classify stages.
func Analyze(ctx context.Context, req Request) (*Analysis, error) {
	r := newRun(req)
	return r.analyze(ctx)
}

// Build runs every stage. Fatal errors are returned as issue.ActionableError
// values; recoverable problems are logged and counted in Result.Warnings.
func Build(ctx context.Context, req Request) (*Result, error) {
	r := newRun(req)

	name := OutputNameFor(req.OutputName, "", req.Entry)
	if err := workspace.ValidateOutputName(name); err != nil {
		return nil, err
	}
	dataSpecs, err := collect.ParseDataSpecs(req.Data)
	if err != nil {
		return nil, err
	}

	analysis, err := r.analyze(ctx)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Analysis:   *analysis,
		OutputName: name,
		Archives:   make(map[archive.Category]*archive.Report),
	}
	res.Warnings = analysis.Resolution.Warnings

	collector := collect.New(r.log)
	r.stage(StageCollect, func() {
		res.Files = collector.Collect(analysis.Partition)
		res.Files.Data = collector.CollectData(dataSpecs)
		finder := req.SharedLibs
		if finder == nil {
			finder = collect.NewSharedLibFinder()
		}
		if lib, ok := finder.Find(analysis.Runtime); ok {
			res.Files.SharedLib = lib
			res.SharedLib = lib
		} else {
			r.log.Warn("interpreter shared library not found, the bundle may not start", "version", analysis.Runtime.Version.String())
			res.Warnings++
		}
	})
	res.Warnings += collector.Warnings()

	ws, err := workspace.New(req.WorkspaceRoot, name, r.clock)
	if err != nil {
		return nil, err
	}
	res.Workspace = ws
	r.log.Info("created build workspace", "dir", ws.Dir)

	compiler := req.Compiler
	if compiler == nil {
		ic, err := pycompile.NewInterpreterCompiler(ctx, r.interpreter())
		if err != nil {
			return nil, probeFailure(r.interpreter(), err)
		}
		defer func() {
			if closeErr := ic.Close(); closeErr != nil {
				r.log.Debug("compiler helper exited with error", "error", closeErr)
			}
		}()
		compiler = ic
	}
	magic, err := analysis.Runtime.Magic()
	if err != nil {
		return nil, probeFailure(r.interpreter(), err)
	}

	if err := r.stageErr(StageCompile, func() error {
		res.MainArtifact, err = compileEntry(ctx, compiler, magic, analysis.Resolution.Entry, ws)
		return err
	}); err != nil {
		return nil, err
	}

	builder := archive.NewBuilder(compiler, magic, r.log)
	if err := r.stageErr(StageArchive, func() error {
		for _, category := range archive.ModuleCategories() {
			class := classOf(category)
			report, err := builder.BuildCategory(ctx, ws.Dir, category, res.Files.Bucket(class))
			if err != nil {
				return err
			}
			if report != nil {
				res.Archives[category] = report
			}
		}
		report, err := builder.BuildData(ctx, ws.Dir, res.Files.Data)
		if err != nil {
			return err
		}
		res.DataArchive = report
		return nil
	}); err != nil {
		return nil, err
	}
	res.Warnings += builder.Warnings()

	if err := r.stageErr(StageManifest, func() error {
		res.Manifest = manifest.Path(ws.Dir)
		return writeManifest(res, req, dataSpecs, magic)
	}); err != nil {
		return nil, err
	}

	res.Timings = r.timings
	r.log.Info("build complete",
		"workspace", ws.Dir,
		"modules", analysis.Partition.Len(),
		"warnings", res.Warnings)
	return res, nil
}

func newRun(req Request) *run {
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}
	clock := req.Clock
	if clock == nil {
		clock = workspace.SystemClock()
	}
	return &run{req: req, log: log, clock: clock}
}

func (r *run) interpreter() string {
	if r.req.Interpreter == "" {
		return DefaultInterpreter
	}
	return r.req.Interpreter
}

func (r *run) analyze(ctx context.Context) (*Analysis, error) {
	req := r.req
	a := &Analysis{Runtime: req.Runtime}

	if a.Runtime == nil {
		if err := r.stageErr(StageProbe, func() error {
			rt, err := interp.Probe(ctx, r.interpreter())
			a.Runtime = rt
			return err
		}); err != nil {
			return nil, err
		}
		r.log.Debug("probed interpreter",
			"executable", a.Runtime.Executable,
			"version", a.Runtime.Version.String(),
			"magic", a.Runtime.MagicHex)
	}

	loc := req.Locator
	if loc == nil {
		loc = r.defaultLocator(a.Runtime)
	}

	if err := r.stageErr(StageResolve, func() error {
		res, err := resolver.Resolve(ctx, types.FilesystemPath(req.Entry), resolver.Options{
			Locator:       loc,
			Include:       moduleNames(req.Include),
			Exclude:       moduleNames(req.Exclude),
			MaxParentHops: req.MaxParentHops,
			Logger:        r.log,
		})
		a.Resolution = res
		return err
	}); err != nil {
		return nil, err
	}

	c, err := classify.ForRuntime(a.Runtime, a.Resolution.EntryRoot, req.NamespacePolicy, r.log)
	if err != nil {
		return nil, err
	}
	r.stage(StageClassify, func() {
		a.Partition = c.ClassifyAll(a.Resolution)
	})

	counts := a.Partition.Counts()
	r.log.Info("classified modules",
		"builtin", counts[pymod.ClassBuiltin],
		"stdlib", counts[pymod.ClassStdlib],
		"local", counts[pymod.ClassLocal],
		"third_party", counts[pymod.ClassThirdParty])

	a.Timings = r.timings
	return a, nil
}

// defaultLocator searches the entry directory first, as the interpreter
// does for a script, then the extra search paths, then sys.path.
func (r *run) defaultLocator(rt *interp.Runtime) locator.Locator {
	var paths []types.FilesystemPath
	if abs, err := filepath.Abs(r.req.Entry); err == nil {
		dir := filepath.Dir(abs)
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			dir = resolved
		}
		paths = append(paths, types.FilesystemPath(dir))
	}
	for _, p := range r.req.SearchPaths {
		if p != "" {
			paths = append(paths, types.FilesystemPath(p))
		}
	}
	paths = append(paths, rt.SearchPath()...)
	return locator.NewPathLocator(paths, rt.Builtins)
}

func (r *run) stage(name string, fn func()) {
	_ = r.stageErr(name, func() error { fn(); return nil })
}

func (r *run) stageErr(name string, fn func() error) error {
	start := r.clock.Now()
	err := fn()
	d := r.clock.Now().Sub(start)
	r.timings = append(r.timings, StageTiming{Stage: name, Duration: d})
	r.log.Debug("stage finished", "stage", name, "duration", d)
	return err
}

// compileEntry writes <workspace>/<stem>.pyc. Any failure is fatal.
func compileEntry(ctx context.Context, c pycompile.Compiler, magic []byte, entry types.FilesystemPath, ws *workspace.Workspace) (string, error) {
	src, err := os.ReadFile(string(entry))
	if err != nil {
		return "", entryFailure("read entry script", entry, resolver.ErrEntryUnreadable, err)
	}
	code, err := c.Compile(ctx, string(entry), src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", entryFailure("compile entry script", entry, ErrEntryCompile, err)
	}
	out := ws.Path(pycompile.CodeName(string(entry)))
	if err := pycompile.WriteArtifact(out, magic, code); err != nil {
		return "", issue.NewErrorContext().
			WithOperation("write main artifact").
			WithResource(out).
			WithSuggestion("Check free disk space and permissions of the workspace root").
			ForIssue(issue.ArtifactWriteFailedId).
			Wrap(fmt.Errorf("%w: %w", ErrArtifactWrite, err)).
			BuildError()
	}
	return out, nil
}

func writeManifest(res *Result, req Request, data []collect.DataSpec, magic []byte) error {
	m := &manifest.Manifest{
		OutputName:   res.OutputName,
		OutputDir:    req.OutputDir,
		Workspace:    res.Workspace.Dir,
		Entry:        string(res.Resolution.Entry),
		MainArtifact: res.MainArtifact,
		Archives:     make(map[archive.Category]archive.Report, len(res.Archives)+1),
		SharedLib:    string(res.SharedLib),
		Interpreter: manifest.Interpreter{
			Executable: res.Runtime.Executable,
			Version:    res.Runtime.Version.String(),
			Magic:      hex.EncodeToString(magic),
			Platform:   res.Runtime.Platform,
		},
		Modules:   make(map[string][]string, 4),
		Data:      data,
		Warnings:  res.Warnings,
		CreatedAt: res.Workspace.Created,
	}
	for category, report := range res.Archives {
		m.Archives[category] = *report
	}
	if res.DataArchive != nil {
		m.Archives[archive.CategoryData] = *res.DataArchive
	}
	for _, class := range pymod.AllClassifications() {
		names := res.Partition.Names(class)
		list := make([]string, len(names))
		for i, n := range names {
			list[i] = string(n)
		}
		m.Modules[class.String()] = list
	}

	if err := manifest.Write(res.Manifest, m); err != nil {
		return issue.NewErrorContext().
			WithOperation("write build manifest").
			WithResource(res.Manifest).
			WithSuggestion("Check free disk space and permissions of the workspace root").
			ForIssue(issue.ArtifactWriteFailedId).
			Wrap(fmt.Errorf("%w: %w", ErrArtifactWrite, err)).
			BuildError()
	}
	return nil
}

func entryFailure(op string, entry types.FilesystemPath, sentinel, err error) error {
	return issue.NewErrorContext().
		WithOperation(op).
		WithResource(string(entry)).
		WithSuggestion("Fix the error reported above and run the build again").
		ForIssue(issue.EntryScriptParseFailedId).
		Wrap(fmt.Errorf("%w: %w", sentinel, err)).
		BuildError()
}

func probeFailure(command string, err error) error {
	return issue.NewErrorContext().
		WithOperation("start Python compiler helper").
		WithResource(command).
		WithSuggestion("Check that the interpreter is installed and on your PATH").
		ForIssue(issue.InterpreterNotFoundId).
		Wrap(fmt.Errorf("%w: %w", interp.ErrProbe, err)).
		BuildError()
}

func classOf(c archive.Category) pymod.Classification {
	switch c {
	case archive.CategoryStdlib:
		return pymod.ClassStdlib
	case archive.CategoryThirdParty:
		return pymod.ClassThirdParty
	default:
		return pymod.ClassLocal
	}
}

func moduleNames(names []string) []pymod.ModuleName {
	out := make([]pymod.ModuleName, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, pymod.ModuleName(n))
		}
	}
	return out
}
