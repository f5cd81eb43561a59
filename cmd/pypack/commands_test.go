// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/pypack/pypack/internal/archive"
	"github.com/pypack/pypack/internal/collect"
	"github.com/pypack/pypack/internal/config"
	"github.com/pypack/pypack/internal/dag"
	"github.com/pypack/pypack/internal/issue"
	"github.com/pypack/pypack/internal/manifest"
	"github.com/pypack/pypack/internal/pipeline"
	"github.com/pypack/pypack/internal/pycompile"
	"github.com/pypack/pypack/internal/resolver"
	"github.com/pypack/pypack/internal/testutil"
	"github.com/pypack/pypack/internal/workspace"
	"github.com/pypack/pypack/pkg/pymod"
	"github.com/pypack/pypack/pkg/types"
)

var testMagic = []byte{0xcb, 0x0d, 0x0d, 0x0a}

type (
	// fakeConfig returns the defaults and records what it was asked for.
	fakeConfig struct {
		opts config.LoadOptions
		err  error
	}

	fakeBuilder struct {
		req      pipeline.Request
		analysis *pipeline.Analysis
		result   *pipeline.Result
		err      error
	}
)

func (f *fakeConfig) Load(_ context.Context, opts config.LoadOptions) (*config.Loaded, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &config.Loaded{Config: config.DefaultConfig()}, nil
}

func (f *fakeBuilder) Build(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.req = req
	return f.result, f.err
}

func (f *fakeBuilder) Analyze(_ context.Context, req pipeline.Request) (*pipeline.Analysis, error) {
	f.req = req
	return f.analysis, f.err
}

// runCLI executes args against app and returns stdout.
func runCLI(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	app.stdout = &stdout
	app.stderr = io.Discard
	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func sampleAnalysis() *pipeline.Analysis {
	g := dag.New()
	g.AddNode(string(resolver.EntryModule))
	g.AddEdge("__main__", "app_lib")
	g.AddEdge("__main__", "json")
	g.AddEdge("app_lib", "app_lib.util")
	g.AddEdge("app_lib", "requests")
	g.AddEdge("app_lib.util", "sys")

	p := pymod.NewPartition()
	p.Set(pymod.Classified{Name: "sys", Class: pymod.ClassBuiltin, Reason: pymod.ReasonBuiltinName, Origin: pymod.Origin{Builtin: true}, Found: true})
	p.Set(pymod.Classified{Name: "json", Class: pymod.ClassStdlib, Reason: pymod.ReasonStdlibRoot, Origin: pymod.Origin{File: "/usr/lib/python3.12/json/__init__.py"}, Found: true})
	p.Set(pymod.Classified{Name: "app_lib", Class: pymod.ClassLocal, Reason: pymod.ReasonEntryTree, Origin: pymod.Origin{File: "/src/app_lib/__init__.py"}, Found: true})
	p.Set(pymod.Classified{Name: "app_lib.util", Class: pymod.ClassLocal, Reason: pymod.ReasonEntryTree, Origin: pymod.Origin{File: "/src/app_lib/util.py"}, Found: true})
	p.Set(pymod.Classified{Name: "requests", Class: pymod.ClassThirdParty, Reason: pymod.ReasonUnresolved})

	return &pipeline.Analysis{
		Resolution: &resolver.Result{Graph: g},
		Partition:  p,
	}
}

func TestBuildCommand_FlagsBecomeOverrides(t *testing.T) {
	t.Parallel()

	cfg := &fakeConfig{}
	analysis := sampleAnalysis()
	builder := &fakeBuilder{result: &pipeline.Result{
		Analysis:     *analysis,
		OutputName:   "tool",
		Workspace:    &workspace.Workspace{Dir: "/tmp/build_tool_x"},
		MainArtifact: "/tmp/build_tool_x/tool.pyc",
		Manifest:     "/tmp/build_tool_x/manifest.mp",
		Archives: map[archive.Category]*archive.Report{
			archive.CategoryLocal: {Category: archive.CategoryLocal, Path: "/tmp/build_tool_x/local_modules.zip", Entries: make([]archive.Entry, 2)},
		},
		Warnings: 1,
	}}
	app := NewApp(Dependencies{Config: cfg, Builder: builder})

	out, err := runCLI(t, app, "build", "app.py",
		"--name", "tool", "--python", "python3.12",
		"--include", "zlib", "--include", "csv",
		"--max-parent-hops", "3", "--output", "dist/tool.exe")
	if err != nil {
		t.Fatalf("build error = %v", err)
	}

	want := map[string]any{
		"interpreter":     "python3.12",
		"include":         []string{"zlib", "csv"},
		"max_parent_hops": 3,
		"output_dir":      "dist",
	}
	if len(cfg.opts.Overrides) != len(want) {
		t.Errorf("Overrides = %v, want %v", cfg.opts.Overrides, want)
	}
	for k, v := range want {
		got := cfg.opts.Overrides[k]
		if list, ok := v.([]string); ok {
			if gotList, _ := got.([]string); !slices.Equal(gotList, list) {
				t.Errorf("Overrides[%s] = %v, want %v", k, got, v)
			}
			continue
		}
		if got != v {
			t.Errorf("Overrides[%s] = %v, want %v", k, got, v)
		}
	}

	if builder.req.Entry != "app.py" || builder.req.OutputName != "tool" || builder.req.Logger == nil {
		t.Errorf("request = %+v", builder.req)
	}
	for _, token := range []string{"Built tool", "local_modules.zip", "/tmp/build_tool_x/manifest.mp", "third-party", "1 warning"} {
		if !strings.Contains(out, token) {
			t.Errorf("summary missing %q:\n%s", token, out)
		}
	}
}

func TestBuildCommand_OutputNameFromOutputFlag(t *testing.T) {
	t.Parallel()

	builder := &fakeBuilder{err: errors.New("stop")}
	app := NewApp(Dependencies{Config: &fakeConfig{}, Builder: builder})
	_, _ = runCLI(t, app, "build", "src/app.py", "-o", "dist/mytool")

	if builder.req.OutputName != "mytool" {
		t.Errorf("OutputName = %q, want mytool", builder.req.OutputName)
	}
}

func TestBuildCommand_FailureIsClassified(t *testing.T) {
	t.Parallel()

	builder := &fakeBuilder{err: errors.Join(errors.New("open app.py"), resolver.ErrEntryUnreadable)}
	app := NewApp(Dependencies{Config: &fakeConfig{}, Builder: builder})
	_, err := runCLI(t, app, "build", "app.py")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitFailure {
		t.Fatalf("error = %v, want ExitError with ExitFailure", err)
	}
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.IssueID != issue.EntryScriptNotFoundId {
		t.Errorf("error = %#v, want EntryScriptNotFound service error", err)
	}
}

func TestCommands_ConfigErrorStopsBeforePipeline(t *testing.T) {
	t.Parallel()

	for _, cmd := range []string{"build", "deps", "graph"} {
		t.Run(cmd, func(t *testing.T) {
			t.Parallel()

			builder := &fakeBuilder{}
			app := NewApp(Dependencies{Config: &fakeConfig{err: config.ErrLoad}, Builder: builder})
			_, err := runCLI(t, app, cmd, "app.py")

			var svcErr *ServiceError
			if !errors.As(err, &svcErr) || svcErr.IssueID != issue.ConfigLoadFailedId {
				t.Errorf("error = %v, want ConfigLoadFailed", err)
			}
			if builder.req.Entry != "" {
				t.Error("pipeline ran despite the config error")
			}
		})
	}
}

func TestCommands_UsageErrors(t *testing.T) {
	t.Parallel()

	tests := [][]string{
		{"build"},
		{"deps", "a.py", "b.py"},
		{"build", "app.py", "--max-parent-hops", "many"},
		{"inspect"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			t.Parallel()

			app := NewApp(Dependencies{Config: &fakeConfig{}, Builder: &fakeBuilder{}})
			_, err := runCLI(t, app, args...)
			if err == nil {
				t.Fatal("expected a usage error")
			}
			if code := exitCodeFor(err); code != types.ExitUsage {
				t.Errorf("exitCodeFor() = %d, want ExitUsage", code)
			}
		})
	}
}

func TestDepsCommand(t *testing.T) {
	t.Parallel()

	cfg := &fakeConfig{}
	app := NewApp(Dependencies{Config: cfg, Builder: &fakeBuilder{analysis: sampleAnalysis()}})
	out, err := runCLI(t, app, "deps", "app.py", "--order", "--namespace-policy", "stdlib")
	if err != nil {
		t.Fatalf("deps error = %v", err)
	}
	if cfg.opts.Overrides["namespace_policy"] != "stdlib" {
		t.Errorf("Overrides = %v", cfg.opts.Overrides)
	}

	for _, token := range []string{
		"builtin (1)", "stdlib (1)", "local (2)", "third-party (1)",
		"/usr/lib/python3.12/json/__init__.py", "built-in", "not found", "[unresolved]",
	} {
		if !strings.Contains(out, token) {
			t.Errorf("output missing %q:\n%s", token, out)
		}
	}

	orderAt := strings.Index(out, "dependency order")
	if orderAt < 0 {
		t.Fatalf("missing dependency order section:\n%s", out)
	}
	order := out[orderAt:]
	util, pkg := strings.Index(order, "app_lib.util"), strings.Index(order, "app_lib\n")
	if util < 0 || pkg < 0 || util > pkg {
		t.Errorf("app_lib.util must precede app_lib:\n%s", order)
	}
}

func TestRenderLocalOrder_Cycle(t *testing.T) {
	t.Parallel()

	analysis := sampleAnalysis()
	analysis.Graph().AddEdge("app_lib.util", "app_lib")

	var buf bytes.Buffer
	renderLocalOrder(&buf, analysis)
	if !strings.Contains(buf.String(), "cycle among: app_lib, app_lib.util") {
		t.Errorf("output = %q, want a cycle report", buf.String())
	}
}

func TestWriteDOT(t *testing.T) {
	t.Parallel()

	analysis := sampleAnalysis()
	var buf bytes.Buffer
	if err := writeDOT(&buf, analysis.Graph(), analysis.Partition); err != nil {
		t.Fatalf("writeDOT() error = %v", err)
	}
	out := buf.String()

	for _, line := range []string{
		"digraph imports {",
		`"__main__" [shape=box, fillcolor="#FFFFFF"];`,
		`"json" [fillcolor="#DBEAFE", tooltip="stdlib"];`,
		`"requests" [fillcolor="#FEF3C7", tooltip="third-party"];`,
		`"__main__" -> "app_lib";`,
		`"app_lib" -> "app_lib.util";`,
	} {
		if !strings.Contains(out, line) {
			t.Errorf("DOT missing %q:\n%s", line, out)
		}
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Errorf("DOT not closed:\n%s", out)
	}
}

func TestGraphCommand(t *testing.T) {
	t.Parallel()

	app := NewApp(Dependencies{Config: &fakeConfig{}, Builder: &fakeBuilder{analysis: sampleAnalysis()}})
	out, err := runCLI(t, app, "graph", "app.py")
	if err != nil {
		t.Fatalf("graph error = %v", err)
	}
	if !strings.HasPrefix(out, "digraph imports {") {
		t.Errorf("output = %q", out)
	}
}

// writeWorkspace lays out a finished build with one local archive.
func writeWorkspace(t *testing.T, manifestMagic string) string {
	t.Helper()
	dir := t.TempDir()
	src := testutil.WriteTree(t, t.TempDir(), map[string]string{
		"helpers.py": "x = 1\n",
		"conf.json":  "{}",
	})

	main := filepath.Join(dir, "tool.pyc")
	if err := pycompile.WriteArtifact(main, testMagic, []byte("code")); err != nil {
		t.Fatal(err)
	}

	compiler := pycompile.CompilerFunc(func(_ context.Context, _ string, src []byte) ([]byte, error) {
		return src, nil
	})
	b := archive.NewBuilder(compiler, testMagic, slog.New(slog.DiscardHandler))
	report, err := b.BuildCategory(context.Background(), dir, archive.CategoryLocal, []collect.File{
		{Path: types.FilesystemPath(filepath.Join(src, "helpers.py"))},
		{Path: types.FilesystemPath(filepath.Join(src, "conf.json"))},
	})
	if err != nil {
		t.Fatal(err)
	}

	m := &manifest.Manifest{
		OutputName:   "tool",
		Workspace:    dir,
		Entry:        "/src/tool.py",
		MainArtifact: main,
		Archives:     map[archive.Category]archive.Report{archive.CategoryLocal: *report},
		Interpreter:  manifest.Interpreter{Executable: "/usr/bin/python3", Version: "3.12.4", Magic: manifestMagic, Platform: "linux"},
		Modules:      map[string][]string{"local": {"helpers"}, "builtin": {"sys"}},
		CreatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := manifest.Write(manifest.Path(dir), m); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestInspectCommand(t *testing.T) {
	t.Parallel()

	dir := writeWorkspace(t, "cb0d0d0a")
	app := NewApp(Dependencies{Config: &fakeConfig{}, Builder: &fakeBuilder{}})

	t.Run("workspace dir", func(t *testing.T) {
		t.Parallel()
		out, err := runCLI(t, app, "inspect", dir)
		if err != nil {
			t.Fatalf("inspect error = %v", err)
		}
		for _, token := range []string{"tool", "3.12.4", "cb0d0d0a", "local_modules.zip", "helpers"} {
			if !strings.Contains(out, token) {
				t.Errorf("output missing %q:\n%s", token, out)
			}
		}
	})

	t.Run("manifest file with entries", func(t *testing.T) {
		t.Parallel()
		app := NewApp(Dependencies{Config: &fakeConfig{}, Builder: &fakeBuilder{}})
		out, err := runCLI(t, app, "inspect", manifest.Path(dir), "--entries")
		if err != nil {
			t.Fatalf("inspect --entries error = %v", err)
		}
		for _, token := range []string{"helpers.pyc  ok", "conf.json", "tool.pyc  ok"} {
			if !strings.Contains(out, token) {
				t.Errorf("output missing %q:\n%s", token, out)
			}
		}
	})
}

func TestInspectCommand_MagicMismatch(t *testing.T) {
	t.Parallel()

	dir := writeWorkspace(t, "a70d0d0a")
	app := NewApp(Dependencies{Config: &fakeConfig{}, Builder: &fakeBuilder{}})
	out, err := runCLI(t, app, "inspect", dir, "--entries")
	if !errors.Is(err, errBadArtifacts) {
		t.Fatalf("error = %v, want errBadArtifacts", err)
	}
	if !strings.Contains(out, "magic cb0d0d0a, want a70d0d0a") {
		t.Errorf("output = %s", out)
	}
}

func TestInspectCommand_MissingManifest(t *testing.T) {
	t.Parallel()

	app := NewApp(Dependencies{Config: &fakeConfig{}, Builder: &fakeBuilder{}})
	_, err := runCLI(t, app, "inspect", t.TempDir())

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.IssueID != issue.ManifestReadFailedId {
		t.Errorf("error = %v, want ManifestReadFailed", err)
	}
}

func TestConfigShow_RealProvider(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "custom.cue")
	testutil.MustWriteFile(t, path, []byte("interpreter: \"python3.11\"\ninclude: [\"zlib\"]\n"))

	app := NewApp(Dependencies{Builder: &fakeBuilder{}})
	out, err := runCLI(t, app, "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, token := range []string{path, `interpreter: "python3.11"`, `"zlib"`} {
		if !strings.Contains(out, token) {
			t.Errorf("output missing %q:\n%s", token, out)
		}
	}
}

func TestConfigInit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	app := NewApp(Dependencies{Config: &fakeConfig{}, Builder: &fakeBuilder{}})

	out, err := runCLI(t, app, "config", "init", "--dir", dir)
	if err != nil || !strings.Contains(out, "created") {
		t.Fatalf("config init = %q, %v", out, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.cue")); err != nil {
		t.Fatalf("config.cue not written: %v", err)
	}

	out, err = runCLI(t, app, "config", "init", "--dir", dir)
	if err != nil || !strings.Contains(out, "exists") {
		t.Errorf("second config init = %q, %v", out, err)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	app := NewApp(Dependencies{Config: &fakeConfig{}, Builder: &fakeBuilder{}})
	out, err := runCLI(t, app, "version")
	if err != nil || !strings.HasPrefix(out, "pypack ") {
		t.Errorf("version = %q, %v", out, err)
	}
}
