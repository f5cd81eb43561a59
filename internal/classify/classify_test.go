// SPDX-License-Identifier: MPL-2.0

package classify

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"

	"github.com/pypack/pypack/internal/interp"
	"github.com/pypack/pypack/internal/locator"
	"github.com/pypack/pypack/internal/resolver"
	"github.com/pypack/pypack/internal/testutil"
	"github.com/pypack/pypack/pkg/pymod"
	"github.com/pypack/pypack/pkg/types"
)

type layout struct {
	stdlib, site, entry, elsewhere types.FilesystemPath
}

// newLayout mimics a Debian-style install where site-packages sits inside
// the stdlib root.
func newLayout(t *testing.T) layout {
	t.Helper()
	base := t.TempDir()
	return layout{
		stdlib:    types.FilesystemPath(filepath.Join(base, "usr", "lib", "python3.12")),
		site:      types.FilesystemPath(filepath.Join(base, "usr", "lib", "python3.12", "site-packages")),
		entry:     types.FilesystemPath(filepath.Join(base, "home", "app")),
		elsewhere: types.FilesystemPath(filepath.Join(base, "opt", "vendor")),
	}
}

func (l layout) path(root types.FilesystemPath, rel string) types.FilesystemPath {
	return types.FilesystemPath(filepath.Join(string(root), filepath.FromSlash(rel)))
}

func newClassifier(t *testing.T, l layout, policy NamespacePolicy) *Classifier {
	t.Helper()
	c, err := New(Options{
		Builtins:    []string{"sys", "_io"},
		StdlibRoots: []types.FilesystemPath{l.stdlib},
		SiteRoots:   []types.FilesystemPath{l.site},
		EntryRoot:   l.entry,
		Policy:      policy,
		Logger:      slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestClassifier_Classify(t *testing.T) {
	t.Parallel()
	l := newLayout(t)
	c := newClassifier(t, l, PolicyLocation)

	tests := []struct {
		name       pymod.ModuleName
		origin     pymod.Origin
		found      bool
		wantClass  pymod.Classification
		wantReason pymod.Reason
	}{
		{"sys", pymod.Origin{Builtin: true}, true, pymod.ClassBuiltin, pymod.ReasonBuiltinName},
		// A builtin name wins even when a file with that name exists under stdlib.
		{"sys", pymod.Origin{File: l.path(l.stdlib, "sys.py")}, true, pymod.ClassBuiltin, pymod.ReasonBuiltinName},
		{"json", pymod.Origin{File: l.path(l.stdlib, "json/__init__.py"), SearchLocations: []types.FilesystemPath{l.path(l.stdlib, "json")}}, true, pymod.ClassStdlib, pymod.ReasonStdlibRoot},
		{"requests", pymod.Origin{File: l.path(l.site, "requests/__init__.py")}, true, pymod.ClassThirdParty, pymod.ReasonOutsideKnownRoots},
		{"app_lib", pymod.Origin{File: l.path(l.entry, "app_lib/__init__.py")}, true, pymod.ClassLocal, pymod.ReasonEntryTree},
		{"vendored", pymod.Origin{File: l.path(l.elsewhere, "vendored.py")}, true, pymod.ClassThirdParty, pymod.ReasonOutsideKnownRoots},
		{"not_installed", pymod.Origin{}, false, pymod.ClassThirdParty, pymod.ReasonUnresolved},
	}
	for _, tt := range tests {
		got := c.Classify(tt.name, tt.origin, tt.found)
		if got.Class != tt.wantClass || got.Reason != tt.wantReason {
			t.Errorf("Classify(%s, %s) = %s/%s, want %s/%s",
				tt.name, tt.origin.File, got.Class, got.Reason, tt.wantClass, tt.wantReason)
		}
		if got.Name != tt.name || got.Found != tt.found {
			t.Errorf("Classify(%s) did not carry name/found through: %+v", tt.name, got)
		}
	}
}

func TestClassifier_Namespace(t *testing.T) {
	t.Parallel()
	l := newLayout(t)

	ns := func(locs ...types.FilesystemPath) pymod.Origin { return pymod.Origin{SearchLocations: locs} }
	tests := []struct {
		policy     NamespacePolicy
		origin     pymod.Origin
		wantClass  pymod.Classification
		wantReason pymod.Reason
	}{
		{PolicyLocation, ns(l.path(l.stdlib, "ns")), pymod.ClassStdlib, pymod.ReasonNamespaceStdlibRoot},
		{PolicyLocation, ns(l.path(l.entry, "ns")), pymod.ClassLocal, pymod.ReasonNamespaceEntryTree},
		{PolicyLocation, ns(l.path(l.entry, "ns"), l.path(l.site, "ns")), pymod.ClassThirdParty, pymod.ReasonNamespaceSitePackages},
		{PolicyLocation, ns(l.path(l.site, "google")), pymod.ClassThirdParty, pymod.ReasonNamespaceSitePackages},
		{PolicyLocation, ns(l.path(l.elsewhere, "ns")), pymod.ClassStdlib, pymod.ReasonNamespaceConvention},
		{PolicyStdlib, ns(l.path(l.site, "google")), pymod.ClassStdlib, pymod.ReasonNamespaceConvention},
		{PolicyStdlib, ns(l.path(l.entry, "ns")), pymod.ClassStdlib, pymod.ReasonNamespaceConvention},
	}
	for _, tt := range tests {
		c := newClassifier(t, l, tt.policy)
		got := c.Classify("ns", tt.origin, true)
		if got.Class != tt.wantClass || got.Reason != tt.wantReason {
			t.Errorf("policy %s, locations %v: got %s/%s, want %s/%s",
				tt.policy, tt.origin.SearchLocations, got.Class, got.Reason, tt.wantClass, tt.wantReason)
		}
	}
}

func TestClassifier_ConventionFallbackWarns(t *testing.T) {
	t.Parallel()
	l := newLayout(t)
	logger, capture := testutil.NewCaptureLogger()
	c, err := New(Options{StdlibRoots: []types.FilesystemPath{l.stdlib}, EntryRoot: l.entry, Logger: logger})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	c.Classify("ns", pymod.Origin{SearchLocations: []types.FilesystemPath{l.path(l.elsewhere, "ns")}}, true)
	if capture.Count(slog.LevelWarn, "namespace package") != 1 {
		t.Error("expected a warning for the namespace convention fallback")
	}
}

func TestNew_RejectsInvalidPolicy(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Policy: "guess"})
	if !errors.Is(err, ErrInvalidNamespacePolicy) {
		t.Fatalf("New() error = %v, want ErrInvalidNamespacePolicy", err)
	}
	var perr *InvalidNamespacePolicyError
	if !errors.As(err, &perr) || perr.Value != "guess" {
		t.Errorf("error = %#v, want InvalidNamespacePolicyError{guess}", err)
	}
}

func TestForRuntime(t *testing.T) {
	t.Parallel()
	l := newLayout(t)
	rt := &interp.Runtime{
		Stdlib:   string(l.stdlib),
		Purelib:  string(l.site),
		Builtins: []string{"sys"},
	}
	c, err := ForRuntime(rt, l.entry, "", nil)
	if err != nil {
		t.Fatalf("ForRuntime() error = %v", err)
	}
	if got := c.Classify("requests", pymod.Origin{File: l.path(l.site, "requests/__init__.py")}, true); got.Class != pymod.ClassThirdParty {
		t.Errorf("site-packages module classified %s, want third-party", got.Class)
	}
	if got := c.Classify("sys", pymod.Origin{}, false); got.Class != pymod.ClassBuiltin {
		t.Errorf("builtin classified %s", got.Class)
	}
}

func TestClassifyAll_EndToEnd(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	entry := testutil.WriteTree(t, filepath.Join(base, "app"), map[string]string{
		"app.py":              "import sys\nimport json\nimport app_lib\nimport requests\nimport missing\n",
		"app_lib/__init__.py": "",
		"app_lib/helpers.py":  "",
	})
	stdlib := testutil.WriteTree(t, filepath.Join(base, "lib"), map[string]string{
		"json/__init__.py": "",
		"json/decoder.py":  "",
		"sys.py":           "",
	})
	site := testutil.WriteTree(t, filepath.Join(base, "lib", "site-packages"), map[string]string{
		"requests/__init__.py": "",
	})
	paths := []types.FilesystemPath{types.FilesystemPath(entry), types.FilesystemPath(stdlib), types.FilesystemPath(site)}
	res, err := resolver.Resolve(context.Background(), types.FilesystemPath(filepath.Join(entry, "app.py")), resolver.Options{
		Locator: locator.NewPathLocator(paths, []string{"sys"}),
		Logger:  slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	c, err := New(Options{
		Builtins:    []string{"sys"},
		StdlibRoots: []types.FilesystemPath{types.FilesystemPath(stdlib)},
		SiteRoots:   []types.FilesystemPath{types.FilesystemPath(site)},
		EntryRoot:   res.EntryRoot,
		Logger:      slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	part := c.ClassifyAll(res)

	want := map[pymod.Classification][]pymod.ModuleName{
		pymod.ClassBuiltin:    {"sys"},
		pymod.ClassStdlib:     {"json", "json.decoder"},
		pymod.ClassLocal:      {"app_lib", "app_lib.helpers"},
		pymod.ClassThirdParty: {"missing", "requests"},
	}
	for class, names := range want {
		if got := part.Names(class); !slices.Equal(got, names) {
			t.Errorf("Names(%s) = %v, want %v", class, got, names)
		}
	}
	if part.Len() != res.Deps.Len() {
		t.Errorf("partition has %d entries, dependency set %d", part.Len(), res.Deps.Len())
	}
}
