// SPDX-License-Identifier: MPL-2.0

package fspath_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/pypack/pypack/pkg/fspath"
	"github.com/pypack/pypack/pkg/platform"
	"github.com/pypack/pypack/pkg/types"
)

func TestJoin(t *testing.T) {
	t.Parallel()

	got := fspath.Join(types.FilesystemPath("srv"), types.FilesystemPath("app"))
	want := types.FilesystemPath(filepath.Join("srv", "app"))
	if got != want {
		t.Errorf("Join() = %q, want %q", got, want)
	}
}

func TestJoinStr_MultipleSegments(t *testing.T) {
	t.Parallel()

	got := fspath.JoinStr(types.FilesystemPath("site-packages"), "requests", "__init__.py")
	want := types.FilesystemPath(filepath.Join("site-packages", "requests", "__init__.py"))
	if got != want {
		t.Errorf("JoinStr() = %q, want %q", got, want)
	}
}

func TestDir(t *testing.T) {
	t.Parallel()

	got := fspath.Dir(types.FilesystemPath("app/lib/helpers.py"))
	want := types.FilesystemPath(filepath.Dir("app/lib/helpers.py"))
	if got != want {
		t.Errorf("Dir() = %q, want %q", got, want)
	}
}

func TestAbs(t *testing.T) {
	t.Parallel()

	got, err := fspath.Abs(types.FilesystemPath("app.py"))
	if err != nil {
		t.Fatalf("Abs() error = %v", err)
	}
	if !fspath.IsAbs(got) {
		t.Errorf("Abs() = %q, want absolute path", got)
	}
}

func TestWithin(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == platform.Windows {
		t.Skip("POSIX path fixtures")
	}

	tests := []struct {
		name string
		root types.FilesystemPath
		path types.FilesystemPath
		want bool
	}{
		{"same path", "/usr/lib/python3.12", "/usr/lib/python3.12", true},
		{"direct child", "/usr/lib/python3.12", "/usr/lib/python3.12/os.py", true},
		{"nested child", "/usr/lib/python3.12", "/usr/lib/python3.12/site-packages/six.py", true},
		{"sibling with shared prefix", "/usr/lib/python3.12", "/usr/lib/python3.12-extra/x.py", false},
		{"parent", "/usr/lib/python3.12", "/usr/lib", false},
		{"unclean child", "/srv/app/", "/srv/app/./lib/../main.py", true},
		{"empty root", "", "/srv/app/main.py", false},
		{"empty path", "/srv/app", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := fspath.Within(tt.root, tt.path); got != tt.want {
				t.Errorf("Within(%q, %q) = %v, want %v", tt.root, tt.path, got, tt.want)
			}
		})
	}
}

func TestWithinAny(t *testing.T) {
	t.Parallel()

	dir := types.FilesystemPath(t.TempDir())
	roots := []types.FilesystemPath{fspath.JoinStr(dir, "a"), fspath.JoinStr(dir, "b")}
	if !fspath.WithinAny(roots, fspath.JoinStr(dir, "b", "x.py")) {
		t.Error("WithinAny() = false for path under second root")
	}
	if fspath.WithinAny(roots, fspath.JoinStr(dir, "c", "x.py")) {
		t.Error("WithinAny() = true for path outside all roots")
	}
	if fspath.WithinAny(nil, fspath.JoinStr(dir, "a")) {
		t.Error("WithinAny(nil) = true")
	}
}

func TestCanonical_ResolvesSymlinks(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == platform.Windows {
		t.Skip("symlinks require privileges on Windows")
	}

	dir := t.TempDir()
	real := filepath.Join(dir, "real.py")
	if err := os.WriteFile(real, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.py")
	if err := os.Symlink(real, link); err != nil {
		t.Fatal(err)
	}

	gotLink, err := fspath.Canonical(types.FilesystemPath(link))
	if err != nil {
		t.Fatalf("Canonical(link) error = %v", err)
	}
	gotReal, err := fspath.Canonical(types.FilesystemPath(real))
	if err != nil {
		t.Fatalf("Canonical(real) error = %v", err)
	}
	if gotLink != gotReal {
		t.Errorf("Canonical(link) = %q, Canonical(real) = %q, want equal", gotLink, gotReal)
	}
}

func TestCanonical_MissingPathFallsBackToAbs(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope", "..", "gone.py")
	got, err := fspath.Canonical(types.FilesystemPath(missing))
	if err != nil {
		t.Fatalf("Canonical() error = %v", err)
	}
	if want := types.FilesystemPath(filepath.Clean(missing)); got != want {
		t.Errorf("Canonical() = %q, want %q", got, want)
	}
}
