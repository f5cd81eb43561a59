// SPDX-License-Identifier: MPL-2.0

package collect

import (
	"os"
	"path/filepath"
	goruntime "runtime"
	"slices"

	"github.com/pypack/pypack/internal/interp"
	"github.com/pypack/pypack/pkg/platform"
	"github.com/pypack/pypack/pkg/types"
)

type (
	// SharedLibFinder locates the interpreter's shared library from an
	// ordered, platform-keyed candidate list. The first existing path wins.
	SharedLibFinder struct {
		GOOS   string
		Exists func(path string) bool
		Glob   func(pattern string) ([]string, error)
	}

	// Candidates lists the exact paths to probe, then the glob patterns
	// tried when none of them exist.
	Candidates struct {
		Paths []string
		Globs []string
	}
)

// NewSharedLibFinder returns a finder for the host platform.
func NewSharedLibFinder() *SharedLibFinder {
	return &SharedLibFinder{
		GOOS: goruntime.GOOS,
		Exists: func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && !info.IsDir()
		},
		Glob: filepath.Glob,
	}
}

// Candidates returns the candidate list for rt on f.GOOS.
func (f *SharedLibFinder) Candidates(rt *interp.Runtime) Candidates {
	v := rt.Version
	stdlibLib := ""
	if rt.Stdlib != "" {
		stdlibLib = filepath.Join(rt.Stdlib, "..", "lib")
	}

	var c Candidates
	switch f.GOOS {
	case platform.Windows:
		name := "python" + v.NoDot() + ".dll"
		exeDir := string(rt.ExecutableDir())
		c.Paths = joinAll(name,
			exeDir,
			joinIf(exeDir, "DLLs"),
			rt.Stdlib,
		)
	case platform.Darwin:
		name := "libpython" + v.Short() + ".dylib"
		c.Paths = joinAll(name,
			rt.LibDir,
			"/usr/local/lib",
			"/opt/homebrew/lib",
			stdlibLib,
		)
	default:
		name := "libpython" + v.Short() + ".so"
		c.Paths = joinAll(name,
			rt.LibDir,
			"/usr/lib/x86_64-linux-gnu",
			"/usr/lib",
			"/usr/local/lib",
			stdlibLib,
		)
		c.Globs = []string{"/usr/lib/*/libpython*.so*", "/usr/local/lib/libpython*.so*"}
	}
	return c
}

// Find returns the first existing candidate.
func (f *SharedLibFinder) Find(rt *interp.Runtime) (types.FilesystemPath, bool) {
	c := f.Candidates(rt)
	for _, p := range c.Paths {
		if f.Exists(p) {
			return types.FilesystemPath(p), true
		}
	}
	for _, pattern := range c.Globs {
		matches, err := f.Glob(pattern)
		if err != nil {
			continue
		}
		slices.Sort(matches)
		for _, m := range matches {
			if f.Exists(m) {
				return types.FilesystemPath(m), true
			}
		}
	}
	return "", false
}

// joinAll joins name onto every non-empty directory, dropping duplicates.
func joinAll(name string, dirs ...string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d == "" {
			continue
		}
		p := filepath.Join(d, name)
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

func joinIf(dir, elem string) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, elem)
}
