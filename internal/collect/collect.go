// SPDX-License-Identifier: MPL-2.0

// Package collect expands classified modules and data resources into the
// concrete files that go into each archive.
package collect

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pypack/pypack/pkg/fspath"
	"github.com/pypack/pypack/pkg/pymod"
	"github.com/pypack/pypack/pkg/types"
)

const pycacheDir = "__pycache__"

var (
	// PackageSuffixes are the file suffixes kept when walking a package directory.
	PackageSuffixes = map[string]bool{
		".py": true, ".pyw": true, ".pyx": true,
		".so": true, ".pyd": true, ".dll": true, ".dylib": true,
		".txt": true, ".json": true, ".xml": true, ".yaml": true, ".yml": true,
		".cfg": true, ".ini": true, ".toml": true,
	}

	// companionSuffixes are probed next to a third-party single-file module.
	companionSuffixes = []string{".so", ".pyd", ".dll"}
)

type (
	// File is one collected file. Module is empty for data resources.
	File struct {
		Module pymod.ModuleName
		Path   types.FilesystemPath
	}

	// FileSet holds the collected files per bucket. Each list is ordered by
	// module name then walk order, with duplicate paths removed.
	FileSet struct {
		Stdlib     []File
		ThirdParty []File
		Local      []File
		Data       []File
		// SharedLib is the interpreter shared library, empty when not found.
		SharedLib types.FilesystemPath
	}

	// Collector gathers files. It logs and counts recoverable problems
	// rather than failing.
	Collector struct {
		log      *slog.Logger
		warnings int
	}

	// bucket accumulates files with path deduplication.
	bucket struct {
		files []File
		seen  map[types.FilesystemPath]bool
	}
)

// New returns a Collector logging to log (slog.Default() when nil).
func New(log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}
	return &Collector{log: log}
}

// Warnings returns the number of warnings logged so far.
func (c *Collector) Warnings() int { return c.warnings }

// Bucket returns the files collected for class. Builtins have none.
func (s *FileSet) Bucket(class pymod.Classification) []File {
	switch class {
	case pymod.ClassStdlib:
		return s.Stdlib
	case pymod.ClassThirdParty:
		return s.ThirdParty
	case pymod.ClassLocal:
		return s.Local
	default:
		return nil
	}
}

// Len returns the number of collected files across all buckets.
func (s *FileSet) Len() int {
	return len(s.Stdlib) + len(s.ThirdParty) + len(s.Local) + len(s.Data)
}

// Collect expands every classified module into its files.
func (c *Collector) Collect(part *pymod.Partition) *FileSet {
	set := &FileSet{}
	for _, class := range []pymod.Classification{pymod.ClassStdlib, pymod.ClassThirdParty, pymod.ClassLocal} {
		b := newBucket()
		for _, m := range part.Members(class) {
			c.collectModule(b, m)
		}
		switch class {
		case pymod.ClassStdlib:
			set.Stdlib = b.files
		case pymod.ClassThirdParty:
			set.ThirdParty = b.files
		case pymod.ClassLocal:
			set.Local = b.files
		}
	}
	return set
}

func (c *Collector) collectModule(b *bucket, m pymod.Classified) {
	if !m.Found {
		c.warn("module not found, nothing collected", "module", m.Name, "class", m.Class)
		return
	}
	origin := m.Origin
	if origin.Builtin {
		return
	}

	if origin.IsPackage() {
		for _, loc := range origin.SearchLocations {
			c.walkPackage(b, m.Name, loc)
		}
		// A package whose __init__.py sits outside its search locations
		// still contributes the file itself.
		if origin.HasFile() {
			c.addExisting(b, m.Name, origin.File)
		}
		return
	}

	if !origin.HasFile() {
		return
	}
	c.addExisting(b, m.Name, origin.File)
	if m.Class == pymod.ClassThirdParty {
		dir, stem := fspath.Dir(origin.File), origin.File.Stem()
		for _, suffix := range companionSuffixes {
			companion := fspath.JoinStr(dir, stem+suffix)
			if companion != origin.File && isRegular(companion) {
				b.add(File{Module: m.Name, Path: companion})
			}
		}
	}
}

func (c *Collector) walkPackage(b *bucket, module pymod.ModuleName, root types.FilesystemPath) {
	err := filepath.WalkDir(string(root), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			c.warn("could not walk package directory", "module", module, "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if d.Name() == pycacheDir {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		if PackageSuffixes[strings.ToLower(filepath.Ext(path))] {
			b.add(File{Module: module, Path: types.FilesystemPath(path)})
		}
		return nil
	})
	if err != nil {
		c.warn("could not walk package directory", "module", module, "path", root, "error", err)
	}
}

// CollectData expands data specs into files. Directories are walked
// recursively and every regular file is kept.
func (c *Collector) CollectData(specs []DataSpec) []File {
	b := newBucket()
	for _, spec := range specs {
		info, err := os.Stat(string(spec.Source))
		switch {
		case err != nil:
			c.warn("data source not found", "source", spec.Source, "error", err)
		case info.Mode().IsRegular():
			b.add(File{Path: fspath.Clean(spec.Source)})
		case info.IsDir():
			walkErr := filepath.WalkDir(string(spec.Source), func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					c.warn("could not walk data directory", "path", path, "error", err)
					return nil
				}
				if d.Type().IsRegular() {
					b.add(File{Path: types.FilesystemPath(path)})
				}
				return nil
			})
			if walkErr != nil {
				c.warn("could not walk data directory", "source", spec.Source, "error", walkErr)
			}
		default:
			c.warn("data source is not a regular file or directory", "source", spec.Source)
		}
	}
	return b.files
}

func (c *Collector) addExisting(b *bucket, module pymod.ModuleName, path types.FilesystemPath) {
	if _, err := os.Stat(string(path)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.warn("module file vanished before collection", "module", module, "file", path)
		} else {
			c.warn("could not stat module file", "module", module, "file", path, "error", err)
		}
		return
	}
	b.add(File{Module: module, Path: path})
}

func (c *Collector) warn(msg string, args ...any) {
	c.warnings++
	c.log.Warn(msg, args...)
}

func newBucket() *bucket {
	return &bucket{seen: make(map[types.FilesystemPath]bool)}
}

func (b *bucket) add(f File) {
	f.Path = fspath.Clean(f.Path)
	if b.seen[f.Path] {
		return
	}
	b.seen[f.Path] = true
	b.files = append(b.files, f)
}

func isRegular(p types.FilesystemPath) bool {
	info, err := os.Stat(string(p))
	return err == nil && info.Mode().IsRegular()
}
