// SPDX-License-Identifier: MPL-2.0

// Package archive packs collected files into flat deflate ZIP archives,
// one per module category plus one for data resources.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pypack/pypack/internal/collect"
	"github.com/pypack/pypack/internal/issue"
	"github.com/pypack/pypack/internal/pycompile"
	"github.com/pypack/pypack/pkg/pymod"
)

const (
	// CategoryStdlib holds standard library modules.
	CategoryStdlib Category = "stdlib"
	// CategoryThirdParty holds third-party modules.
	CategoryThirdParty Category = "third_party"
	// CategoryLocal holds the program's own modules.
	CategoryLocal Category = "local"
	// CategoryData holds user data resources.
	CategoryData Category = "data"

	// KindCompiled entries hold a headed bytecode artifact.
	KindCompiled EntryKind = "compiled"
	// KindFallback entries hold source that failed to compile.
	KindFallback EntryKind = "fallback"
	// KindRaw entries hold non-source files as-is.
	KindRaw EntryKind = "raw"
)

// ErrArchiveWrite is wrapped by every fatal archive error.
var ErrArchiveWrite = errors.New("archive write failed")

// entryTime pins entry modification times so identical inputs produce
// identical archives.
var entryTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

type (
	// Category names an archive.
	Category string

	// EntryKind says how an entry's bytes were produced.
	EntryKind string

	// Entry describes one archive member.
	Entry struct {
		Name   string    `msgpack:"name"`
		Source string    `msgpack:"source"`
		Kind   EntryKind `msgpack:"kind"`
		Size   int64     `msgpack:"size"`
	}

	// Report describes one written archive.
	Report struct {
		Category Category `msgpack:"category"`
		Path     string   `msgpack:"path"`
		Entries  []Entry  `msgpack:"entries"`
	}

	// Builder writes archives. Compiled entries are prefixed with Magic.
	Builder struct {
		compiler pycompile.Compiler
		magic    []byte
		log      *slog.Logger
		warnings int
	}

	// ReadEntry is an archive member read back from disk.
	ReadEntry struct {
		Name string
		Data []byte
	}
)

// FileName returns the archive file name for c, e.g. "stdlib_modules.zip".
func (c Category) FileName() string {
	if c == CategoryData {
		return "data_files.zip"
	}
	return string(c) + "_modules.zip"
}

// CategoryFor maps a module classification to its archive category.
func CategoryFor(class pymod.Classification) (Category, bool) {
	switch class {
	case pymod.ClassStdlib:
		return CategoryStdlib, true
	case pymod.ClassThirdParty:
		return CategoryThirdParty, true
	case pymod.ClassLocal:
		return CategoryLocal, true
	default:
		return "", false
	}
}

// ModuleCategories lists the module archives in build order.
func ModuleCategories() []Category {
	return []Category{CategoryStdlib, CategoryThirdParty, CategoryLocal}
}

// NewBuilder returns a Builder compiling with compiler and heading compiled
// entries with magic.
func NewBuilder(compiler pycompile.Compiler, magic []byte, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{compiler: compiler, magic: magic, log: log}
}

// Warnings returns the number of warnings logged so far.
func (b *Builder) Warnings() int { return b.warnings }

// BuildCategory writes <dir>/<category>_modules.zip from files. Source files
// are compiled and stored as <stem>.pyc; a source that fails to compile is
// stored as-is. A category with no files produces no archive and a nil Report.
func (b *Builder) BuildCategory(ctx context.Context, dir string, category Category, files []collect.File) (*Report, error) {
	return b.build(ctx, dir, category, files, true)
}

// BuildData writes <dir>/data_files.zip with every file stored as-is.
func (b *Builder) BuildData(ctx context.Context, dir string, files []collect.File) (*Report, error) {
	return b.build(ctx, dir, CategoryData, files, false)
}

func (b *Builder) build(ctx context.Context, dir string, category Category, files []collect.File, compile bool) (report *Report, err error) {
	if len(files) == 0 {
		b.log.Debug("no files for archive, skipping", "category", category)
		return nil, nil
	}

	path := filepath.Join(dir, category.FileName())
	out, err := os.Create(path)
	if err != nil {
		return nil, writeError(path, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = writeError(path, closeErr)
		}
	}()

	zw := zip.NewWriter(out)
	defer func() {
		if closeErr := zw.Close(); closeErr != nil && err == nil {
			err = writeError(path, closeErr)
		}
	}()

	report = &Report{Category: category, Path: path}
	names := make(map[string]string, len(files))
	for _, f := range files {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		src := string(f.Path)
		data, readErr := os.ReadFile(src)
		if readErr != nil {
			if errors.Is(readErr, fs.ErrNotExist) {
				b.warn("file vanished before archiving", "category", category, "file", src)
			} else {
				b.warn("could not read file for archive", "category", category, "file", src, "error", readErr)
			}
			continue
		}

		name, kind := filepath.Base(src), KindRaw
		if compile && pycompile.IsSource(src) {
			name, kind, data = b.compile(ctx, src, data)
		}

		if first, taken := names[name]; taken {
			b.warn("archive entry name collision, keeping first file",
				"category", category, "entry", name, "kept", first, "skipped", src)
			continue
		}
		names[name] = src

		if writeErr := writeEntry(zw, name, data); writeErr != nil {
			return nil, writeError(path, writeErr)
		}
		report.Entries = append(report.Entries, Entry{Name: name, Source: src, Kind: kind, Size: int64(len(data))})
	}

	b.log.Debug("created archive", "category", category, "path", path, "entries", len(report.Entries))
	return report, nil
}

// compile returns the entry name, kind and bytes for a source file, falling
// back to the raw source on any compile failure.
func (b *Builder) compile(ctx context.Context, src string, data []byte) (string, EntryKind, []byte) {
	code, err := b.compiler.Compile(ctx, src, data)
	if err == nil {
		artifact, encErr := pycompile.EncodeArtifact(b.magic, code)
		if encErr == nil {
			return pycompile.CodeName(src), KindCompiled, artifact
		}
		err = encErr
	}
	b.warn("could not compile file, storing source", "file", src, "error", err)
	return filepath.Base(src), KindFallback, data
}

func (b *Builder) warn(msg string, args ...any) {
	b.warnings++
	b.log.Warn(msg, args...)
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: entryTime,
	}
	header.SetMode(0o644)
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("creating entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing entry %s: %w", name, err)
	}
	return nil
}

// ReadEntries reads every member of the archive at path, in archive order.
func ReadEntries(path string) (entries []ReadEntry, err error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", path, err)
	}
	defer func() {
		if closeErr := zr.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing archive %s: %w", path, closeErr)
		}
	}()

	for _, f := range zr.File {
		data, readErr := readMember(f)
		if readErr != nil {
			return nil, fmt.Errorf("reading %s from %s: %w", f.Name, path, readErr)
		}
		entries = append(entries, ReadEntry{Name: f.Name, Data: data})
	}
	return entries, nil
}

func readMember(f *zip.File) (data []byte, err error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return io.ReadAll(rc)
}

func writeError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("write archive").
		WithResource(path).
		WithSuggestion("Check free disk space and permissions of the workspace root").
		ForIssue(issue.ArtifactWriteFailedId).
		Wrap(fmt.Errorf("%w: %w", ErrArchiveWrite, err)).
		BuildError()
}
