// SPDX-License-Identifier: MPL-2.0

package pysource

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pypack/pypack/pkg/pymod"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrSyntax is the sentinel wrapped by SyntaxError.
var ErrSyntax = errors.New("invalid Python syntax")

type (
	// Import is one static import found in a source file.
	Import struct {
		// Module is the top-level name to resolve, or pymod.CurrentPackage
		// for "from . import x".
		Module pymod.ModuleName
		// Level is the number of leading dots of a relative import.
		Level int
		// Line is the 1-based line of the import statement.
		Line int
	}

	// SyntaxError reports the first error node of a parse tree.
	SyntaxError struct {
		Filename string
		Line     int
		Column   int
	}

	// Parser extracts imports from Python source. A Parser is not safe for
	// concurrent use; the resolver owns exactly one.
	Parser struct {
		p *sitter.Parser
	}
)

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: invalid syntax", e.Filename, e.Line, e.Column)
}

// Unwrap returns ErrSyntax for errors.Is() compatibility.
func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// NewParser returns a parser configured for the Python grammar.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{p: p}
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	p.p.Close()
}

// Imports parses src and returns its static imports in source order, with
// duplicate names removed. Imports nested inside functions, classes and
// conditional blocks are included. filename is used in error messages only.
func (p *Parser) Imports(ctx context.Context, filename string, src []byte) ([]Import, error) {
	tree, err := p.p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		line, col := firstErrorPosition(root)
		return nil, &SyntaxError{Filename: filename, Line: line, Column: col}
	}

	var (
		out  []Import
		seen = make(map[pymod.ModuleName]bool)
	)
	add := func(imp Import) {
		if imp.Module == "" || seen[imp.Module] {
			return
		}
		seen[imp.Module] = true
		out = append(out, imp)
	}

	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		line := int(n.StartPoint().Row) + 1

		switch n.Type() {
		case "import_statement":
			for i := range int(n.NamedChildCount()) {
				if name := importedName(n.NamedChild(i), src); name != "" {
					add(Import{Module: topLevel(name), Line: line})
				}
			}
			continue
		case "import_from_statement":
			add(fromImport(n, src, line))
			continue
		case "future_import_statement":
			add(Import{Module: "__future__", Line: line})
			continue
		}

		// Push children in reverse so they pop in source order.
		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, n.NamedChild(i))
		}
	}
	return out, nil
}

// importedName returns the dotted module of an import_statement child.
func importedName(n *sitter.Node, src []byte) string {
	switch n.Type() {
	case "dotted_name":
		return n.Content(src)
	case "aliased_import":
		if name := n.ChildByFieldName("name"); name != nil {
			return name.Content(src)
		}
	}
	return ""
}

// fromImport maps "from X import y" to X's top-level segment. A relative
// import with a module ("from .sub import y") yields "sub"; a bare relative
// import ("from . import y") yields the CurrentPackage sentinel.
func fromImport(n *sitter.Node, src []byte, line int) Import {
	mod := n.ChildByFieldName("module_name")
	if mod == nil {
		return Import{}
	}
	switch mod.Type() {
	case "dotted_name":
		return Import{Module: topLevel(mod.Content(src)), Line: line}
	case "relative_import":
		imp := Import{Module: pymod.CurrentPackage, Line: line}
		for i := range int(mod.NamedChildCount()) {
			child := mod.NamedChild(i)
			switch child.Type() {
			case "import_prefix":
				imp.Level = strings.Count(child.Content(src), ".")
			case "dotted_name":
				imp.Module = topLevel(child.Content(src))
			}
		}
		return imp
	}
	return Import{}
}

func topLevel(dotted string) pymod.ModuleName {
	// dotted_name content may contain whitespace around dots ("a . b").
	head, _, _ := strings.Cut(dotted, ".")
	return pymod.ModuleName(strings.TrimSpace(head))
}

func firstErrorPosition(root *sitter.Node) (line, col int) {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.IsError() || n.IsMissing() {
			p := n.StartPoint()
			return int(p.Row) + 1, int(p.Column) + 1
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if c := n.Child(i); c.HasError() || c.IsMissing() {
				stack = append(stack, c)
			}
		}
	}
	p := root.StartPoint()
	return int(p.Row) + 1, int(p.Column) + 1
}
