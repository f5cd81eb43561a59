// SPDX-License-Identifier: MPL-2.0

// Package pysource reads Python source files and extracts their static
// import statements.
//
// Decoding follows the interpreter's rules closely enough for import
// discovery: a PEP 263 coding declaration wins, then UTF-8, then Latin-1
// as a last resort so that no byte sequence is undecodable. Parsing uses
// the tree-sitter Python grammar; a tree containing error nodes is reported
// as a SyntaxError.
package pysource
