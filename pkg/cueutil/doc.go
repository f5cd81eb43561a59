// SPDX-License-Identifier: MPL-2.0

// Package cueutil decodes user-supplied CUE files against an embedded schema.
//
// Every caller follows the same three steps: compile the schema, unify the
// user data with the schema's root definition, then validate and decode the
// result into a Go struct. Errors carry the offending field path, for example
// "config.cue: search_paths[1]: conflicting values".
//
//	//go:embed config_schema.cue
//	var schema []byte
//
//	result, err := cueutil.ParseAndDecode[Config](schema, data, "#Config",
//	    cueutil.WithFilename(path),
//	    cueutil.WithConcrete(false),
//	)
package cueutil
