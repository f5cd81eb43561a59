// SPDX-License-Identifier: MPL-2.0

// Package config loads pypack settings from layered sources using Viper.
//
// Sources, lowest precedence first:
//
//  1. built-in defaults
//  2. a CUE file: --config, else <config dir>/pypack/config.cue, else
//     ./pypack.cue
//  3. the [tool.pypack] table of ./pyproject.toml
//  4. explicit overrides, normally the CLI flags the user set
//
// Both file layers are validated against the embedded #Config schema
// (config_schema.cue), so a typo in either reports the offending field.
package config
