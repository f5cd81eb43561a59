// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"

	"github.com/pypack/pypack/internal/classify"
	"github.com/pypack/pypack/internal/collect"
	"github.com/pypack/pypack/internal/interp"
	"github.com/pypack/pypack/internal/locator"
	"github.com/pypack/pypack/internal/pipeline"
	"github.com/pypack/pypack/pkg/pymod"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// maxParentHopsLimit mirrors the bound in config_schema.cue.
	maxParentHopsLimit = 1024
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidMaxParentHops is returned for a negative or oversized hop limit.
	ErrInvalidMaxParentHops = errors.New("invalid max parent hops")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidMaxParentHopsError is returned when max_parent_hops is out of range.
	InvalidMaxParentHopsError struct {
		Value int
	}

	// InvalidConfigError collects every field error found in a Config.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// UIConfig configures terminal output.
	UIConfig struct {
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}

	// Config holds the merged settings for a build.
	Config struct {
		// Interpreter is the target interpreter's command line.
		Interpreter string `json:"interpreter" mapstructure:"interpreter"`
		// SearchPaths are searched after the entry directory and before the
		// interpreter's own sys.path.
		SearchPaths   []string `json:"search_paths" mapstructure:"search_paths"`
		WorkspaceRoot string   `json:"workspace_root" mapstructure:"workspace_root"`
		OutputDir     string   `json:"output_dir" mapstructure:"output_dir"`
		Include       []string `json:"include" mapstructure:"include"`
		Exclude       []string `json:"exclude" mapstructure:"exclude"`
		// Data holds "source[:destination]" resource specs.
		Data            []string                 `json:"data" mapstructure:"data"`
		NamespacePolicy classify.NamespacePolicy `json:"namespace_policy" mapstructure:"namespace_policy"`
		MaxParentHops   int                      `json:"max_parent_hops" mapstructure:"max_parent_hops"`
		Debug           bool                     `json:"debug" mapstructure:"debug"`
		UI              UIConfig                 `json:"ui" mapstructure:"ui"`
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Interpreter:     pipeline.DefaultInterpreter,
		NamespacePolicy: classify.PolicyLocation,
		MaxParentHops:   locator.DefaultMaxParentHops,
		UI:              UIConfig{ColorScheme: ColorSchemeAuto},
	}
}

// Validate checks the fields CUE cannot see, such as values set by
// overrides, and returns an *InvalidConfigError listing every problem.
func (c *Config) Validate() error {
	var errs []error
	if _, err := interp.Command(c.Interpreter); err != nil {
		errs = append(errs, fmt.Errorf("interpreter: %w", err))
	}
	for _, list := range [][]string{c.Include, c.Exclude} {
		for _, name := range list {
			if err := pymod.ModuleName(name).Validate(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if _, err := collect.ParseDataSpecs(c.Data); err != nil {
		errs = append(errs, err)
	}
	if err := c.NamespacePolicy.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxParentHops < 0 || c.MaxParentHops > maxParentHopsLimit {
		errs = append(errs, &InvalidMaxParentHopsError{Value: c.MaxParentHops})
	}
	if err := c.UI.ColorScheme.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Request converts the configuration into a pipeline request for entry.
// Output naming and logging are left to the caller.
func (c *Config) Request(entry string) pipeline.Request {
	return pipeline.Request{
		Entry:           entry,
		OutputDir:       c.OutputDir,
		Include:         c.Include,
		Exclude:         c.Exclude,
		Data:            c.Data,
		Interpreter:     c.Interpreter,
		SearchPaths:     c.SearchPaths,
		WorkspaceRoot:   c.WorkspaceRoot,
		NamespacePolicy: c.NamespacePolicy,
		MaxParentHops:   c.MaxParentHops,
	}
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// Validate returns nil for auto, dark, light and the zero value (auto).
func (cs ColorScheme) Validate() error {
	switch cs {
	case "", ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return nil
	default:
		return &InvalidColorSchemeError{Value: cs}
	}
}

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// Error implements the error interface.
func (e *InvalidMaxParentHopsError) Error() string {
	return fmt.Sprintf("invalid max_parent_hops %d (valid: 0 to %d)", e.Value, maxParentHopsLimit)
}

// Unwrap returns ErrInvalidMaxParentHops for errors.Is() compatibility.
func (e *InvalidMaxParentHopsError) Unwrap() error { return ErrInvalidMaxParentHops }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return fmt.Sprintf("%s: %v", ErrInvalidConfig, e.FieldErrors[0])
	}
	return fmt.Sprintf("%s: %d field errors: %v", ErrInvalidConfig, len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig and every field error, so errors.Is
// matches both the config sentinel and the field sentinels.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
