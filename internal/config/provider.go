// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/pypack/pypack/pkg/types"
)

// ErrInvalidLoadOptions is the sentinel error wrapped by InvalidLoadOptionsError.
var ErrInvalidLoadOptions = errors.New("invalid load options")

type (
	// LoadOptions defines explicit configuration loading inputs. Zero
	// values select the defaults.
	LoadOptions struct {
		// ConfigFilePath forces loading from a specific CUE file.
		ConfigFilePath types.FilesystemPath
		// ConfigDirPath replaces the platform config directory.
		ConfigDirPath types.FilesystemPath
		// BaseDir holds pypack.cue and pyproject.toml; empty means the
		// working directory.
		BaseDir types.FilesystemPath
		// Overrides are applied last, keyed like the config file
		// ("search_paths", "ui.color_scheme").
		Overrides map[string]any
	}

	// InvalidLoadOptionsError collects the invalid fields of a LoadOptions.
	InvalidLoadOptionsError struct {
		FieldErrors []error
	}

	// Loaded is a merged configuration and the files it came from.
	Loaded struct {
		Config *Config
		// ConfigFile is the CUE file that was read, or "".
		ConfigFile string
		// Pyproject is the pyproject.toml whose [tool.pypack] table was
		// read, or "".
		Pyproject string
	}

	// Provider loads configuration from explicit options.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Loaded, error)
	}

	fileProvider struct{}
)

// NewProvider creates a configuration provider backed by the filesystem.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads and merges every configuration source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Loaded, error) {
	return loadWithOptions(ctx, opts)
}

// Validate rejects whitespace-only paths. Empty paths mean "use default".
func (o LoadOptions) Validate() error {
	var errs []error
	for _, p := range []types.FilesystemPath{o.ConfigFilePath, o.ConfigDirPath, o.BaseDir} {
		if p == "" {
			continue
		}
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &InvalidLoadOptionsError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidLoadOptionsError) Error() string {
	if len(e.FieldErrors) == 1 {
		return fmt.Sprintf("invalid load options: %v", e.FieldErrors[0])
	}
	return fmt.Sprintf("invalid load options: %d field errors", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidLoadOptions for errors.Is() compatibility.
func (e *InvalidLoadOptionsError) Unwrap() error { return ErrInvalidLoadOptions }
