// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/pypack/pypack/internal/issue"
	"github.com/pypack/pypack/pkg/cueutil"
	"github.com/pypack/pypack/pkg/platform"
)

const (
	// AppName is the application name.
	AppName = "pypack"
	// ConfigFileName is the name of the user config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// ProjectConfigFile is the project-local CUE config looked up in the base directory.
	ProjectConfigFile = "pypack.cue"
	// PyprojectFile holds the [tool.pypack] table.
	PyprojectFile = "pyproject.toml"

	schemaRoot = "#Config"
)

// ErrLoad is wrapped by every error returned while loading configuration.
var ErrLoad = errors.New("configuration load failed")

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the pypack configuration directory using platform
// conventions: %APPDATA% on Windows, ~/Library/Application Support on macOS
// and $XDG_CONFIG_HOME (default ~/.config) elsewhere.
//
//nolint:revive // ConfigDir reads better than Dir at call sites
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var base string
	switch runtime.GOOS {
	case platform.Windows:
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, AppName), nil
}

// ConfigFilePath returns <config dir>/config.cue.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

func loadWithOptions(ctx context.Context, opts LoadOptions) (*Loaded, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load config canceled: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, loadError("", err, "Pass non-blank paths to --config")
	}

	baseDir := string(opts.BaseDir)
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, loadError("", err)
		}
		baseDir = wd
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	loaded := &Loaded{}

	cuePath, err := findConfigFile(opts, baseDir)
	if err != nil {
		return nil, err
	}
	if cuePath != "" {
		data, readErr := os.ReadFile(cuePath)
		if readErr != nil {
			return nil, loadError(cuePath, readErr, "Check that the file is readable")
		}
		if err := mergeValidated(v, data, cuePath); err != nil {
			return nil, loadError(cuePath, err,
				"Check that the file contains valid CUE syntax",
				"Run 'pypack config show' to see the accepted fields and their defaults")
		}
		loaded.ConfigFile = cuePath
	}

	pyproject := filepath.Join(baseDir, PyprojectFile)
	table, found, err := readPyproject(pyproject)
	if err != nil {
		return nil, loadError(pyproject, err, "Check the TOML syntax of the [tool.pypack] table")
	}
	if found {
		data, encErr := tableToCUE(table)
		if encErr != nil {
			return nil, loadError(pyproject, encErr)
		}
		if err := mergeValidated(v, data, pyproject+" [tool.pypack]"); err != nil {
			return nil, loadError(pyproject, err,
				"Use the same field names as config.cue, with dashes or underscores")
		}
		loaded.Pyproject = pyproject
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, loadError("", fmt.Errorf("failed to decode config: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, loadError(loaded.ConfigFile, err, "Fix the listed fields in the config file or the flags")
	}
	loaded.Config = &cfg
	return loaded, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("interpreter", d.Interpreter)
	v.SetDefault("search_paths", d.SearchPaths)
	v.SetDefault("workspace_root", d.WorkspaceRoot)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("include", d.Include)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("data", d.Data)
	v.SetDefault("namespace_policy", string(d.NamespacePolicy))
	v.SetDefault("max_parent_hops", d.MaxParentHops)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("ui.color_scheme", string(d.UI.ColorScheme))
}

// findConfigFile returns the CUE file to load, or "" when none exists.
// An explicit path must exist.
func findConfigFile(opts LoadOptions, baseDir string) (string, error) {
	if opts.ConfigFilePath != "" {
		path := string(opts.ConfigFilePath)
		if !fileExists(path) {
			return "", loadError(path, fmt.Errorf("config file not found: %s", path),
				"Verify the path passed to --config",
				"Run 'pypack config init' to create a default configuration")
		}
		return path, nil
	}

	dir := string(opts.ConfigDirPath)
	if dir == "" {
		d, err := ConfigDir()
		if err != nil {
			return "", loadError("", err)
		}
		dir = d
	}
	for _, candidate := range []string{
		filepath.Join(dir, ConfigFileName+"."+ConfigFileExt),
		filepath.Join(baseDir, ProjectConfigFile),
	} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// mergeValidated checks data against #Config and merges it into v.
// Decoding to a map keeps unset fields out of the merge so they do not
// shadow lower layers.
func mergeValidated(v *viper.Viper, data []byte, name string) error {
	result, err := cueutil.ParseAndDecode[map[string]any](configSchema, data, schemaRoot,
		cueutil.WithFilename(name),
		cueutil.WithConcrete(false),
	)
	if err != nil {
		return err
	}
	if err := v.MergeConfigMap(*result.Value); err != nil {
		return fmt.Errorf("failed to merge %s: %w", name, err)
	}
	return nil
}

func loadError(resource string, err error, suggestions ...string) error {
	b := issue.NewErrorContext().
		WithOperation("load configuration").
		ForIssue(issue.ConfigLoadFailedId)
	if resource != "" {
		b = b.WithResource(resource)
	}
	for _, s := range suggestions {
		b = b.WithSuggestion(s)
	}
	return b.Wrap(fmt.Errorf("%w: %w", ErrLoad, err)).BuildError()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the defaults to <dir>/config.cue unless the
// file exists. An empty dir means ConfigDir. It returns the file path and
// whether it was written.
func CreateDefaultConfig(dir string) (string, bool, error) {
	if dir == "" {
		d, err := ConfigDir()
		if err != nil {
			return "", false, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(path) {
		return path, false, nil
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}
	return path, true, nil
}

// GenerateCUE renders cfg as a config.cue document accepted by #Config.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// pypack configuration\n")
	sb.WriteString("// Fields may also be set in pyproject.toml under [tool.pypack].\n\n")

	fmt.Fprintf(&sb, "interpreter: %q\n", cfg.Interpreter)
	writeList(&sb, "search_paths", cfg.SearchPaths)
	if cfg.WorkspaceRoot != "" {
		fmt.Fprintf(&sb, "workspace_root: %q\n", cfg.WorkspaceRoot)
	}
	if cfg.OutputDir != "" {
		fmt.Fprintf(&sb, "output_dir: %q\n", cfg.OutputDir)
	}
	writeList(&sb, "include", cfg.Include)
	writeList(&sb, "exclude", cfg.Exclude)
	writeList(&sb, "data", cfg.Data)
	if cfg.NamespacePolicy != "" {
		fmt.Fprintf(&sb, "namespace_policy: %q\n", cfg.NamespacePolicy)
	}
	fmt.Fprintf(&sb, "max_parent_hops: %d\n", cfg.MaxParentHops)
	fmt.Fprintf(&sb, "debug: %v\n", cfg.Debug)

	sb.WriteString("\nui: {\n")
	if cfg.UI.ColorScheme != "" {
		fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	}
	sb.WriteString("}\n")

	return sb.String()
}

func writeList(sb *strings.Builder, key string, values []string) {
	if len(values) == 0 {
		fmt.Fprintf(sb, "%s: []\n", key)
		return
	}
	fmt.Fprintf(sb, "%s: [\n", key)
	for _, value := range values {
		fmt.Fprintf(sb, "\t%q,\n", value)
	}
	sb.WriteString("]\n")
}
