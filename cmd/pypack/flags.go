// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"
)

// analysisFlags are shared by every command that resolves an entry script.
type analysisFlags struct {
	python          string
	searchPaths     []string
	include         []string
	exclude         []string
	namespacePolicy string
	maxParentHops   int
}

// flagKeys maps flag names to configuration keys. Only flags the user set
// become overrides, so unset flags never shadow the config files.
var flagKeys = map[string]string{
	"python":           "interpreter",
	"search-path":      "search_paths",
	"include":          "include",
	"exclude":          "exclude",
	"namespace-policy": "namespace_policy",
	"max-parent-hops":  "max_parent_hops",
	"add-data":         "data",
	"workspace-root":   "workspace_root",
}

func addAnalysisFlags(cmd *cobra.Command, f *analysisFlags) {
	fs := cmd.Flags()
	fs.StringVar(&f.python, "python", "", "target interpreter command (default python3)")
	fs.StringArrayVar(&f.searchPaths, "search-path", nil, "extra module search directory, searched before sys.path (repeatable)")
	fs.StringArrayVar(&f.include, "include", nil, "module to package even if no import names it (repeatable)")
	fs.StringArrayVar(&f.exclude, "exclude", nil, "module to leave out, with its submodules, even if imported (repeatable)")
	fs.StringVar(&f.namespacePolicy, "namespace-policy", "", "how namespace packages are classified: location or stdlib")
	fs.IntVar(&f.maxParentHops, "max-parent-hops", 0, "directories to climb when looking for an unresolved module")
}

// overrides returns the configuration overrides for every flag of cmd that
// the user set.
func overrides(cmd *cobra.Command) (map[string]any, error) {
	out := make(map[string]any)
	fs := cmd.Flags()
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		var (
			value any
			err   error
		)
		switch flag.Value.Type() {
		case "stringArray":
			value, err = fs.GetStringArray(name)
		case "int":
			value, err = fs.GetInt(name)
		default:
			value = flag.Value.String()
		}
		if err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, nil
}
