// SPDX-License-Identifier: MPL-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type pyprojectFile struct {
	Tool struct {
		Pypack map[string]any `toml:"pypack"`
	} `toml:"tool"`
}

// readPyproject returns the [tool.pypack] table of the file at path with
// dashed keys normalised to underscores. A missing file or table is not an
// error.
func readPyproject(path string) (map[string]any, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var doc pyprojectFile
	if err := toml.Unmarshal(data, &doc); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, false, fmt.Errorf("%s:%d:%d: %w", path, row, col, err)
		}
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Tool.Pypack == nil {
		return nil, false, nil
	}
	return normalizeKeys(doc.Tool.Pypack), true, nil
}

func normalizeKeys(table map[string]any) map[string]any {
	out := make(map[string]any, len(table))
	for k, v := range table {
		if nested, ok := v.(map[string]any); ok {
			v = normalizeKeys(nested)
		}
		out[strings.ReplaceAll(k, "-", "_")] = v
	}
	return out
}

// tableToCUE renders the table as JSON, which CUE accepts as data, so the
// table can be checked against the same schema as config.cue.
func tableToCUE(table map[string]any) ([]byte, error) {
	data, err := json.Marshal(table)
	if err != nil {
		return nil, fmt.Errorf("encoding [tool.pypack]: %w", err)
	}
	return data, nil
}
