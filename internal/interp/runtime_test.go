// SPDX-License-Identifier: MPL-2.0

package interp

import (
	"errors"
	"slices"
	"testing"

	"github.com/pypack/pypack/pkg/types"
)

func TestRuntime_Magic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		hex     string
		want    []byte
		wantErr bool
	}{
		{"cpython 3.12", "cb0d0d0a", []byte{0xcb, 0x0d, 0x0d, 0x0a}, false},
		{"too short", "cb0d", nil, true},
		{"not hex", "zzzzzzzz", nil, true},
		{"empty", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rt := &Runtime{MagicHex: tt.hex}
			got, err := rt.Magic()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMagic) {
					t.Fatalf("Magic() error = %v, want ErrInvalidMagic", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Magic() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Magic() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestRuntime_Roots(t *testing.T) {
	t.Parallel()

	rt := &Runtime{
		Stdlib:     "/usr/lib/python3.12",
		PlatStdlib: "/usr/lib/python3.12/",
		Purelib:    "/usr/lib/python3/dist-packages",
		Platlib:    "/usr/local/lib/python3.12/dist-packages",
		Path:       []string{"/usr/lib/python312.zip", "/usr/lib/python3.12", "", "/usr/lib/python3.12"},
		Executable: "/usr/bin/python3",
	}

	if got := rt.StdlibRoots(); !slices.Equal(got, []types.FilesystemPath{"/usr/lib/python3.12"}) {
		t.Errorf("StdlibRoots() = %v", got)
	}
	if got := rt.SitePackagesRoots(); len(got) != 2 {
		t.Errorf("SitePackagesRoots() = %v", got)
	}
	if got := rt.SearchPath(); !slices.Equal(got, []types.FilesystemPath{"/usr/lib/python312.zip", "/usr/lib/python3.12"}) {
		t.Errorf("SearchPath() = %v", got)
	}
	if got := rt.ExecutableDir(); got != "/usr/bin" {
		t.Errorf("ExecutableDir() = %q", got)
	}
}

func TestVersion_Formats(t *testing.T) {
	t.Parallel()

	v := Version{Major: 3, Minor: 12, Micro: 4}
	if v.String() != "3.12.4" || v.Short() != "3.12" || v.NoDot() != "312" {
		t.Errorf("Version formats = %q %q %q", v.String(), v.Short(), v.NoDot())
	}
}
