// SPDX-License-Identifier: MPL-2.0

package interp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/pypack/pypack/internal/issue"
	"github.com/pypack/pypack/pkg/platform"
)

const sampleProbeOutput = `{"executable": "/usr/bin/python3", "version": {"major": 3, "minor": 12, "micro": 4},
 "magic": "cb0d0d0a", "stdlib": "/usr/lib/python3.12", "platstdlib": "/usr/lib/python3.12",
 "purelib": "/usr/local/lib/python3.12/dist-packages", "platlib": "/usr/local/lib/python3.12/dist-packages",
 "libdir": "/usr/lib/x86_64-linux-gnu", "path": ["/usr/lib/python3.12", "/usr/lib/python3.12/lib-dynload"],
 "builtins": ["sys", "_thread", "builtins", "marshal", "posix"], "platform": "linux"}`

func TestDecodeProbeOutput(t *testing.T) {
	t.Parallel()

	rt, err := DecodeProbeOutput([]byte(sampleProbeOutput + "\n"))
	if err != nil {
		t.Fatalf("DecodeProbeOutput() error = %v", err)
	}
	if rt.Version.Short() != "3.12" {
		t.Errorf("Version = %v", rt.Version)
	}
	if !rt.IsBuiltin("sys") || !rt.IsBuiltin("_thread") {
		t.Error("IsBuiltin() should find names regardless of probe ordering")
	}
	if rt.IsBuiltin("os") {
		t.Error("IsBuiltin(os) = true")
	}
	if rt.LibDir != "/usr/lib/x86_64-linux-gnu" {
		t.Errorf("LibDir = %q", rt.LibDir)
	}
}

func TestDecodeProbeOutput_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"not json", "Traceback (most recent call last):"},
		{"no version", `{"magic": "cb0d0d0a"}`},
		{"bad magic", `{"version": {"major": 3, "minor": 12, "micro": 0}, "magic": "cb"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := DecodeProbeOutput([]byte(tt.data)); err == nil {
				t.Error("DecodeProbeOutput() error = nil")
			}
		})
	}
}

func TestCommand(t *testing.T) {
	t.Parallel()

	if platform.DetectSandbox() == platform.SandboxFlatpak {
		t.Skip("host command wrapping changes argv inside Flatpak")
	}

	got, err := Command(`/usr/bin/env python3 -I`)
	if err != nil {
		t.Fatalf("Command() error = %v", err)
	}
	if want := []string{"/usr/bin/env", "python3", "-I"}; !slices.Equal(got, want) {
		t.Errorf("Command() = %v, want %v", got, want)
	}

	got, err = Command(`'/opt/my python/bin/python3'`)
	if err != nil {
		t.Fatalf("Command() error = %v", err)
	}
	if want := []string{"/opt/my python/bin/python3"}; !slices.Equal(got, want) {
		t.Errorf("Command() quoted = %v, want %v", got, want)
	}

	if _, err := Command("   "); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("Command(blank) error = %v, want ErrEmptyCommand", err)
	}
}

func TestProbe_FakeInterpreter(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == platform.Windows {
		t.Skip("shell script interpreter stub requires POSIX")
	}
	if platform.DetectSandbox() == platform.SandboxFlatpak {
		t.Skip("stub would be spawned on the host")
	}

	dir := t.TempDir()
	stub := filepath.Join(dir, "python")
	script := "#!/bin/sh\ncat <<'JSON'\n" + sampleProbeOutput + "\nJSON\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	rt, err := Probe(context.Background(), "'"+stub+"'")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if rt.Executable != "/usr/bin/python3" {
		t.Errorf("Executable = %q", rt.Executable)
	}
}

func TestProbe_MissingInterpreter(t *testing.T) {
	t.Parallel()

	_, err := Probe(context.Background(), filepath.Join(t.TempDir(), "no-such-python"))
	if err == nil {
		t.Fatal("Probe() error = nil for missing interpreter")
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("Probe() error = %T, want *issue.ActionableError", err)
	}
	if !ae.HasSuggestions() {
		t.Error("probe error should carry suggestions")
	}
	if !errors.Is(err, ErrProbe) {
		t.Error("probe error should wrap ErrProbe")
	}
}
