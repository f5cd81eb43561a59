// SPDX-License-Identifier: MPL-2.0

package pycompile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pypack/pypack/internal/interp"
)

var testMagic = []byte{0xcb, 0x0d, 0x0d, 0x0a}

func TestWriteArtifact_HeaderLayout(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.pyc")
	payload := []byte("marshalled-code")
	if err := WriteArtifact(path, testMagic, payload); err != nil {
		t.Fatalf("WriteArtifact() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != HeaderLen+len(payload) {
		t.Fatalf("artifact length = %d, want %d", len(data), HeaderLen+len(payload))
	}
	if !bytes.Equal(data[0:4], testMagic) {
		t.Errorf("bytes 0-3 = %x, want magic %x", data[0:4], testMagic)
	}
	if !bytes.Equal(data[4:12], make([]byte, 8)) {
		t.Errorf("bytes 4-11 = %x, want zeros", data[4:12])
	}
	if !bytes.Equal(data[12:], payload) {
		t.Errorf("payload = %q", data[12:])
	}

	magic, got, err := ReadArtifact(path)
	if err != nil || !bytes.Equal(magic, testMagic) || !bytes.Equal(got, payload) {
		t.Errorf("ReadArtifact() = %x, %q, %v", magic, got, err)
	}
}

func TestEncodeArtifact_RejectsBadMagic(t *testing.T) {
	t.Parallel()

	if _, err := EncodeArtifact([]byte{1, 2, 3}, nil); !errors.Is(err, interp.ErrInvalidMagic) {
		t.Errorf("EncodeArtifact(3-byte magic) error = %v, want ErrInvalidMagic", err)
	}
}

func TestDecodeArtifact_Rejects(t *testing.T) {
	t.Parallel()

	tests := map[string][]byte{
		"short":            {0xcb, 0x0d},
		"nonzero reserved": append(append([]byte{}, testMagic...), 0, 0, 0, 1, 0, 0, 0, 0),
	}
	for name, data := range tests {
		if _, _, err := DecodeArtifact(data); !errors.Is(err, ErrInvalidArtifact) {
			t.Errorf("%s: DecodeArtifact() error = %v, want ErrInvalidArtifact", name, err)
		}
	}
}

func TestCodeNameAndIsSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path     string
		code     string
		isSource bool
	}{
		{"/lib/json/decoder.py", "decoder.pyc", true},
		{"/app/gui.pyw", "gui.pyc", true},
		{"/app/MAIN.PY", "MAIN.pyc", true},
		{"/site/yaml/_yaml.so", "_yaml.pyc", false},
		{"/site/pkg/data.json", "data.pyc", false},
	}
	for _, tt := range tests {
		if got := CodeName(tt.path); got != tt.code {
			t.Errorf("CodeName(%q) = %q, want %q", tt.path, got, tt.code)
		}
		if got := IsSource(tt.path); got != tt.isSource {
			t.Errorf("IsSource(%q) = %v, want %v", tt.path, got, tt.isSource)
		}
	}
}
