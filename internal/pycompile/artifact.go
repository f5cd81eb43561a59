// SPDX-License-Identifier: MPL-2.0

package pycompile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pypack/pypack/internal/interp"
)

// HeaderLen is the size of the artifact header: magic, then two zeroed
// 32-bit fields where CPython stores flags or mtime and source size.
const HeaderLen = 12

// ErrInvalidArtifact is returned when an artifact is shorter than its header
// or carries non-zero reserved fields.
var ErrInvalidArtifact = errors.New("invalid bytecode artifact")

// sourceSuffixes are compiled; everything else is stored raw.
var sourceSuffixes = []string{".py", ".pyw"}

// IsSource reports whether path is a Python source file that should be compiled.
func IsSource(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range sourceSuffixes {
		if ext == s {
			return true
		}
	}
	return false
}

// CodeName returns the archive entry name for compiled code: the base
// name's stem plus ".pyc", whatever the source suffix.
func CodeName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".pyc"
}

// EncodeArtifact prepends the 12-byte header to payload.
func EncodeArtifact(magic, payload []byte) ([]byte, error) {
	if len(magic) != interp.MagicLen {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", interp.ErrInvalidMagic, len(magic), interp.MagicLen)
	}
	out := make([]byte, HeaderLen, HeaderLen+len(payload))
	copy(out, magic)
	return append(out, payload...), nil
}

// DecodeArtifact splits an artifact into magic and payload.
func DecodeArtifact(data []byte) (magic, payload []byte, err error) {
	if len(data) < HeaderLen {
		return nil, nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidArtifact, len(data))
	}
	if !bytes.Equal(data[interp.MagicLen:HeaderLen], make([]byte, HeaderLen-interp.MagicLen)) {
		return nil, nil, fmt.Errorf("%w: reserved header fields are not zero", ErrInvalidArtifact)
	}
	return data[:interp.MagicLen], data[HeaderLen:], nil
}

// WriteArtifact writes magic and payload to path as a headed artifact.
func WriteArtifact(path string, magic, payload []byte) error {
	data, err := EncodeArtifact(magic, payload)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadArtifact reads an artifact written by WriteArtifact.
func ReadArtifact(path string) (magic, payload []byte, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return DecodeArtifact(data)
}
