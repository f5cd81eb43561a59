// SPDX-License-Identifier: MPL-2.0

package pysource

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin-1"
)

var (
	utf8BOM = []byte{0xEF, 0xBB, 0xBF}

	// codingCookie matches a PEP 263 declaration on one of the first two lines.
	codingCookie = regexp.MustCompile(`^[ \t\f]*#.*?coding[:=][ \t]*([-\w.]+)`)

	// codecAliases maps Python codec spellings to WHATWG labels understood
	// by htmlindex.
	codecAliases = map[string]string{
		"latin-1":   "iso-8859-1",
		"latin1":    "iso-8859-1",
		"l1":        "iso-8859-1",
		"iso8859-1": "iso-8859-1",
		"cp1252":    "windows-1252",
		"sjis":      "shift_jis",
		"shift-jis": "shift_jis",
		"euc_jp":    "euc-jp",
		"utf8":      "utf-8",
		"u8":        "utf-8",
	}
)

// Source is a decoded Python file.
type Source struct {
	// Text is the UTF-8 text without a byte order mark.
	Text []byte
	// Encoding names the decoding that succeeded.
	Encoding string
}

// ReadFile reads and decodes path.
func ReadFile(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return Decode(data), nil
}

// Decode converts raw file bytes to UTF-8. It never fails: when neither a
// declared coding nor UTF-8 applies, the bytes are read as Latin-1.
func Decode(data []byte) Source {
	if name := declaredCoding(data); name != "" && !isUTF8Name(name) {
		if enc, err := lookupCodec(name); err == nil {
			if text, err := enc.NewDecoder().Bytes(data); err == nil {
				return Source{Text: text, Encoding: strings.ToLower(name)}
			}
		}
	}

	if utf8.Valid(data) {
		return Source{Text: bytes.TrimPrefix(data, utf8BOM), Encoding: EncodingUTF8}
	}

	text, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		// Every byte is valid Latin-1; keep the raw bytes if the decoder ever disagrees.
		text = data
	}
	return Source{Text: text, Encoding: EncodingLatin1}
}

// declaredCoding returns the PEP 263 coding name from the first two lines.
func declaredCoding(data []byte) string {
	lines := bytes.SplitN(data, []byte("\n"), 3)
	for i, line := range lines {
		if i >= 2 {
			break
		}
		if i == 0 {
			line = bytes.TrimPrefix(line, utf8BOM)
		}
		if m := codingCookie.FindSubmatch(line); m != nil {
			return string(m[1])
		}
		// The cookie may only sit on line two if line one is a comment or blank.
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 && trimmed[0] != '#' {
			break
		}
	}
	return ""
}

// lookupCodec resolves a Python codec name. WHATWG folds ISO-8859-1 into
// windows-1252, which Python does not, so Latin-1 is served by charmap.
func lookupCodec(name string) (encoding.Encoding, error) {
	n := normalizeCodec(name)
	if n == "iso-8859-1" {
		return charmap.ISO8859_1, nil
	}
	return htmlindex.Get(n)
}

func normalizeCodec(name string) string {
	n := strings.ToLower(strings.ReplaceAll(name, "_", "-"))
	if alias, ok := codecAliases[n]; ok {
		return alias
	}
	if alias, ok := codecAliases[strings.ToLower(name)]; ok {
		return alias
	}
	return n
}

func isUTF8Name(name string) bool {
	n := normalizeCodec(name)
	return n == "utf-8" || strings.HasPrefix(n, "utf-8-")
}
