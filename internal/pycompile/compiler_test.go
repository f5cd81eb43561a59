// SPDX-License-Identifier: MPL-2.0

package pycompile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pypack/pypack/pkg/platform"
)

// stubHelper answers the first request with code bytes 00 01 02 and every
// later one with a syntax error.
const stubHelper = `#!/bin/sh
n=0
while IFS= read -r line; do
  n=$((n+1))
  if [ "$n" -eq 1 ]; then
    echo '{"code": "AAEC"}'
  else
    echo '{"error": "invalid syntax", "kind": "SyntaxError", "line": 3}'
  fi
done
`

// crashingHelper dies on any request naming crash.py and otherwise answers
// with code bytes 00 01 02.
const crashingHelper = `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
    *crash.py*) echo "helper blew up" >&2; exit 3 ;;
  esac
  echo '{"code": "AAEC"}'
done
`

func skipWithoutPOSIXStub(t *testing.T) {
	t.Helper()
	if runtime.GOOS == platform.Windows {
		t.Skip("shell script interpreter stub requires POSIX")
	}
	if platform.DetectSandbox() == platform.SandboxFlatpak {
		t.Skip("stub would be spawned on the host")
	}
}

func TestInterpreterCompiler_Protocol(t *testing.T) {
	t.Parallel()
	skipWithoutPOSIXStub(t)

	stub := filepath.Join(t.TempDir(), "python")
	if err := os.WriteFile(stub, []byte(stubHelper), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	c, err := NewInterpreterCompiler(ctx, "'"+stub+"'")
	if err != nil {
		t.Fatalf("NewInterpreterCompiler() error = %v", err)
	}

	code, err := c.Compile(ctx, "ok.py", []byte("x = 1\n"))
	if err != nil {
		t.Fatalf("Compile(ok.py) error = %v", err)
	}
	if !bytes.Equal(code, []byte{0, 1, 2}) {
		t.Errorf("Compile(ok.py) = %x, want 000102", code)
	}

	_, err = c.Compile(ctx, "bad.py", []byte("def (:\n"))
	var ce *CompileError
	if !errors.As(err, &ce) || !errors.Is(err, ErrCompile) {
		t.Fatalf("Compile(bad.py) error = %v, want CompileError", err)
	}
	if ce.Filename != "bad.py" || ce.Line != 3 || ce.Kind != "SyntaxError" {
		t.Errorf("CompileError = %+v", ce)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := c.Compile(ctx, "late.py", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Compile after Close error = %v, want ErrClosed", err)
	}
}

func TestInterpreterCompiler_ReplacesDeadHelper(t *testing.T) {
	t.Parallel()
	skipWithoutPOSIXStub(t)

	stub := filepath.Join(t.TempDir(), "python")
	if err := os.WriteFile(stub, []byte(crashingHelper), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	c, err := NewInterpreterCompiler(ctx, "'"+stub+"'")
	if err != nil {
		t.Fatalf("NewInterpreterCompiler() error = %v", err)
	}
	defer func() { _ = c.Close() }()

	for i := range maxHelperRestarts {
		_, err = c.Compile(ctx, "crash.py", []byte("x = 1\n"))
		if err == nil || errors.Is(err, ErrClosed) {
			t.Fatalf("crash %d: Compile() error = %v, want a helper failure", i, err)
		}
		if !strings.Contains(err.Error(), "helper blew up") {
			t.Errorf("crash %d: error %q does not carry the helper's stderr", i, err)
		}
		code, err := c.Compile(ctx, "ok.py", []byte("x = 1\n"))
		if err != nil || !bytes.Equal(code, []byte{0, 1, 2}) {
			t.Fatalf("after crash %d: Compile(ok.py) = %x, %v; want the restarted helper's answer", i, code, err)
		}
	}

	if _, err := c.Compile(ctx, "crash.py", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Compile past the restart budget error = %v, want ErrClosed", err)
	}
	if _, err := c.Compile(ctx, "ok.py", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Compile after giving up error = %v, want ErrClosed", err)
	}
}

func TestNewInterpreterCompiler_MissingInterpreter(t *testing.T) {
	t.Parallel()

	if _, err := NewInterpreterCompiler(context.Background(), filepath.Join(t.TempDir(), "no-python")); err == nil {
		t.Error("NewInterpreterCompiler() error = nil for a missing interpreter")
	}
}

func TestCompilerFunc(t *testing.T) {
	t.Parallel()

	var c Compiler = CompilerFunc(func(_ context.Context, filename string, src []byte) ([]byte, error) {
		return append([]byte(filename+":"), src...), nil
	})
	got, err := c.Compile(context.Background(), "a.py", []byte("pass"))
	if err != nil || string(got) != "a.py:pass" {
		t.Errorf("Compile() = %q, %v", got, err)
	}
}

// TestInterpreterCompiler_CPython runs the real helper when python3 is on PATH.
func TestInterpreterCompiler_CPython(t *testing.T) {
	t.Parallel()
	python := requirePython(t)

	ctx := context.Background()
	c, err := NewInterpreterCompiler(ctx, "'"+python+"'")
	if err != nil {
		t.Fatalf("NewInterpreterCompiler() error = %v", err)
	}
	defer func() { _ = c.Close() }()

	code, err := c.Compile(ctx, "hello.py", []byte("print('hello')\n"))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	// marshal of a code object starts with TYPE_CODE ('c'), possibly with FLAG_REF set.
	if len(code) == 0 || code[0]&0x7f != 'c' {
		t.Errorf("Compile() payload does not start with a marshalled code object: %x", code[:min(len(code), 4)])
	}

	_, err = c.Compile(ctx, "broken.py", []byte("def broken(:\n    pass\n"))
	var ce *CompileError
	if !errors.As(err, &ce) || ce.Kind != "SyntaxError" || ce.Line != 1 {
		t.Errorf("Compile(broken) error = %v, want SyntaxError on line 1", err)
	}

	// Latin-1 source with a coding cookie compiles like any other file.
	latin1 := []byte("# -*- coding: latin-1 -*-\ns = '\xe9'\n")
	if _, err := c.Compile(ctx, "latin.py", latin1); err != nil {
		t.Errorf("Compile(latin-1) error = %v", err)
	}
}

func requirePython(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping interpreter test in short mode")
	}
	python, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not found on PATH")
	}
	return python
}

func TestInterpreterCompiler_CPythonSurvivesDeepExpression(t *testing.T) {
	t.Parallel()
	python := requirePython(t)

	ctx := context.Background()
	c, err := NewInterpreterCompiler(ctx, "'"+python+"'")
	if err != nil {
		t.Fatalf("NewInterpreterCompiler() error = %v", err)
	}
	defer func() { _ = c.Close() }()

	deep := "x = 1" + strings.Repeat("+1", 200_000) + "\n"
	// Interpreters that refuse the file must say so as a CompileError.
	if _, err = c.Compile(ctx, "deep.py", []byte(deep)); err != nil {
		var ce *CompileError
		if !errors.As(err, &ce) || ce.Kind == "" {
			t.Fatalf("Compile(deep.py) error = %v, want a CompileError naming the exception", err)
		}
	}

	if _, err := c.Compile(ctx, "ok.py", []byte("x = 1\n")); err != nil {
		t.Errorf("Compile(ok.py) after a failed file error = %v", err)
	}
}

// roundTripCheck loads the marshalled payload and compares it with a direct
// compile of the same source.
const roundTripCheck = `import marshal, sys
payload_path, source_path, filename = sys.argv[1:4]
with open(payload_path, "rb") as f:
    code = marshal.loads(f.read())
with open(source_path, "rb") as f:
    ref = compile(f.read(), filename, "exec", dont_inherit=True)
if code != ref or code.co_filename != ref.co_filename:
    print("payload differs: %r %r vs %r %r" % (code.co_code, code.co_consts, ref.co_code, ref.co_consts))
    sys.exit(1)
`

func TestInterpreterCompiler_CPythonPayloadMatchesDirectCompile(t *testing.T) {
	t.Parallel()
	python := requirePython(t)

	ctx := context.Background()
	c, err := NewInterpreterCompiler(ctx, "'"+python+"'")
	if err != nil {
		t.Fatalf("NewInterpreterCompiler() error = %v", err)
	}
	defer func() { _ = c.Close() }()

	src := []byte("import os\n\nLIMIT = 3.5\n\ndef greet(name, *, loud=False):\n    msg = f'hi {name}'\n    return msg.upper() if loud else msg\n\nclass Box:\n    items = (1, 'two', None)\n")
	payload, err := c.Compile(ctx, "pkg/greet.py", src)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	dir := t.TempDir()
	payloadPath := filepath.Join(dir, "payload.bin")
	sourcePath := filepath.Join(dir, "greet.py")
	if err := os.WriteFile(payloadPath, payload, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(sourcePath, src, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := exec.CommandContext(ctx, python, "-c", roundTripCheck, payloadPath, sourcePath, "pkg/greet.py").CombinedOutput()
	if err != nil {
		t.Errorf("payload does not match a direct compile: %v\n%s", err, out)
	}
}
