// SPDX-License-Identifier: MPL-2.0

// Package pycompile turns Python source into marshalled CPython code
// objects and writes them as headed bytecode artifacts.
//
// Compilation is delegated to the target interpreter: one helper process
// per build reads JSON requests on stdin and answers with the marshalled
// code object or the compile error, one line each. A helper that dies is
// restarted a bounded number of times so one pathological file cannot
// stall the rest of the build.
package pycompile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/pypack/pypack/internal/interp"
)

// HelperScript is run with "<python> -c" and serves compile requests until
// stdin is closed.
const HelperScript = `import base64, json, marshal, sys
for line in sys.stdin:
    req = json.loads(line)
    try:
        code = compile(base64.b64decode(req["source"]), req["filename"], "exec", dont_inherit=True)
        resp = {"code": base64.b64encode(marshal.dumps(code)).decode("ascii")}
    except Exception as exc:
        resp = {"error": str(exc), "kind": type(exc).__name__, "line": getattr(exc, "lineno", None) or 0}
    sys.stdout.write(json.dumps(resp) + "\n")
    sys.stdout.flush()
`

// maxHelperRestarts bounds how often a dead helper is replaced per build.
const maxHelperRestarts = 3

var (
	// ErrCompile is the sentinel wrapped by CompileError.
	ErrCompile = errors.New("compile failed")
	// ErrClosed is returned by Compile after Close.
	ErrClosed = errors.New("compiler is closed")
)

type (
	// Compiler compiles one source file to a marshalled code object.
	Compiler interface {
		Compile(ctx context.Context, filename string, src []byte) ([]byte, error)
	}

	// CompilerFunc adapts a function to the Compiler interface.
	CompilerFunc func(ctx context.Context, filename string, src []byte) ([]byte, error)

	// CompileError is a source-level error reported by the interpreter.
	CompileError struct {
		Filename string
		Line     int
		// Kind is the Python exception class, such as SyntaxError or
		// RecursionError.
		Kind    string
		Message string
	}

	// InterpreterCompiler compiles through a long-lived helper process of
	// the target interpreter. It must be closed when the build is done.
	InterpreterCompiler struct {
		mu       sync.Mutex
		ctx      context.Context
		argv     []string
		helper   *helper
		restarts int
		closed   bool
	}

	helper struct {
		cmd    *exec.Cmd
		stdin  io.WriteCloser
		stdout *bufio.Reader
		stderr *lockedBuffer
	}

	// lockedBuffer collects helper stderr, which exec copies from its own goroutine.
	lockedBuffer struct {
		mu  sync.Mutex
		buf bytes.Buffer
	}

	request struct {
		Filename string `json:"filename"`
		Source   string `json:"source"`
	}

	response struct {
		Code  string `json:"code"`
		Error string `json:"error"`
		Kind  string `json:"kind"`
		Line  int    `json:"line"`
	}
)

// Compile calls f.
func (f CompilerFunc) Compile(ctx context.Context, filename string, src []byte) ([]byte, error) {
	return f(ctx, filename, src)
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %s", e.Filename, e.Line, e.Kind, e.Message)
}

// Unwrap returns ErrCompile for errors.Is() compatibility.
func (e *CompileError) Unwrap() error { return ErrCompile }

// NewInterpreterCompiler starts the helper process for the interpreter
// command (split like interp.Command). The context bounds the helper's
// lifetime.
func NewInterpreterCompiler(ctx context.Context, command string) (*InterpreterCompiler, error) {
	argv, err := interp.Command(command)
	if err != nil {
		return nil, err
	}
	h, err := startHelper(ctx, argv)
	if err != nil {
		return nil, err
	}
	return &InterpreterCompiler{ctx: ctx, argv: argv, helper: h}, nil
}

func startHelper(ctx context.Context, argv []string) (*helper, error) {
	args := append(append([]string{}, argv[1:]...), "-c", HelperScript)
	cmd := exec.CommandContext(ctx, argv[0], args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating compiler stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating compiler stdout: %w", err)
	}
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting compiler helper %q: %w", argv[0], err)
	}
	return &helper{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		stderr: stderr,
	}, nil
}

// Compile sends src to the helper and waits for its answer.
func (c *InterpreterCompiler) Compile(ctx context.Context, filename string, src []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	line, err := json.Marshal(request{Filename: filename, Source: base64.StdEncoding.EncodeToString(src)})
	if err != nil {
		return nil, err
	}
	if _, err := c.helper.stdin.Write(append(line, '\n')); err != nil {
		return nil, c.replaceHelper(fmt.Sprintf("sending compile request for %s", filename), err)
	}
	reply, err := c.helper.stdout.ReadBytes('\n')
	if err != nil {
		return nil, c.replaceHelper(fmt.Sprintf("reading compile response for %s", filename), err)
	}

	var resp response
	if err := json.Unmarshal(reply, &resp); err != nil {
		return nil, fmt.Errorf("decoding compile response for %s: %w", filename, err)
	}
	if resp.Error != "" || resp.Kind != "" {
		return nil, &CompileError{Filename: filename, Line: resp.Line, Kind: resp.Kind, Message: resp.Error}
	}
	code, err := base64.StdEncoding.DecodeString(resp.Code)
	if err != nil {
		return nil, fmt.Errorf("decoding compiled code for %s: %w", filename, err)
	}
	return code, nil
}

// Close ends the helper process. It is safe to call more than once.
func (c *InterpreterCompiler) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.helper == nil {
		return nil
	}
	return c.helper.stop("waiting for compiler helper")
}

// replaceHelper reaps the dead helper, reports why it failed and starts a
// fresh one while the restart budget lasts. Callers hold c.mu.
func (c *InterpreterCompiler) replaceHelper(op string, cause error) error {
	err := fmt.Errorf("%s: %w", op, cause)
	if waitErr := c.helper.stop("compiler helper exited"); waitErr != nil {
		err = errors.Join(err, waitErr)
	}
	if c.restarts >= maxHelperRestarts {
		c.closed = true
		c.helper = nil
		return errors.Join(err, ErrClosed)
	}
	c.restarts++
	h, startErr := startHelper(c.ctx, c.argv)
	if startErr != nil {
		c.closed = true
		c.helper = nil
		return errors.Join(err, startErr)
	}
	c.helper = h
	return err
}

// stop closes stdin and waits for the process, so stderr is complete when
// it is read.
func (h *helper) stop(op string) error {
	_ = h.stdin.Close()
	if err := h.cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(h.stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", op, err, msg)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
