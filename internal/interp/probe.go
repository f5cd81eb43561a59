// SPDX-License-Identifier: MPL-2.0

package interp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/pypack/pypack/internal/issue"
	"github.com/pypack/pypack/pkg/platform"

	"mvdan.cc/sh/v3/shell"
)

// ProbeScript is the Python program run by Probe. It prints one JSON object.
const ProbeScript = `import importlib.util, json, sys, sysconfig
p = sysconfig.get_paths()
v = sys.version_info
print(json.dumps({
    "executable": sys.executable,
    "version": {"major": v[0], "minor": v[1], "micro": v[2]},
    "magic": importlib.util.MAGIC_NUMBER.hex(),
    "stdlib": p.get("stdlib", ""),
    "platstdlib": p.get("platstdlib", ""),
    "purelib": p.get("purelib", ""),
    "platlib": p.get("platlib", ""),
    "libdir": sysconfig.get_config_var("LIBDIR") or "",
    "path": [e for e in sys.path if e],
    "builtins": sorted(sys.builtin_module_names),
    "platform": sys.platform,
}))
`

var (
	// ErrEmptyCommand is returned when the interpreter command has no words.
	ErrEmptyCommand = errors.New("interpreter command is empty")
	// ErrProbe is wrapped by every error returned from Probe.
	ErrProbe = errors.New("interpreter probe failed")
)

// Command splits an interpreter command line such as "/usr/bin/env python3 -I"
// into argv using POSIX shell word rules. Environment references are expanded
// from the current process environment.
func Command(command string) ([]string, error) {
	argv, err := shell.Fields(command, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing interpreter command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	return platform.HostCommand(argv), nil
}

// Probe runs the interpreter named by command and returns its runtime facts.
func Probe(ctx context.Context, command string) (*Runtime, error) {
	argv, err := Command(command)
	if err != nil {
		return nil, probeError(command, err)
	}

	args := append(append([]string{}, argv[1:]...), "-c", ProbeScript)
	cmd := exec.CommandContext(ctx, argv[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, probeError(command, err)
	}

	rt, err := DecodeProbeOutput(out)
	if err != nil {
		return nil, probeError(command, err)
	}
	return rt, nil
}

// DecodeProbeOutput parses the JSON printed by ProbeScript.
func DecodeProbeOutput(data []byte) (*Runtime, error) {
	var rt Runtime
	if err := json.Unmarshal(bytes.TrimSpace(data), &rt); err != nil {
		return nil, fmt.Errorf("decoding interpreter probe output: %w", err)
	}
	if rt.Version.Major == 0 {
		return nil, errors.New("interpreter probe output has no version")
	}
	if _, err := rt.Magic(); err != nil {
		return nil, err
	}
	rt.normalize()
	return &rt, nil
}

func probeError(command string, err error) error {
	return issue.NewErrorContext().
		WithOperation("probe Python interpreter").
		WithResource(command).
		WithSuggestion("Check that the interpreter is installed and on your PATH").
		WithSuggestion("Point pypack at it with --python or the 'interpreter' config field").
		ForIssue(issue.InterpreterNotFoundId).
		Wrap(fmt.Errorf("%w: %w", ErrProbe, err)).
		BuildError()
}
