// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"os"
	"sync"
)

// Sandbox type constants.
const (
	// SandboxNone indicates no sandbox environment detected.
	SandboxNone SandboxType = ""
	// SandboxFlatpak indicates a Flatpak sandbox environment.
	SandboxFlatpak SandboxType = "flatpak"
	// SandboxSnap indicates a Snap sandbox environment.
	SandboxSnap SandboxType = "snap"
)

// detectOnce caches the sandbox detection result for the lifetime of the process.
//
// INVARIANT: detectSandboxFrom MUST NOT panic. sync.OnceValue propagates a
// panic on every call, creating a persistent crash condition.
var detectOnce = sync.OnceValue(func() SandboxType {
	return detectSandboxFrom(os.Getenv, statFile)
})

// SandboxType identifies the type of application sandbox, if any.
type SandboxType string

// DetectSandbox returns the type of application sandbox the current process is running in.
// The result is cached after the first call.
//
// Detection methods:
//   - Flatpak: Checks for existence of /.flatpak-info
//   - Snap: Checks for SNAP_NAME environment variable
func DetectSandbox() SandboxType {
	return detectOnce()
}

// HostCommand returns argv rewritten so it runs on the host system instead
// of inside the detected sandbox. Inside Flatpak the host interpreter is not
// visible, so the command is routed through flatpak-spawn. Snap packages run
// with classic confinement see the host filesystem and need no wrapper.
func HostCommand(argv []string) []string {
	return HostCommandFor(DetectSandbox(), argv)
}

// HostCommandFor is the pure form of HostCommand for a given sandbox type.
func HostCommandFor(st SandboxType, argv []string) []string {
	switch st {
	case SandboxFlatpak:
		wrapped := make([]string, 0, len(argv)+2)
		wrapped = append(wrapped, "flatpak-spawn", "--host")
		return append(wrapped, argv...)
	case SandboxNone, SandboxSnap:
		return argv
	default:
		return argv
	}
}

// detectSandboxFrom performs sandbox detection using the provided lookup functions.
func detectSandboxFrom(lookupEnv func(string) string, statFile func(string) error) SandboxType {
	// The /.flatpak-info file is always present inside Flatpak sandboxes.
	if err := statFile("/.flatpak-info"); err == nil {
		return SandboxFlatpak
	}
	if lookupEnv("SNAP_NAME") != "" {
		return SandboxSnap
	}
	return SandboxNone
}

func statFile(path string) error {
	_, err := os.Stat(path)
	return err
}
