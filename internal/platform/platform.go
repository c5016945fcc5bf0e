// Package platform detects the host OS flavour and wraps the few OS
// lookups the topology engine needs: the live working directory of a shell
// process and the default shell.
package platform

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// Platform identifies the host.
type Platform string

const (
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformWSL1    Platform = "wsl1"
	PlatformWSL2    Platform = "wsl2"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

var (
	detectOnce sync.Once
	detected   Platform
)

// Detect returns the current platform. The result is cached.
func Detect() Platform {
	detectOnce.Do(func() { detected = detect(runtime.GOOS, readProcVersion()) })
	return detected
}

func readProcVersion() string {
	b, err := os.ReadFile("/proc/version")
	if err != nil {
		return ""
	}
	return string(b)
}

func detect(goos, procVersion string) Platform {
	switch goos {
	case "darwin":
		return PlatformMacOS
	case "windows":
		return PlatformWindows
	case "linux":
	default:
		return PlatformUnknown
	}
	if os.Getenv("WSL_DISTRO_NAME") == "" && !strings.Contains(strings.ToLower(procVersion), "microsoft") {
		return PlatformLinux
	}
	if strings.Contains(procVersion, "microsoft-standard") {
		return PlatformWSL2
	}
	if strings.Contains(procVersion, "Microsoft") {
		return PlatformWSL1
	}
	if _, err := os.Stat("/run/WSL"); err == nil {
		return PlatformWSL2
	}
	return PlatformWSL1
}

// IsWSL reports whether the host is WSL 1 or 2.
func IsWSL() bool {
	p := Detect()
	return p == PlatformWSL1 || p == PlatformWSL2
}

func (p Platform) String() string {
	switch p {
	case PlatformMacOS:
		return "macOS"
	case PlatformLinux:
		return "Linux"
	case PlatformWSL1:
		return "WSL1"
	case PlatformWSL2:
		return "WSL2"
	case PlatformWindows:
		return "Windows"
	default:
		return "Unknown"
	}
}

// ErrNoProcess is returned for non-positive pids.
var ErrNoProcess = errors.New("platform: no such process")

// procRoot is swapped by tests.
var procRoot = "/proc"

// ProcessCwd returns the current working directory of pid. On Linux and WSL
// it reads the /proc/<pid>/cwd symlink; on macOS it asks lsof.
func ProcessCwd(pid int) (string, error) {
	if pid <= 0 {
		return "", ErrNoProcess
	}
	if Detect() == PlatformMacOS {
		return lsofCwd(pid)
	}
	dir, err := os.Readlink(filepath.Join(procRoot, strconv.Itoa(pid), "cwd"))
	if err != nil {
		return "", fmt.Errorf("platform: cwd of %d: %w", pid, err)
	}
	return dir, nil
}

func lsofCwd(pid int) (string, error) {
	out, err := exec.Command("lsof", "-a", "-d", "cwd", "-p", strconv.Itoa(pid), "-Fn").Output()
	if err != nil {
		return "", fmt.Errorf("platform: lsof cwd of %d: %w", pid, err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "n/") {
			return line[1:], nil
		}
	}
	return "", fmt.Errorf("platform: lsof cwd of %d: no path", pid)
}

// DefaultShell returns $SHELL, or /bin/sh when unset.
func DefaultShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// CheckFsnotifySupport returns a warning when path lives on a filesystem
// where inotify events are unreliable (9p, NFS, CIFS, sshfs), else "".
func CheckFsnotifySupport(path string) string {
	if runtime.GOOS != "linux" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return ""
	}
	return fsWarning(fsTypeFor(abs, string(mounts)))
}

func fsTypeFor(abs, mounts string) string {
	var best, fsType string
	for _, line := range strings.Split(mounts, "\n") {
		f := strings.Fields(line)
		if len(f) < 3 {
			continue
		}
		if strings.HasPrefix(abs, f[1]) && len(f[1]) > len(best) {
			best, fsType = f[1], f[2]
		}
	}
	return fsType
}

func fsWarning(fsType string) string {
	switch {
	case fsType == "9p":
		return "config on a 9p mount: live reload disabled"
	case fsType == "nfs" || fsType == "nfs4":
		return "config on an NFS mount: live reload may be unreliable"
	case fsType == "cifs" || fsType == "smbfs":
		return "config on a CIFS/SMB mount: live reload may be unreliable"
	case strings.HasPrefix(fsType, "fuse.sshfs"):
		return "config on an sshfs mount: live reload disabled"
	}
	return ""
}
