// Package clipboard moves text between terminal tabs and the system
// clipboard. Copies use whatever native tool the platform provides and fall
// back to the OSC 52 escape sequence; pastes go through atotto/clipboard.
package clipboard

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	atotto "github.com/atotto/clipboard"

	"github.com/taote/taote/internal/platform"
)

// ErrEmpty is returned when there is nothing to copy.
var ErrEmpty = errors.New("clipboard: no content to copy")

// ErrUnavailable is returned when no clipboard tool is installed.
var ErrUnavailable = errors.New("clipboard: no clipboard method available (install pbcopy, xclip, xsel, or wl-copy)")

// Result describes a completed copy.
type Result struct {
	Method    string
	ByteSize  int
	LineCount int
}

// tool is one native clipboard copy command.
type tool struct {
	name     string
	copyArgs []string
}

// Swapped by tests.
var (
	lookPath = exec.LookPath
	readAll  = atotto.ReadAll
)

func tools() []tool {
	switch platform.Detect() {
	case platform.PlatformMacOS:
		return []tool{{name: "pbcopy"}}
	case platform.PlatformWSL1, platform.PlatformWSL2:
		return []tool{{name: "clip.exe"}}
	case platform.PlatformLinux:
		var ts []tool
		if os.Getenv("WAYLAND_DISPLAY") != "" {
			ts = append(ts, tool{name: "wl-copy"})
		}
		return append(ts,
			tool{name: "xclip", copyArgs: []string{"-selection", "clipboard"}},
			tool{name: "xsel", copyArgs: []string{"--clipboard", "--input"}},
		)
	}
	return nil
}

// Copy puts text on the system clipboard. When no native tool exists and
// osc52 is non-nil, the OSC 52 sequence is written there instead.
func Copy(text string, osc52 io.Writer) (*Result, error) {
	if text == "" {
		return nil, ErrEmpty
	}
	res := &Result{ByteSize: len(text), LineCount: countLines(text)}

	for _, t := range tools() {
		path, err := lookPath(t.name)
		if err != nil {
			continue
		}
		cmd := exec.Command(path, t.copyArgs...)
		cmd.Stdin = strings.NewReader(text)
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("clipboard: %s: %w", t.name, err)
		}
		res.Method = t.name
		return res, nil
	}

	if osc52 == nil {
		return nil, ErrUnavailable
	}
	seq := OSC52(text, os.Getenv("TMUX") != "")
	if _, err := io.WriteString(osc52, seq); err != nil {
		return nil, fmt.Errorf("clipboard: osc52: %w", err)
	}
	res.Method = "osc52"
	return res, nil
}

// Paste returns the current system clipboard text.
func Paste() (string, error) {
	if atotto.Unsupported {
		return "", ErrUnavailable
	}
	text, err := readAll()
	if err != nil {
		return "", fmt.Errorf("clipboard: paste: %w", err)
	}
	return strings.TrimSuffix(text, "\r\n"), nil
}

// OSC52 builds the clipboard escape sequence, wrapped for tmux passthrough
// when inTmux is set.
func OSC52(text string, inTmux bool) string {
	osc := "\x1b]52;c;" + base64.StdEncoding.EncodeToString([]byte(text)) + "\x07"
	if inTmux {
		return "\x1bPtmux;\x1b" + osc + "\x1b\\"
	}
	return osc
}

// countLines counts lines; a trailing newline does not start a new one.
func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
