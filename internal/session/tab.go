package session

import (
	"log/slog"

	"github.com/taote/taote/internal/ring"
)

// Permanence says whether a detached tab is finished or only moving.
type Permanence bool

const (
	Temporary Permanence = false
	Permanent Permanence = true
)

// Zoom limits for the terminal font scale.
const (
	ZoomStep = 1.125
	ZoomMin  = 0.0625
	ZoomMax  = 16.0
)

// Tab is one terminal session and its position in a window's ring and,
// optionally, in the selection ring.
type Tab struct {
	rt *Runtime
	id ring.ID

	// seq is 0 once the tab is closed; otherwise its MRU stamp.
	seq uint64

	winLink ring.Link
	selLink ring.Link
	window  *Window

	widget     TerminalWidget
	widgetGone bool
	disposing  bool

	initialDir string
	pid        int
}

// ID is the tab's arena handle.
func (t *Tab) ID() ring.ID { return t.id }

// Seq is the tab's sequence number; 0 means closed.
func (t *Tab) Seq() uint64 { return t.seq }

// PID is the shell's process id, 0 until the spawn completes.
func (t *Tab) PID() int { return t.pid }

// Window is the owning window, or nil.
func (t *Tab) Window() *Window { return t.window }

// Widget is the live terminal widget, or nil.
func (t *Tab) Widget() TerminalWidget { return t.widget }

// InitialWorkingDirectory is the directory the next spawn will start in.
func (t *Tab) InitialWorkingDirectory() string { return t.initialDir }

// IsClosed reports whether the tab has been closed.
func (t *Tab) IsClosed() bool { return t.seq == 0 }

// IsSelected reports whether the tab is in the selection ring.
func (t *Tab) IsSelected() bool { return t.selLink.Attached() }

// Title is the live window title of the tab's program, or "".
func (t *Tab) Title() string {
	if t.widget == nil {
		return ""
	}
	title, _ := t.widget.WindowTitle()
	return title
}

// ToggleSelected moves the tab in or out of the selection. Closed tabs are
// never added.
func (t *Tab) ToggleSelected() {
	sel := t.rt.selection
	if t.IsSelected() {
		sel.Unlink(t.id)
		return
	}
	if !t.IsClosed() {
		sel.PushBack(t.id)
	}
}

// Close marks the tab closed, drops it from the selection and permanently
// detaches it from its window. Closing twice is harmless.
func (t *Tab) Close() {
	t.seq = 0
	t.rt.selection.Unlink(t.id)
	switch {
	case t.window != nil:
		t.window.DetachTab(t, Permanent)
	case t.widget != nil:
		t.widget.Destroy()
	default:
		t.rt.disposeTab(t)
	}
}

// EnsureTerminalWidget creates the terminal widget and spawns the shell,
// once per tab lifetime. A tab whose widget has been destroyed, or whose
// widget could not be created, stays closed.
func (t *Tab) EnsureTerminalWidget() {
	if t.widget != nil {
		return
	}
	if t.widgetGone {
		t.seq = 0
		return
	}
	t.seq = t.rt.NextSeq()

	w, err := t.rt.terminals.NewTerminal()
	if err != nil {
		topoLog.Error("terminal_create_failed", slog.Uint64("tab", uint64(t.id)), slog.String("error", err.Error()))
		t.widgetGone = true
		t.seq = 0
		t.rt.selection.Unlink(t.id)
		return
	}
	t.widget = w
	w.Configure(t.rt.settings.Terminal)
	w.OnChildExited(func(status int) {
		t.rt.Dispatch(ChildExited{Tab: t, Status: status})
	})
	w.OnWindowTitleChanged(func() {
		t.rt.Dispatch(TitleChanged{Tab: t})
	})
	w.OnDestroy(func() {
		t.rt.Dispatch(WidgetDestroyed{Tab: t})
	})

	dir := t.initialDir
	t.initialDir = ""
	w.Spawn(dir, t.rt.settings.Shell, func(sw TerminalWidget, pid int, err error) {
		t.rt.Dispatch(SpawnComplete{Tab: t, Widget: sw, PID: pid, Err: err})
	})
}

// SetInitialWorkingDirectoryFrom copies the live working directory of
// other's shell. Lookup failures leave the directory unset.
func (t *Tab) SetInitialWorkingDirectoryFrom(other *Tab) {
	if other == nil || other.pid <= 0 {
		return
	}
	dir, err := t.rt.cwdOf(other.pid)
	if err != nil {
		topoLog.Debug("cwd_lookup_failed", slog.Int("pid", other.pid), slog.String("error", err.Error()))
		return
	}
	t.initialDir = dir
}

// SetProcessID records the shell pid once the spawn has completed.
func (t *Tab) SetProcessID(pid int) {
	if pid > 0 {
		t.pid = pid
	}
}

// ReleaseWidget handles the destruction of the tab's widget: the tab is
// closed for good and queued for disposal.
func (t *Tab) ReleaseWidget() {
	t.widget = nil
	t.widgetGone = true
	t.seq = 0
	t.rt.selection.Unlink(t.id)
	if t.window != nil {
		t.window.DetachTab(t, Permanent)
	}
	t.rt.disposeTab(t)
}

// WalkToOpenTab returns the first open tab after t in direction d, skipping
// the ring head and closed tabs. If the walk comes back to t, t is returned
// when it is open. A detached tab yields nil.
func (t *Tab) WalkToOpenTab(d ring.Direction) *Tab {
	if t.window == nil || !t.winLink.Attached() {
		return nil
	}
	r := t.window.tabs
	for id := r.Step(t.id, d); id != t.id; id = r.Step(id, d) {
		if id == ring.Head {
			continue
		}
		if u := t.rt.tabs[id]; !u.IsClosed() {
			return u
		}
	}
	if t.IsClosed() {
		return nil
	}
	return t
}

// ZoomMore scales the font up (sign > 0) or down by one step.
func (t *Tab) ZoomMore(sign int) {
	if t.widget == nil {
		return
	}
	t.widget.SetFontScale(NextZoom(t.widget.FontScale(), sign))
}

// ZoomReset restores the default font scale.
func (t *Tab) ZoomReset() {
	if t.widget != nil {
		t.widget.SetFontScale(1)
	}
}

// NextZoom applies one zoom step to x, clamps it to [ZoomMin, ZoomMax] and
// snaps values close to 1 back to exactly 1.
func NextZoom(x float64, sign int) float64 {
	if sign > 0 {
		x *= ZoomStep
	} else {
		x /= ZoomStep
	}
	switch {
	case x < ZoomMin:
		return ZoomMin
	case x > ZoomMax:
		return ZoomMax
	case x > 0.9 && x < 1.1:
		return 1
	}
	return x
}

// ClipboardCopy copies from the tab's terminal.
func (t *Tab) ClipboardCopy() {
	if t.widget == nil {
		return
	}
	if err := t.widget.CopyClipboard(); err != nil {
		topoLog.Warn("clipboard_copy_failed", slog.Uint64("tab", uint64(t.id)), slog.String("error", err.Error()))
	}
}

// ClipboardPaste pastes into the tab's terminal.
func (t *Tab) ClipboardPaste() {
	if t.widget == nil {
		return
	}
	if err := t.widget.PasteClipboard(); err != nil {
		topoLog.Warn("clipboard_paste_failed", slog.Uint64("tab", uint64(t.id)), slog.String("error", err.Error()))
	}
}
