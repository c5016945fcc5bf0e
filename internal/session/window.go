package session

import (
	"fmt"
	"log/slog"

	"github.com/taote/taote/internal/ring"
)

// Selection markers shown at the start of the title label.
const (
	MarkSelected   = "☑"
	MarkUnselected = "☐"
)

// Window is one top-level holding a ring of tabs, one of them focused.
type Window struct {
	rt  *Runtime
	id  int
	top TopLevel

	tabs    *ring.Ring
	focused *Tab

	titleColor int
	label      string

	// guard keeps the window alive while it is momentarily empty during
	// adoption.
	guard      bool
	destroying bool
}

// NewWindow creates a window. It adopts the current selection or, when
// nothing is selected, starts one tab in the working directory of cwdTab.
func NewWindow(rt *Runtime, titleColor int, cwdTab *Tab) *Window {
	w := &Window{rt: rt, titleColor: titleColor}
	w.tabs = ring.New(rt.windowLink)
	rt.registerWindow(w)

	s := rt.settings
	w.top = rt.toolkit.NewTopLevel(s.WindowTitle, s.Width, s.Height)
	w.top.OnKeyPress(func(c Chord) bool {
		return rt.Dispatch(KeyPress{Window: w, Chord: c})
	})
	w.top.OnDestroy(func() {
		rt.Dispatch(WindowDestroyed{Window: w})
	})
	topoLog.Info("window_created", slog.Int("window", w.id), slog.Int("title_color", titleColor))

	if !w.AdoptSelectedTabs() {
		t := rt.NewTab()
		t.SetInitialWorkingDirectoryFrom(cwdTab)
		w.AttachTab(t, true)
	}
	w.UpdateTitleColor(0)
	w.top.Show()

	if w.focused == nil && !w.destroying {
		topoLog.Warn("window_empty_after_create", slog.Int("window", w.id))
		w.destroy()
	}
	return w
}

// ID is the window number, counted from 1 in creation order.
func (w *Window) ID() int { return w.id }

// Runtime is the context the window belongs to.
func (w *Window) Runtime() *Runtime { return w.rt }

// Focused is the visible tab, or nil.
func (w *Window) Focused() *Tab { return w.focused }

// TitleColor is the index into the title palette.
func (w *Window) TitleColor() int { return w.titleColor }

// Label is the most recent title text.
func (w *Window) Label() string { return w.label }

// Destroying reports whether the window is being torn down.
func (w *Window) Destroying() bool { return w.destroying }

// Tabs returns the ring members in order, closed ones included.
func (w *Window) Tabs() []*Tab {
	var out []*Tab
	for id := range w.tabs.All() {
		out = append(out, w.rt.tabs[id])
	}
	return out
}

// AttachTab moves t into this window after the focused tab. With activate
// the tab also becomes focused.
func (w *Window) AttachTab(t *Tab, activate bool) {
	t.seq = w.rt.NextSeq()
	if t.window != nil {
		t.window.DetachTab(t, Temporary)
	}
	t.EnsureTerminalWidget()
	if t.IsClosed() {
		if t.widget == nil {
			w.rt.disposeTab(t)
		}
		return
	}

	anchor := ring.Head
	if w.focused != nil {
		anchor = w.focused.id
	}
	t.window = w
	w.tabs.InsertAfter(anchor, t.id)
	w.top.AddChild(t.widget)

	if activate {
		w.focused = t
		w.top.ShowChild(t.widget)
		w.UpdateTitleText()
	}
	topoLog.Debug("tab_attached",
		slog.Int("window", w.id),
		slog.Uint64("tab", uint64(t.id)),
		slog.Bool("activate", activate))
}

// DetachTab removes t from this window. A permanent detach destroys the
// terminal; a temporary one only takes it out of the stack. The window
// refocuses by MRU, and destroys itself when nothing open is left unless
// it is guarded.
func (w *Window) DetachTab(t *Tab, p Permanence) {
	if t.window != w {
		return
	}
	widget := t.widget
	t.window = nil
	w.tabs.Unlink(t.id)
	if widget != nil {
		w.top.RemoveChild(widget)
	}
	if p == Permanent {
		if widget != nil {
			widget.Destroy()
		} else {
			w.rt.disposeTab(t)
		}
	}
	topoLog.Debug("tab_detached",
		slog.Int("window", w.id),
		slog.Uint64("tab", uint64(t.id)),
		slog.Bool("permanent", bool(p)))

	if w.focused == t {
		w.focused = w.MostRecentlyUsedOpenTab()
	}
	if w.focused != nil {
		w.focused.EnsureTerminalWidget()
		if w.focused.widget != nil {
			w.top.ShowChild(w.focused.widget)
		}
		w.UpdateTitleText()
	} else if !w.guard {
		w.destroy()
	}
}

// MostRecentlyUsedOpenTab is the open tab with the highest sequence number.
func (w *Window) MostRecentlyUsedOpenTab() *Tab {
	var best *Tab
	for id := range w.tabs.All() {
		t := w.rt.tabs[id]
		if t.seq > 0 && (best == nil || t.seq > best.seq) {
			best = t
		}
	}
	return best
}

// AdoptSelectedTabs moves every selected tab into this window, focusing the
// last one. It reports whether anything was adopted.
func (w *Window) AdoptSelectedTabs() bool {
	sel := w.rt.selection
	if sel.Empty() {
		return false
	}
	w.guard = true
	n := 0
	for id := sel.PopFront(); id != ring.None; id = sel.PopFront() {
		w.AttachTab(w.rt.tabs[id], sel.Empty())
		n++
	}
	w.guard = false
	sel.Reset()
	topoLog.Info("tabs_adopted", slog.Int("window", w.id), slog.Int("count", n))

	if w.focused == nil {
		w.focused = w.MostRecentlyUsedOpenTab()
		if w.focused != nil && w.focused.widget != nil {
			w.top.ShowChild(w.focused.widget)
			w.UpdateTitleText()
		}
	}
	return true
}

// Walk moves focus to the next open tab in direction d. With reorder the
// focus stays put and the focused tab moves one open tab along instead;
// moving past either end wraps it to the other end of the ring.
func (w *Window) Walk(d ring.Direction, reorder bool) {
	f := w.focused
	if f == nil {
		return
	}
	t := f.WalkToOpenTab(d)
	if t == nil || t == f {
		return
	}
	t.seq = w.rt.NextSeq()
	if !reorder {
		w.focused = t
		if t.widget != nil {
			w.top.ShowChild(t.widget)
		}
	} else {
		// Across the head this lands f just past the first tab on the
		// other end, not at the front.
		w.tabs.Unlink(f.id)
		w.tabs.Splice(t.id, f.id, d)
	}
	w.UpdateTitleText()
}

// UpdateTitleColor shifts the title colour by delta, wrapping around the
// palette, and repaints the title background.
func (w *Window) UpdateTitleColor(delta int) {
	n := len(w.rt.settings.TitleColors)
	if n == 0 {
		return
	}
	w.titleColor = ((w.titleColor+delta)%n + n) % n
	w.top.SetBackground(w.rt.settings.TitleColors[w.titleColor].RGBA)
}

// TitleText composes "<marker>  <pos>/<count>  <title>" for the focused tab.
func (w *Window) TitleText() string {
	count, pos := 0, 0
	for id := range w.tabs.All() {
		t := w.rt.tabs[id]
		if t.IsClosed() {
			continue
		}
		count++
		if t == w.focused {
			pos = count
		}
	}
	mark, title := MarkUnselected, ""
	if f := w.focused; f != nil {
		if f.IsSelected() {
			mark = MarkSelected
		}
		title = f.Title()
	}
	return fmt.Sprintf("%s  %d/%d  %s", mark, pos, count, title)
}

// UpdateTitleText refreshes the title label.
func (w *Window) UpdateTitleText() {
	w.label = w.TitleText()
	w.top.SetLabel(w.label)
}

// destroy asks the toolkit to drop the top-level, at most once. Teardown
// follows from the toolkit's destroy callback.
func (w *Window) destroy() {
	if w.destroying {
		return
	}
	w.destroying = true
	topoLog.Info("window_destroy", slog.Int("window", w.id))
	w.top.Destroy()
}

// Teardown runs when the top-level is gone: every remaining tab's terminal
// is destroyed and the window is disposed on the idle queue.
func (w *Window) Teardown() {
	w.destroying = true
	for id := range w.tabs.All() {
		t := w.rt.tabs[id]
		w.tabs.Unlink(id)
		t.window = nil
		t.seq = 0
		w.rt.selection.Unlink(id)
		if t.widget != nil {
			t.widget.Destroy()
		} else {
			w.rt.disposeTab(t)
		}
	}
	w.focused = nil
	w.rt.disposeWindow(w)
}
