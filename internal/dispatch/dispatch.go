// Package dispatch routes topology events to the session engine: toolkit
// key chords, terminal widget callbacks and remote commands.
package dispatch

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/sahilm/fuzzy"

	"github.com/taote/taote/internal/logging"
	"github.com/taote/taote/internal/ring"
	"github.com/taote/taote/internal/session"
)

var dispatchLog = logging.ForComponent(logging.CompDispatch)

// Action is one user-level operation on a window.
type Action int

const (
	ActionNone Action = iota
	ActionCopy
	ActionPaste
	ActionNewWindow
	ActionNewTab
	ActionCloseTab
	ActionToggleSelect
	ActionAdopt
	ActionPrev
	ActionNext
	ActionNudgePrev
	ActionNudgeNext
	ActionColorPrev
	ActionColorNext
	ActionZoomOut
	ActionZoomIn
	ActionZoomReset
)

var actionNames = map[Action]string{
	ActionCopy:         "copy",
	ActionPaste:        "paste",
	ActionNewWindow:    "new-window",
	ActionNewTab:       "new-tab",
	ActionCloseTab:     "close-tab",
	ActionToggleSelect: "toggle-select",
	ActionAdopt:        "adopt",
	ActionPrev:         "prev",
	ActionNext:         "next",
	ActionNudgePrev:    "nudge-prev",
	ActionNudgeNext:    "nudge-next",
	ActionColorPrev:    "color-prev",
	ActionColorNext:    "color-next",
	ActionZoomOut:      "zoom-out",
	ActionZoomIn:       "zoom-in",
	ActionZoomReset:    "zoom-reset",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "none"
}

// ParseAction maps a command name such as "new-tab" to its Action.
func ParseAction(name string) (Action, error) {
	for a, n := range actionNames {
		if n == name {
			return a, nil
		}
	}
	if s := SuggestActions(name); len(s) > 0 {
		return ActionNone, fmt.Errorf("unknown command %q (did you mean %q?)", name, s[0])
	}
	return ActionNone, fmt.Errorf("unknown command %q", name)
}

// SuggestActions returns command names that fuzzily match query, best
// match first.
func SuggestActions(query string) []string {
	if query == "" {
		return nil
	}
	names := ActionNames()
	matches := fuzzy.Find(query, names)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, names[m.Index])
	}
	return out
}

// ActionNames lists every command name, sorted.
func ActionNames() []string {
	names := make([]string, 0, len(actionNames))
	for _, n := range actionNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Keymap binds the key of a Ctrl+Shift chord to an action.
var Keymap = map[session.Key]Action{
	'C':                 ActionCopy,
	'V':                 ActionPaste,
	'N':                 ActionNewWindow,
	'T':                 ActionNewTab,
	'Y':                 ActionCloseTab,
	'S':                 ActionToggleSelect,
	'W':                 ActionAdopt,
	'K':                 ActionPrev,
	session.KeyPageUp:   ActionPrev,
	'J':                 ActionNext,
	session.KeyPageDown: ActionNext,
	'H':                 ActionNudgePrev,
	session.KeyHome:     ActionNudgePrev,
	'L':                 ActionNudgeNext,
	session.KeyEnd:      ActionNudgeNext,
	'<':                 ActionColorPrev,
	'>':                 ActionColorNext,
	'_':                 ActionZoomOut,
	'+':                 ActionZoomIn,
	')':                 ActionZoomReset,
}

// Lookup returns the action bound to c, if any. Only chords with exactly
// Ctrl+Shift held are bound.
func Lookup(c session.Chord) (Action, bool) {
	if c.Mods != session.CommandMods {
		return ActionNone, false
	}
	a, ok := Keymap[c.Key]
	return a, ok
}

// Dispatcher is the session.EventSink wired into a Runtime.
type Dispatcher struct {
	rt *session.Runtime
}

// New creates a dispatcher for rt and installs it as rt's sink.
func New(rt *session.Runtime) *Dispatcher {
	d := &Dispatcher{rt: rt}
	rt.SetSink(d)
	return d
}

// Dispatch handles one event and reports whether it was consumed.
func (d *Dispatcher) Dispatch(ev session.Event) bool {
	switch e := ev.(type) {
	case session.Activate:
		session.NewWindow(d.rt, d.rt.Settings().DefaultTitleColor, nil)
		return true

	case session.KeyPress:
		if e.Window == nil || e.Window.Destroying() {
			return false
		}
		a, ok := Lookup(e.Chord)
		if !ok {
			return false
		}
		dispatchLog.Debug("key_action", slog.String("chord", e.Chord.String()), slog.String("action", a.String()))
		Perform(e.Window, a)
		return true

	case session.Command:
		return d.command(e)

	case session.SpawnComplete:
		switch {
		case e.Widget == nil:
			// Terminal destroyed before the spawn finished.
		case e.Err != nil:
			dispatchLog.Warn("spawn_failed", slog.Uint64("tab", uint64(e.Tab.ID())), slog.String("error", e.Err.Error()))
		default:
			e.Tab.SetProcessID(e.PID)
			dispatchLog.Debug("spawn_complete", slog.Uint64("tab", uint64(e.Tab.ID())), slog.Int("pid", e.PID))
		}
		return true

	case session.TitleChanged:
		if w := e.Tab.Window(); w != nil {
			w.UpdateTitleText()
		}
		logging.Aggregate(logging.CompDispatch, "title_changed")
		return true

	case session.ChildExited:
		dispatchLog.Info("child_exited", slog.Uint64("tab", uint64(e.Tab.ID())), slog.Int("status", e.Status))
		e.Tab.Close()
		return true

	case session.WidgetDestroyed:
		e.Tab.ReleaseWidget()
		return true

	case session.WindowDestroyed:
		e.Window.Teardown()
		return true
	}
	return false
}

func (d *Dispatcher) command(c session.Command) bool {
	a, err := ParseAction(c.Name)
	if err != nil {
		dispatchLog.Warn("command_rejected", slog.String("name", c.Name), slog.String("error", err.Error()))
		return false
	}
	w, err := d.rt.Window(c.Window)
	if err != nil {
		if a != ActionNewWindow {
			dispatchLog.Warn("command_rejected", slog.String("name", c.Name), slog.Int("window", c.Window), slog.String("error", err.Error()))
			return false
		}
		session.NewWindow(d.rt, d.rt.Settings().DefaultTitleColor, nil)
		return true
	}
	Perform(w, a)
	return true
}

// Perform applies a to w.
func Perform(w *session.Window, a Action) {
	rt := w.Runtime()
	f := w.Focused()
	n := len(rt.Settings().TitleColors)

	switch a {
	case ActionCopy:
		if f != nil {
			f.ClipboardCopy()
		}
	case ActionPaste:
		if f != nil {
			f.ClipboardPaste()
		}
	case ActionNewWindow:
		session.NewWindow(rt, w.TitleColor(), f)
	case ActionNewTab:
		t := rt.NewTab()
		t.SetInitialWorkingDirectoryFrom(f)
		w.AttachTab(t, true)
	case ActionCloseTab:
		if f != nil {
			f.Close()
		}
	case ActionToggleSelect:
		if f != nil {
			f.ToggleSelected()
			w.UpdateTitleText()
		}
	case ActionAdopt:
		w.AdoptSelectedTabs()
	case ActionPrev:
		w.Walk(ring.Prev, false)
	case ActionNext:
		w.Walk(ring.Next, false)
	case ActionNudgePrev:
		w.Walk(ring.Prev, true)
	case ActionNudgeNext:
		w.Walk(ring.Next, true)
	case ActionColorPrev:
		w.UpdateTitleColor(n - 1)
	case ActionColorNext:
		w.UpdateTitleColor(n + 1)
	case ActionZoomOut:
		if f != nil {
			f.ZoomMore(-1)
		}
	case ActionZoomIn:
		if f != nil {
			f.ZoomMore(1)
		}
	case ActionZoomReset:
		if f != nil {
			f.ZoomReset()
		}
	}
}
