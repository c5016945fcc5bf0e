// Package session is the tab/window topology engine: tabs grouped into
// windows, MRU focus tracking through sequence numbers, and a selection
// that moves tabs between windows. It also owns the user configuration.
//
// Everything in this package runs on the event loop goroutine.
package session

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/taote/taote/internal/logging"
	"github.com/taote/taote/internal/platform"
	"github.com/taote/taote/internal/ring"
)

var topoLog = logging.ForComponent(logging.CompTopology)

// ErrNoWindow is returned when a command targets a window that does not exist.
var ErrNoWindow = errors.New("session: no such window")

// Options wires a Runtime to its collaborators.
type Options struct {
	Toolkit   Toolkit
	Terminals TerminalFactory
	Settings  Settings

	// Defer schedules fn on the loop's idle queue.
	Defer func(fn func())

	// ProcessCwd resolves a pid's working directory. Defaults to
	// platform.ProcessCwd.
	ProcessCwd func(pid int) (string, error)

	// OnLastWindowClosed runs once every window has been disposed.
	OnLastWindowClosed func()
}

// Runtime is the process-wide context: tab arena, sequence counter,
// selection ring and window registry.
type Runtime struct {
	seq    uint64
	nextID ring.ID
	tabs   map[ring.ID]*Tab

	selection *ring.Ring

	windows      []*Window
	nextWindowID int

	toolkit   Toolkit
	terminals TerminalFactory
	settings  Settings
	deferFn   func(func())
	cwdOf     func(int) (string, error)
	onEmpty   func()
	sink      EventSink
	observers []func()
}

// NewRuntime returns a Runtime with no windows.
func NewRuntime(opts Options) *Runtime {
	rt := &Runtime{
		tabs:      make(map[ring.ID]*Tab),
		toolkit:   opts.Toolkit,
		terminals: opts.Terminals,
		settings:  opts.Settings,
		deferFn:   opts.Defer,
		cwdOf:     opts.ProcessCwd,
		onEmpty:   opts.OnLastWindowClosed,
	}
	if rt.cwdOf == nil {
		rt.cwdOf = platform.ProcessCwd
	}
	if rt.deferFn == nil {
		rt.deferFn = func(fn func()) { fn() }
	}
	if len(rt.settings.TitleColors) == 0 {
		rt.settings.TitleColors = DefaultSettings().TitleColors
	}
	if len(rt.settings.Shell) == 0 {
		rt.settings.Shell = []string{platform.DefaultShell()}
	}
	rt.selection = ring.New(func(id ring.ID) *ring.Link {
		if t := rt.tabs[id]; t != nil {
			return &t.selLink
		}
		return nil
	})
	return rt
}

// SetSink installs the dispatcher that receives widget and toolkit events.
func (rt *Runtime) SetSink(s EventSink) { rt.sink = s }

// Dispatch hands ev to the sink and then notifies observers.
func (rt *Runtime) Dispatch(ev Event) bool {
	if rt.sink == nil {
		return false
	}
	handled := rt.sink.Dispatch(ev)
	rt.notify()
	return handled
}

// OnChange registers fn to run after every dispatched event.
func (rt *Runtime) OnChange(fn func()) {
	rt.observers = append(rt.observers, fn)
}

func (rt *Runtime) notify() {
	for _, fn := range rt.observers {
		fn()
	}
}

// Settings returns the active settings.
func (rt *Runtime) Settings() Settings { return rt.settings }

// NextSeq advances and returns the global sequence counter.
func (rt *Runtime) NextSeq() uint64 {
	rt.seq++
	return rt.seq
}

// NewTab allocates a detached, unselected tab with a fresh sequence number.
func (rt *Runtime) NewTab() *Tab {
	rt.nextID++
	t := &Tab{rt: rt, id: rt.nextID, seq: rt.NextSeq()}
	rt.tabs[t.id] = t
	topoLog.Debug("tab_created", slog.Uint64("tab", uint64(t.id)))
	return t
}

// Tab looks a tab up by id.
func (rt *Runtime) Tab(id ring.ID) *Tab { return rt.tabs[id] }

// TabCount is the number of tabs not yet disposed.
func (rt *Runtime) TabCount() int { return len(rt.tabs) }

// Windows returns live windows in creation order.
func (rt *Runtime) Windows() []*Window {
	return slices.Clone(rt.windows)
}

// Window returns the live window with the given id. id 0 selects the most
// recently created one.
func (rt *Runtime) Window(id int) (*Window, error) {
	for i := len(rt.windows) - 1; i >= 0; i-- {
		w := rt.windows[i]
		if w.destroying {
			continue
		}
		if id == 0 || w.id == id {
			return w, nil
		}
	}
	return nil, ErrNoWindow
}

// SelectedTabs returns the selection in ring order.
func (rt *Runtime) SelectedTabs() []*Tab {
	var out []*Tab
	for id := range rt.selection.All() {
		out = append(out, rt.tabs[id])
	}
	return out
}

// ApplySettings swaps in new settings and pushes colours and terminal
// configuration into live windows and widgets.
func (rt *Runtime) ApplySettings(s Settings) {
	if len(s.TitleColors) == 0 {
		s.TitleColors = rt.settings.TitleColors
	}
	if len(s.Shell) == 0 {
		s.Shell = rt.settings.Shell
	}
	rt.settings = s
	for _, w := range rt.windows {
		if w.destroying {
			continue
		}
		w.UpdateTitleColor(0)
		for id := range w.tabs.All() {
			if t := rt.tabs[id]; t.widget != nil {
				t.widget.Configure(s.Terminal)
			}
		}
	}
	rt.notify()
	topoLog.Info("settings_applied", slog.Int("windows", len(rt.windows)))
}

// Shutdown destroys every live window. Teardown of each follows through
// the toolkit's destroy callback.
func (rt *Runtime) Shutdown() {
	for _, w := range rt.Windows() {
		w.destroy()
	}
}

func (rt *Runtime) windowLink(id ring.ID) *ring.Link {
	if t := rt.tabs[id]; t != nil {
		return &t.winLink
	}
	return nil
}

// disposeTab removes t from the arena on the idle queue. Safe to call more
// than once.
func (rt *Runtime) disposeTab(t *Tab) {
	if t.disposing {
		return
	}
	t.disposing = true
	rt.deferFn(func() {
		rt.selection.Unlink(t.id)
		if t.window != nil {
			t.window.tabs.Unlink(t.id)
			t.window = nil
		}
		delete(rt.tabs, t.id)
		topoLog.Debug("tab_disposed", slog.Uint64("tab", uint64(t.id)))
	})
}

func (rt *Runtime) registerWindow(w *Window) {
	rt.nextWindowID++
	w.id = rt.nextWindowID
	rt.windows = append(rt.windows, w)
}

// disposeWindow drops w from the registry on the idle queue and reports
// when no windows remain.
func (rt *Runtime) disposeWindow(w *Window) {
	rt.deferFn(func() {
		i := slices.Index(rt.windows, w)
		if i < 0 {
			return
		}
		rt.windows = slices.Delete(rt.windows, i, i+1)
		topoLog.Debug("window_disposed", slog.Int("window", w.id), slog.Int("remaining", len(rt.windows)))
		if len(rt.windows) == 0 && rt.onEmpty != nil {
			rt.onEmpty()
		}
	})
}
