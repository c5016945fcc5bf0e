package session

import (
	"errors"
	"fmt"
	"image/color"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taote/taote/internal/ring"
)

type fakeWidget struct {
	n         int
	cfg       TerminalConfig
	configs   int
	scale     float64
	title     string
	hasTitle  bool
	destroyed bool

	spawnDir  string
	spawnArgv []string
	spawnDone SpawnFunc

	onExit    func(int)
	onTitle   func()
	onDestroy func()

	copies, pastes int
	copyErr        error
}

func (w *fakeWidget) Configure(cfg TerminalConfig) { w.cfg = cfg; w.configs++ }
func (w *fakeWidget) Spawn(dir string, argv []string, done SpawnFunc) {
	w.spawnDir, w.spawnArgv, w.spawnDone = dir, argv, done
}
func (w *fakeWidget) WindowTitle() (string, bool) { return w.title, w.hasTitle }
func (w *fakeWidget) FontScale() float64 { return w.scale }
func (w *fakeWidget) SetFontScale(s float64) { w.scale = s }
func (w *fakeWidget) CopyClipboard() error { w.copies++; return w.copyErr }
func (w *fakeWidget) PasteClipboard() error { w.pastes++; return nil }
func (w *fakeWidget) OnChildExited(fn func(int)) { w.onExit = fn }
func (w *fakeWidget) OnWindowTitleChanged(fn func()) { w.onTitle = fn }
func (w *fakeWidget) OnDestroy(fn func()) { w.onDestroy = fn }
func (w *fakeWidget) Destroy() {
	if w.destroyed {
		return
	}
	w.destroyed = true
	if w.onDestroy != nil {
		w.onDestroy()
	}
}

func (w *fakeWidget) completeSpawn(pid int) {
	if w.destroyed {
		w.spawnDone(nil, 0, errors.New("destroyed"))
		return
	}
	w.spawnDone(w, pid, nil)
}

func (w *fakeWidget) setTitle(s string) {
	w.title, w.hasTitle = s, true
	w.onTitle()
}

type fakeFactory struct {
	made []*fakeWidget
	fail bool
}

func (f *fakeFactory) NewTerminal() (TerminalWidget, error) {
	if f.fail {
		return nil, errors.New("no pty")
	}
	w := &fakeWidget{n: len(f.made) + 1, scale: 1}
	f.made = append(f.made, w)
	return w, nil
}

type fakeTop struct {
	title         string
	width, height int
	label         string
	bg            color.RGBA
	children      []TerminalWidget
	visible       TerminalWidget
	onKey         func(Chord) bool
	onDestroy     func()
	shown         bool
	destroyCalls  int
	destroyFired  int
}

func (t *fakeTop) SetLabel(s string) { t.label = s }
func (t *fakeTop) SetBackground(c color.RGBA) { t.bg = c }
func (t *fakeTop) AddChild(w TerminalWidget) { t.children = append(t.children, w) }
func (t *fakeTop) RemoveChild(w TerminalWidget) {
	if i := slices.Index(t.children, w); i >= 0 {
		t.children = slices.Delete(t.children, i, i+1)
	}
	if t.visible == w {
		t.visible = nil
	}
}
func (t *fakeTop) ShowChild(w TerminalWidget) { t.visible = w }
func (t *fakeTop) OnKeyPress(fn func(Chord) bool) { t.onKey = fn }
func (t *fakeTop) OnDestroy(fn func()) { t.onDestroy = fn }
func (t *fakeTop) Show() { t.shown = true }
func (t *fakeTop) Destroy() {
	t.destroyCalls++
	if t.destroyFired == 0 {
		t.destroyFired++
		t.onDestroy()
	}
}

type fakeToolkit struct {
	tops []*fakeTop
}

func (k *fakeToolkit) NewTopLevel(title string, w, h int) TopLevel {
	t := &fakeTop{title: title, width: w, height: h}
	k.tops = append(k.tops, t)
	return t
}

// testSink routes widget and toolkit events the way the dispatcher does.
type testSink struct{}

func (testSink) Dispatch(ev Event) bool {
	switch e := ev.(type) {
	case SpawnComplete:
		if e.Widget != nil && e.Err == nil {
			e.Tab.SetProcessID(e.PID)
		}
	case TitleChanged:
		if w := e.Tab.Window(); w != nil {
			w.UpdateTitleText()
		}
	case ChildExited:
		e.Tab.Close()
	case WidgetDestroyed:
		e.Tab.ReleaseWidget()
	case WindowDestroyed:
		e.Window.Teardown()
	default:
		return false
	}
	return true
}

type harness struct {
	t     *testing.T
	rt    *Runtime
	kit   *fakeToolkit
	terms *fakeFactory
	idle  []func()
	quits int
	cwd   map[int]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, kit: &fakeToolkit{}, terms: &fakeFactory{}, cwd: map[int]string{}}
	s := DefaultSettings()
	s.Shell = []string{"/bin/test-sh", "-i"}
	h.rt = NewRuntime(Options{
		Toolkit:   h.kit,
		Terminals: h.terms,
		Settings:  s,
		Defer:     func(fn func()) { h.idle = append(h.idle, fn) },
		ProcessCwd: func(pid int) (string, error) {
			if d, ok := h.cwd[pid]; ok {
				return d, nil
			}
			return "", fmt.Errorf("no cwd for %d", pid)
		},
		OnLastWindowClosed: func() { h.quits++ },
	})
	h.rt.SetSink(testSink{})
	return h
}

func (h *harness) drain() {
	for len(h.idle) > 0 {
		fn := h.idle[0]
		h.idle = h.idle[1:]
		fn()
	}
}

func (h *harness) newWindow() *Window {
	return NewWindow(h.rt, 0, nil)
}

// newTab attaches a fresh focused tab to w.
func (h *harness) newTab(w *Window) *Tab {
	t := h.rt.NewTab()
	w.AttachTab(t, true)
	return t
}

func widgetOf(t *Tab) *fakeWidget {
	if t == nil || t.widget == nil {
		return nil
	}
	return t.widget.(*fakeWidget)
}

func topOf(w *Window) *fakeTop { return w.top.(*fakeTop) }

func ids(tabs []*Tab) []ring.ID {
	out := make([]ring.ID, len(tabs))
	for i, t := range tabs {
		out[i] = t.id
	}
	return out
}

// checkInvariants asserts the ownership and link invariants over the
// whole runtime.
func (h *harness) checkInvariants() {
	t := h.t
	t.Helper()
	owner := map[ring.ID]*Window{}
	for _, w := range h.rt.windows {
		for id := range w.tabs.All() {
			_, dup := owner[id]
			require.False(t, dup, "tab %d in two window rings", id)
			owner[id] = w
		}
		if w.focused != nil {
			require.Equal(t, w, w.focused.window, "focused tab of window %d not owned by it", w.id)
			require.False(t, w.focused.IsClosed(), "window %d focuses a closed tab", w.id)
		}
	}
	selected := map[ring.ID]bool{}
	for id := range h.rt.selection.All() {
		selected[id] = true
	}
	for id, tab := range h.rt.tabs {
		w, linked := owner[id]
		require.Equal(t, linked, tab.winLink.Attached(), "tab %d window link", id)
		require.Equal(t, linked, tab.window != nil, "tab %d back-reference", id)
		if linked {
			require.Equal(t, w, tab.window)
		}
		require.Equal(t, selected[id], tab.selLink.Attached(), "tab %d selection link", id)
		if tab.IsClosed() {
			require.False(t, tab.IsSelected(), "closed tab %d selected", id)
		}
	}
}
