// Package ui is the text front end: a bubbletea program that shows one
// top-level window at a time and implements session.Toolkit for the
// topology engine.
package ui

import (
	"image/color"
	"io"
	"log/slog"
	"slices"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/taote/taote/internal/session"
)

// resizer is implemented by terminal widgets that track the screen size.
type resizer interface {
	Resize(cols, rows int)
}

// lineSource is implemented by terminal widgets that can be drawn.
type lineSource interface {
	Lines(n int) []string
}

// zoomer reports a widget's font scale from any goroutine.
type zoomer interface {
	ZoomLevel() float64
}

type repaintMsg struct{}

type closedMsg struct{}

type themeMsg struct{ dark bool }

// App implements session.Toolkit. Toolkit calls arrive on the event loop
// goroutine; the bubbletea model reads the same state under mu.
type App struct {
	post func(fn func()) bool

	mu     sync.Mutex
	tops   []*topLevel
	active *topLevel
	nextID int
	cols   int
	rows   int
	send   func(tea.Msg)
}

var _ session.Toolkit = (*App)(nil)

// NewApp returns an App that posts user input to the loop through post.
func NewApp(post func(fn func()) bool) *App {
	return &App{post: post, cols: 80, rows: 24}
}

// Attach connects the App to the running program.
func (a *App) Attach(p *tea.Program) {
	a.mu.Lock()
	a.send = p.Send
	a.mu.Unlock()
}

func (a *App) notify(msg tea.Msg) {
	a.mu.Lock()
	send := a.send
	a.mu.Unlock()
	if send != nil {
		send(msg)
	}
}

// Repaint asks the program to redraw. Safe from any goroutine.
func (a *App) Repaint() { a.notify(repaintMsg{}) }

// Close tells the program that no windows remain.
func (a *App) Close() { a.notify(closedMsg{}) }

// SetDarkMode switches the theme from any goroutine.
func (a *App) SetDarkMode(dark bool) { a.notify(themeMsg{dark: dark}) }

// NewTopLevel implements session.Toolkit.
func (a *App) NewTopLevel(title string, width, height int) session.TopLevel {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	t := &topLevel{app: a, id: a.nextID, title: title}
	a.tops = append(a.tops, t)
	uiLog.Debug("toplevel_created", slog.Int("id", t.id), slog.String("title", title), slog.Int("width", width), slog.Int("height", height))
	return t
}

// TopCount is the number of live top-levels.
func (a *App) TopCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.tops)
}

// Switch shows the n-th (1-based) top-level.
func (a *App) Switch(n int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n < 1 || n > len(a.tops) {
		return false
	}
	a.active = a.tops[n-1]
	return true
}

// Cycle shows the next top-level in creation order.
func (a *App) Cycle() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.tops) == 0 {
		return
	}
	i := slices.Index(a.tops, a.active)
	a.active = a.tops[(i+1)%len(a.tops)]
}

// Resize records the screen size and resizes every terminal. The title
// bar takes one row.
func (a *App) Resize(cols, rows int) {
	a.mu.Lock()
	a.cols, a.rows = cols, rows
	var children []session.TerminalWidget
	for _, t := range a.tops {
		children = append(children, t.children...)
	}
	a.mu.Unlock()
	for _, c := range children {
		if r, ok := c.(resizer); ok {
			r.Resize(cols, max(rows-1, 1))
		}
	}
}

// SendKey routes a chord to the active top-level's key handler on the loop.
func (a *App) SendKey(c session.Chord) {
	a.mu.Lock()
	t := a.active
	a.mu.Unlock()
	if t == nil {
		return
	}
	a.post(func() {
		if fn := t.keyHandler(); fn != nil && !fn(c) {
			uiLog.Debug("chord_unbound", slog.String("chord", c.String()))
		}
	})
}

// CloseActive destroys the active top-level on the loop, as if the user
// closed the window.
func (a *App) CloseActive() {
	a.mu.Lock()
	t := a.active
	a.mu.Unlock()
	if t != nil {
		a.post(t.Destroy)
	}
}

// Input writes raw bytes to the visible terminal of the active top-level.
func (a *App) Input(p []byte) {
	a.mu.Lock()
	var w session.TerminalWidget
	if a.active != nil {
		w = a.active.visible
	}
	a.mu.Unlock()
	if wr, ok := w.(io.Writer); ok && len(p) > 0 {
		if _, err := wr.Write(p); err != nil {
			uiLog.Debug("input_dropped", slog.String("error", err.Error()))
		}
	}
}

// frame is what the model draws for the active top-level.
type frame struct {
	index, count int
	label        string
	bg           color.RGBA
	lines        []string
	scale        float64
}

func (a *App) frame(rows int) (frame, bool) {
	a.mu.Lock()
	t := a.active
	if t == nil {
		a.mu.Unlock()
		return frame{}, false
	}
	f := frame{
		index: slices.Index(a.tops, t) + 1,
		count: len(a.tops),
		label: t.label,
		bg:    t.bg,
		scale: 1,
	}
	visible := t.visible
	a.mu.Unlock()

	if src, ok := visible.(lineSource); ok {
		f.lines = src.Lines(rows)
	}
	if z, ok := visible.(zoomer); ok {
		f.scale = z.ZoomLevel()
	}
	return f, true
}

type topLevel struct {
	app *App
	id  int

	// Guarded by app.mu.
	title     string
	label     string
	bg        color.RGBA
	children  []session.TerminalWidget
	visible   session.TerminalWidget
	shown     bool
	destroyed bool

	// Loop goroutine only.
	onKey     func(session.Chord) bool
	onDestroy func()
}

func (t *topLevel) keyHandler() func(session.Chord) bool {
	if t.isDestroyed() {
		return nil
	}
	return t.onKey
}

func (t *topLevel) isDestroyed() bool {
	t.app.mu.Lock()
	defer t.app.mu.Unlock()
	return t.destroyed
}

func (t *topLevel) update(fn func()) {
	t.app.mu.Lock()
	fn()
	t.app.mu.Unlock()
	t.app.Repaint()
}

func (t *topLevel) SetLabel(text string) { t.update(func() { t.label = text }) }

func (t *topLevel) SetBackground(c color.RGBA) { t.update(func() { t.bg = c }) }

func (t *topLevel) AddChild(w session.TerminalWidget) {
	var cols, rows int
	t.update(func() {
		t.children = append(t.children, w)
		cols, rows = t.app.cols, t.app.rows
	})
	if r, ok := w.(resizer); ok {
		r.Resize(cols, max(rows-1, 1))
	}
}

func (t *topLevel) RemoveChild(w session.TerminalWidget) {
	t.update(func() {
		if i := slices.Index(t.children, w); i >= 0 {
			t.children = slices.Delete(t.children, i, i+1)
		}
		if t.visible == w {
			t.visible = nil
		}
	})
}

func (t *topLevel) ShowChild(w session.TerminalWidget) { t.update(func() { t.visible = w }) }

func (t *topLevel) OnKeyPress(fn func(session.Chord) bool) { t.onKey = fn }

func (t *topLevel) OnDestroy(fn func()) { t.onDestroy = fn }

// Show brings the window to the front.
func (t *topLevel) Show() {
	t.update(func() {
		t.shown = true
		t.app.active = t
	})
}

// Destroy removes the window and fires the destroy callback once.
func (t *topLevel) Destroy() {
	first := false
	t.update(func() {
		if t.destroyed {
			return
		}
		first = true
		t.destroyed = true
		a := t.app
		i := slices.Index(a.tops, t)
		if i >= 0 {
			a.tops = slices.Delete(a.tops, i, i+1)
		}
		if a.active == t {
			a.active = nil
			if len(a.tops) > 0 {
				a.active = a.tops[max(i-1, 0)]
			}
		}
	})
	if !first {
		return
	}
	uiLog.Debug("toplevel_destroyed", slog.Int("id", t.id))
	if t.onDestroy != nil {
		t.onDestroy()
	}
}
