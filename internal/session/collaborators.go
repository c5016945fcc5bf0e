package session

import "image/color"

// TerminalConfig is applied to every terminal widget when it is created and
// again when the user config is reloaded.
type TerminalConfig struct {
	Font               string
	Palette            [16]color.RGBA
	MouseAutohide      bool
	ScrollbackLines    int
	WordCharExceptions string
}

// SpawnFunc receives the outcome of an asynchronous shell spawn. widget is
// nil when the terminal was destroyed before the spawn finished.
type SpawnFunc func(widget TerminalWidget, pid int, err error)

// TerminalWidget is the terminal emulator behind one tab. All methods and
// all registered callbacks run on the event loop goroutine.
type TerminalWidget interface {
	Configure(cfg TerminalConfig)
	// Spawn starts argv in dir (the widget default when dir is empty) and
	// reports the result through done, later, on the loop.
	Spawn(dir string, argv []string, done SpawnFunc)
	// WindowTitle is the title most recently set by the child program.
	WindowTitle() (string, bool)
	FontScale() float64
	SetFontScale(scale float64)
	CopyClipboard() error
	PasteClipboard() error
	OnChildExited(fn func(status int))
	OnWindowTitleChanged(fn func())
	// OnDestroy fires synchronously from Destroy.
	OnDestroy(fn func())
	Destroy()
}

// TerminalFactory creates terminal widgets.
type TerminalFactory interface {
	NewTerminal() (TerminalWidget, error)
}

// TerminalFactoryFunc adapts a function to TerminalFactory.
type TerminalFactoryFunc func() (TerminalWidget, error)

func (f TerminalFactoryFunc) NewTerminal() (TerminalWidget, error) { return f() }

// TopLevel is one toolkit window: a title label above a stack that shows
// one terminal at a time. Methods and callbacks run on the loop goroutine.
type TopLevel interface {
	SetLabel(text string)
	SetBackground(c color.RGBA)
	AddChild(w TerminalWidget)
	RemoveChild(w TerminalWidget)
	// ShowChild makes w the visible child and gives it keyboard focus.
	ShowChild(w TerminalWidget)
	// OnKeyPress handlers return whether the chord was consumed.
	OnKeyPress(fn func(Chord) bool)
	// OnDestroy fires once when the top-level goes away, whether through
	// Destroy or because the user closed it.
	OnDestroy(fn func())
	Show()
	Destroy()
}

// Toolkit creates top-level windows.
type Toolkit interface {
	NewTopLevel(title string, width, height int) TopLevel
}

// EventSink receives topology events.
type EventSink interface {
	Dispatch(ev Event) bool
}
