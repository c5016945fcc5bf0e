package session

// Event is the closed set of inputs the dispatcher handles.
type Event interface {
	isEvent()
}

// Activate is delivered once at startup and creates the first window.
type Activate struct{}

// KeyPress is a key chord typed into a window.
type KeyPress struct {
	Window *Window
	Chord  Chord
}

// SpawnComplete reports the result of a tab's shell spawn. Widget is nil
// when the terminal was destroyed before the spawn finished.
type SpawnComplete struct {
	Tab    *Tab
	Widget TerminalWidget
	PID    int
	Err    error
}

// TitleChanged means the program in a tab set a new window title.
type TitleChanged struct {
	Tab *Tab
}

// ChildExited means a tab's shell process ended.
type ChildExited struct {
	Tab    *Tab
	Status int
}

// WidgetDestroyed means a tab's terminal widget is gone.
type WidgetDestroyed struct {
	Tab *Tab
}

// WindowDestroyed means a window's top-level is gone.
type WindowDestroyed struct {
	Window *Window
}

// Command is a named action from the remote-control surface. Window 0
// targets the most recently created live window.
type Command struct {
	Window int
	Name   string
}

func (Activate) isEvent()        {}
func (KeyPress) isEvent()        {}
func (SpawnComplete) isEvent()   {}
func (TitleChanged) isEvent()    {}
func (ChildExited) isEvent()     {}
func (WidgetDestroyed) isEvent() {}
func (WindowDestroyed) isEvent() {}
func (Command) isEvent()         {}
