// Package terminal implements session.TerminalWidget on top of a pseudo
// terminal. Output is parsed into a Screen for the text front end to draw.
package terminal

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"

	"github.com/taote/taote/internal/clipboard"
	"github.com/taote/taote/internal/logging"
	"github.com/taote/taote/internal/session"
)

var termLog = logging.ForComponent(logging.CompTerminal)

// ErrNoCommand is reported when a spawn is given an empty argv.
var ErrNoCommand = errors.New("terminal: empty command")

// ErrDestroyed is returned by operations on a destroyed widget.
var ErrDestroyed = errors.New("terminal: widget destroyed")

// Factory creates pty widgets.
type Factory struct {
	// Post runs fn on the event loop goroutine.
	Post func(fn func()) bool
	// Repaint is called from reader goroutines when a screen changes.
	Repaint func()
	// ClipboardOut receives OSC 52 sequences when no clipboard tool exists.
	ClipboardOut io.Writer
	// Rows and Cols size new terminals.
	Rows, Cols int
	// Env is appended to the parent environment of every shell.
	Env []string
}

// NewTerminal implements session.TerminalFactory.
func (f *Factory) NewTerminal() (session.TerminalWidget, error) {
	if f.Post == nil {
		return nil, errors.New("terminal: factory has no event loop")
	}
	rows, cols := f.Rows, f.Cols
	if rows <= 0 {
		rows = 24
	}
	if cols <= 0 {
		cols = 80
	}
	return &Widget{
		factory: f,
		scale:   1,
		zoom:    1,
		rows:    rows,
		cols:    cols,
		screen:  NewScreen(rows, cols, session.DefaultScrollbackLines),
	}, nil
}

// Widget is one shell running in a pty.
type Widget struct {
	factory *Factory

	// Loop goroutine only.
	cfg       session.TerminalConfig
	scale     float64
	title     string
	hasTitle  bool
	destroyed bool
	onExit    func(int)
	onTitle   func()
	onDestroy func()

	mu         sync.Mutex
	zoom       float64
	screen     *Screen
	ptmx       *os.File
	cmd        *exec.Cmd
	rows, cols int
	closed     bool
}

var _ session.TerminalWidget = (*Widget)(nil)

// Configure applies terminal settings.
func (w *Widget) Configure(cfg session.TerminalConfig) {
	w.cfg = cfg
	w.mu.Lock()
	w.screen.SetScrollback(cfg.ScrollbackLines)
	w.mu.Unlock()
}

// Config returns the applied settings.
func (w *Widget) Config() session.TerminalConfig { return w.cfg }

// Spawn starts argv on a new pty in the background; done runs on the loop.
func (w *Widget) Spawn(dir string, argv []string, done session.SpawnFunc) {
	if len(argv) == 0 {
		w.factory.Post(func() { done(w, 0, ErrNoCommand) })
		return
	}
	w.mu.Lock()
	rows, cols := w.rows, w.cols
	w.mu.Unlock()

	go func() {
		cmd := exec.Command(argv[0], argv[1:]...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), "TERM=xterm-256color", "COLORTERM=truecolor")
		cmd.Env = append(cmd.Env, w.factory.Env...)
		ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})

		posted := w.factory.Post(func() {
			if w.destroyed {
				if err == nil {
					_ = ptmx.Close()
					_ = cmd.Process.Kill()
					go func() { _ = cmd.Wait() }()
				}
				done(nil, 0, ErrDestroyed)
				return
			}
			if err != nil {
				termLog.Warn("spawn_failed", slog.String("command", argv[0]), slog.String("dir", dir), slog.String("error", err.Error()))
				done(w, 0, err)
				return
			}
			w.mu.Lock()
			w.ptmx, w.cmd = ptmx, cmd
			w.mu.Unlock()
			go w.readLoop(ptmx)
			go w.wait(cmd)
			termLog.Info("spawned", slog.String("command", argv[0]), slog.Int("pid", cmd.Process.Pid))
			done(w, cmd.Process.Pid, nil)
		})
		if !posted && err == nil {
			_ = ptmx.Close()
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		}
	}()
}

func (w *Widget) readLoop(r io.Reader) {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			w.mu.Lock()
			changed := w.screen.Write(buf[:n])
			title, _ := w.screen.Title()
			w.mu.Unlock()
			if changed {
				w.factory.Post(func() { w.setTitle(title) })
			}
			if w.factory.Repaint != nil {
				w.factory.Repaint()
			}
		}
		if err != nil {
			return
		}
	}
}

func (w *Widget) wait(cmd *exec.Cmd) {
	err := cmd.Wait()
	status := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		status = exitErr.ExitCode()
	} else if err != nil {
		status = -1
	}
	w.factory.Post(func() {
		if w.destroyed {
			return
		}
		termLog.Debug("child_exited", slog.Int("pid", cmd.Process.Pid), slog.Int("status", status))
		if w.onExit != nil {
			w.onExit(status)
		}
	})
}

func (w *Widget) setTitle(title string) {
	if w.destroyed {
		return
	}
	w.title, w.hasTitle = title, true
	if w.onTitle != nil {
		w.onTitle()
	}
}

// WindowTitle returns the title set by the child, if any.
func (w *Widget) WindowTitle() (string, bool) { return w.title, w.hasTitle }

// FontScale is the zoom factor.
func (w *Widget) FontScale() float64 { return w.scale }

// SetFontScale sets the zoom factor. A text front end only shows it.
func (w *Widget) SetFontScale(scale float64) {
	w.scale = scale
	w.mu.Lock()
	w.zoom = scale
	w.mu.Unlock()
	if w.factory.Repaint != nil {
		w.factory.Repaint()
	}
}

// CopyClipboard copies the visible screen text.
func (w *Widget) CopyClipboard() error {
	w.mu.Lock()
	text := w.screen.Text()
	w.mu.Unlock()
	res, err := clipboard.Copy(text, w.factory.ClipboardOut)
	if err != nil {
		return err
	}
	termLog.Debug("clipboard_copied", slog.String("method", res.Method), slog.Int("bytes", res.ByteSize))
	return nil
}

// PasteClipboard types the clipboard contents into the shell.
func (w *Widget) PasteClipboard() error {
	text, err := clipboard.Paste()
	if err != nil {
		return err
	}
	_, err = w.Write([]byte(text))
	return err
}

// OnChildExited registers the child exit callback.
func (w *Widget) OnChildExited(fn func(status int)) { w.onExit = fn }

// OnWindowTitleChanged registers the title callback.
func (w *Widget) OnWindowTitleChanged(fn func()) { w.onTitle = fn }

// OnDestroy registers the destroy callback.
func (w *Widget) OnDestroy(fn func()) { w.onDestroy = fn }

// Destroy closes the pty and hangs up the shell. The destroy callback runs
// before Destroy returns.
func (w *Widget) Destroy() {
	if w.destroyed {
		return
	}
	w.destroyed = true
	w.mu.Lock()
	w.closed = true
	ptmx, cmd := w.ptmx, w.cmd
	w.mu.Unlock()
	if ptmx != nil {
		_ = ptmx.Close()
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGHUP)
	}
	if w.onDestroy != nil {
		w.onDestroy()
	}
}

// Destroyed reports whether Destroy has run.
func (w *Widget) Destroyed() bool { return w.destroyed }

// Write sends keyboard input to the shell. Safe from any goroutine.
func (w *Widget) Write(p []byte) (int, error) {
	w.mu.Lock()
	ptmx, closed := w.ptmx, w.closed
	w.mu.Unlock()
	if closed {
		return 0, ErrDestroyed
	}
	if ptmx == nil {
		return 0, nil
	}
	return ptmx.Write(p)
}

// Resize changes the pty and screen size.
func (w *Widget) Resize(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cols == cols && w.rows == rows {
		return
	}
	w.cols, w.rows = cols, rows
	w.screen.SetSize(rows, cols)
	if w.ptmx != nil && !w.closed {
		_ = pty.Setsize(w.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	}
}

// ZoomLevel is FontScale readable from any goroutine.
func (w *Widget) ZoomLevel() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.zoom
}

// Lines returns the last n screen lines. Safe from any goroutine.
func (w *Widget) Lines(n int) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.screen.Lines(n)
}

// Cwd is the working directory the shell last reported through OSC 7.
func (w *Widget) Cwd() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.screen.Cwd()
}
