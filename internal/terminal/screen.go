package terminal

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

const (
	tabWidth = 8

	// maxSequenceData caps how much of an OSC/DCS/APC string is kept.
	maxSequenceData = 4096
)

// Screen is a minimal line-oriented terminal model: enough to render a
// shell's recent output, track the OSC window title and the OSC 7 working
// directory. It is not safe for concurrent use.
type Screen struct {
	parser *ansi.Parser

	lines      [][]rune
	col        int
	cols       int
	rows       int
	scrollback int

	title        string
	hasTitle     bool
	titleChanged bool
	cwd          string
}

// NewScreen returns an empty screen of rows by cols cells that keeps
// scrollback further lines of history.
func NewScreen(rows, cols, scrollback int) *Screen {
	s := &Screen{
		lines:      [][]rune{nil},
		rows:       max(rows, 1),
		cols:       max(cols, 1),
		scrollback: max(scrollback, 0),
	}
	s.parser = ansi.NewParser()
	s.parser.SetDataSize(maxSequenceData)
	s.parser.SetHandler(ansi.Handler{
		Print:     s.put,
		Execute:   s.execute,
		HandleCsi: s.csi,
		HandleEsc: s.esc,
		HandleOsc: s.osc,
	})
	return s
}

// SetRows changes the visible height.
func (s *Screen) SetRows(rows int) {
	if rows > 0 {
		s.rows = rows
		s.trim()
	}
}

// SetSize changes the visible height and width. Lines already written
// keep their content; the cursor is pulled back inside the new width.
func (s *Screen) SetSize(rows, cols int) {
	if cols > 0 {
		s.cols = cols
		s.col = min(s.col, cols-1)
	}
	s.SetRows(rows)
}

// SetScrollback changes how many lines above the visible area are kept.
func (s *Screen) SetScrollback(n int) {
	s.scrollback = max(n, 0)
	s.trim()
}

// Title returns the most recent OSC 0/2 title.
func (s *Screen) Title() (string, bool) { return s.title, s.hasTitle }

// Cwd returns the directory last reported through OSC 7.
func (s *Screen) Cwd() string { return s.cwd }

// Len is the number of retained lines.
func (s *Screen) Len() int { return len(s.lines) }

// Lines returns the last n lines.
func (s *Screen) Lines(n int) []string {
	if n > len(s.lines) || n < 0 {
		n = len(s.lines)
	}
	out := make([]string, 0, n)
	for _, l := range s.lines[len(s.lines)-n:] {
		out = append(out, string(l))
	}
	return out
}

// Text returns the visible lines with trailing blanks trimmed.
func (s *Screen) Text() string {
	lines := s.Lines(s.rows)
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// Write feeds program output into the screen and reports whether the
// title changed. Sequences split across calls are completed by later
// writes.
func (s *Screen) Write(p []byte) (titleChanged bool) {
	s.titleChanged = false
	for _, b := range p {
		s.parser.Advance(b)
	}
	s.trim()
	return s.titleChanged
}

func (s *Screen) execute(b byte) {
	switch b {
	case '\r':
		s.col = 0
	case '\n', ansi.VT, ansi.FF:
		s.newline()
	case '\b':
		if s.col > 0 {
			s.col--
		}
	case '\t':
		s.col = min((s.col/tabWidth+1)*tabWidth, s.cols-1)
	}
}

func (s *Screen) esc(cmd ansi.Cmd) {
	if cmd.Intermediate() == 0 && cmd.Final() == 'c' {
		s.lines = [][]rune{nil}
		s.col = 0
	}
}

// csi handles the cursor and erase sequences a shell prompt uses on the
// current line. Everything else, colours included, is dropped.
func (s *Screen) csi(cmd ansi.Cmd, params ansi.Params) {
	if cmd.Prefix() != 0 || cmd.Intermediate() != 0 {
		return
	}
	n, _, _ := params.Param(0, 1)
	n = min(max(n, 1), s.cols)
	line := s.current()
	switch cmd.Final() {
	case 'C':
		s.col = min(s.col+n, s.cols-1)
	case 'D':
		s.col = max(s.col-n, 0)
	case 'G':
		s.col = n - 1
	case 'K':
		mode, _, _ := params.Param(0, 0)
		switch mode {
		case 0:
			if s.col < len(*line) {
				*line = (*line)[:s.col]
			}
		case 1:
			for i := 0; i <= s.col && i < len(*line); i++ {
				(*line)[i] = ' '
			}
		case 2:
			*line = nil
		}
	case 'J':
		if mode, _, _ := params.Param(0, 0); mode >= 2 {
			s.lines = append(s.lines, make([][]rune, s.rows)...)
			s.col = 0
		}
	}
}

func (s *Screen) osc(cmd int, data []byte) {
	_, arg, ok := bytes.Cut(data, []byte{';'})
	if !ok {
		return
	}
	switch cmd {
	case 0, 2:
		title := string(arg)
		if s.hasTitle && s.title == title {
			return
		}
		s.title, s.hasTitle = title, true
		s.titleChanged = true
	case 7:
		if u, err := url.Parse(string(arg)); err == nil && u.Path != "" {
			s.cwd = u.Path
		}
	}
}

func (s *Screen) current() *[]rune {
	return &s.lines[len(s.lines)-1]
}

func (s *Screen) newline() {
	s.lines = append(s.lines, nil)
}

// put writes r at the cursor, wrapping onto a new line at the right edge.
func (s *Screen) put(r rune) {
	if s.col >= s.cols {
		s.newline()
		s.col = 0
	}
	line := s.current()
	for len(*line) < s.col {
		*line = append(*line, ' ')
	}
	if s.col < len(*line) {
		(*line)[s.col] = r
	} else {
		*line = append(*line, r)
	}
	s.col++
}

func (s *Screen) trim() {
	limit := s.rows + s.scrollback
	if extra := len(s.lines) - limit; extra > 0 {
		s.lines = append(s.lines[:0:0], s.lines[extra:]...)
	}
}
