package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Model is the bubbletea model. Keys go to the visible terminal unless
// they follow the prefix key, in which case they become window commands.
type Model struct {
	app *App

	prefix     key.Binding
	quit       key.Binding
	nextWindow key.Binding
	closeWin   key.Binding

	pending bool
	width   int
	height  int

	// OnQuit runs when the user quits with ctrl+q.
	OnQuit func()
}

// NewModel returns the front end model; prefix is a key name such as
// "ctrl+b".
func NewModel(app *App, prefix string) *Model {
	return &Model{
		app: app,
		prefix: key.NewBinding(
			key.WithKeys(prefix),
			key.WithHelp(prefix, "command prefix"),
		),
		quit: key.NewBinding(
			key.WithKeys("ctrl+q"),
			key.WithHelp("ctrl+q", "quit"),
		),
		nextWindow: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "next window"),
		),
		closeWin: key.NewBinding(
			key.WithKeys("&"),
			key.WithHelp("&", "close window"),
		),
		width:  80,
		height: 24,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.app.Resize(msg.Width, msg.Height)
		return m, nil

	case repaintMsg:
		return m, nil

	case themeMsg:
		if msg.dark {
			InitTheme("dark")
		} else {
			InitTheme("light")
		}
		return m, nil

	case closedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.quit) {
		if m.OnQuit != nil {
			m.OnQuit()
		}
		return m, tea.Quit
	}

	if !m.pending {
		if key.Matches(msg, m.prefix) {
			m.pending = true
			return m, nil
		}
		m.app.Input(keyBytes(msg))
		return m, nil
	}

	m.pending = false
	switch {
	case key.Matches(msg, m.prefix):
		m.app.Input(keyBytes(msg))
	case key.Matches(msg, m.nextWindow):
		m.app.Cycle()
	case key.Matches(msg, m.closeWin):
		m.app.CloseActive()
	case msg.Type == tea.KeyRunes && len(msg.Runes) == 1 && msg.Runes[0] >= '1' && msg.Runes[0] <= '9':
		m.app.Switch(int(msg.Runes[0] - '0'))
	case msg.Type == tea.KeyEsc:
	default:
		if c, ok := prefixChord(msg); ok {
			m.app.SendKey(c)
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	themeMu.RLock()
	defer themeMu.RUnlock()

	rows := max(m.height-1, 1)
	f, ok := m.app.frame(rows)
	if !ok {
		return EmptyStyle.Render("no windows")
	}

	var b strings.Builder
	b.WriteString(m.titleBar(f))
	for i := 0; i < rows; i++ {
		b.WriteByte('\n')
		line := ""
		if off := len(f.lines) - rows; i+off >= 0 && i+off < len(f.lines) {
			line = f.lines[i+off]
		}
		b.WriteString(TerminalStyle.Render(fitWidth(line, m.width)))
	}
	return b.String()
}

func (m *Model) titleBar(f frame) string {
	var right string
	if m.pending {
		right += PrefixStyle.Render("PREFIX")
	}
	if f.scale != 1 {
		right += ZoomStyle.Render(fmt.Sprintf("%.0f%%", f.scale*100))
	}
	if f.count > 1 {
		right += StatusStyle.Render(fmt.Sprintf(" [%d/%d] ", f.index, f.count))
	}
	room := max(m.width-lipgloss.Width(right), 0)
	left := LabelStyle(f.bg).Render(fitWidth(" "+f.label, room))
	return left + right
}

// fitWidth truncates or pads s to exactly width terminal cells.
func fitWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "…")
	}
	return runewidth.FillRight(s, width)
}
