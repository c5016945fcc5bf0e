package ui

import (
	"unicode"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/taote/taote/internal/session"
)

// commandRunes are the punctuation keys bound to window commands.
const commandRunes = "<>_+)"

// prefixChord maps the key typed after the prefix onto the Ctrl+Shift
// chord the dispatcher understands.
func prefixChord(msg tea.KeyMsg) (session.Chord, bool) {
	chord := func(k session.Key) (session.Chord, bool) {
		return session.Chord{Mods: session.CommandMods, Key: k}, true
	}
	switch msg.Type {
	case tea.KeyPgUp:
		return chord(session.KeyPageUp)
	case tea.KeyPgDown:
		return chord(session.KeyPageDown)
	case tea.KeyHome:
		return chord(session.KeyHome)
	case tea.KeyEnd:
		return chord(session.KeyEnd)
	case tea.KeyRunes:
		if len(msg.Runes) != 1 || msg.Alt {
			return session.Chord{}, false
		}
		r := msg.Runes[0]
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			return chord(session.Key(unicode.ToUpper(r)))
		}
		for _, c := range commandRunes {
			if r == c {
				return chord(session.Key(r))
			}
		}
	}
	return session.Chord{}, false
}

// keyBytes encodes a key press the way an xterm would send it to the pty.
func keyBytes(msg tea.KeyMsg) []byte {
	var out []byte
	switch msg.Type {
	case tea.KeyRunes:
		out = []byte(string(msg.Runes))
	case tea.KeySpace:
		out = []byte{' '}
	case tea.KeyUp:
		out = []byte("\x1b[A")
	case tea.KeyDown:
		out = []byte("\x1b[B")
	case tea.KeyRight:
		out = []byte("\x1b[C")
	case tea.KeyLeft:
		out = []byte("\x1b[D")
	case tea.KeyHome:
		out = []byte("\x1b[H")
	case tea.KeyEnd:
		out = []byte("\x1b[F")
	case tea.KeyPgUp:
		out = []byte("\x1b[5~")
	case tea.KeyPgDown:
		out = []byte("\x1b[6~")
	case tea.KeyDelete:
		out = []byte("\x1b[3~")
	case tea.KeyShiftTab:
		out = []byte("\x1b[Z")
	default:
		// Control keys carry their ASCII code as the key type.
		if msg.Type >= 0 && msg.Type <= 0x7f {
			out = []byte{byte(msg.Type)}
		}
	}
	if msg.Alt && len(out) > 0 {
		out = append([]byte{0x1b}, out...)
	}
	return out
}
