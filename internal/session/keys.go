package session

import "strings"

// Modifier is a bit set of held modifier keys.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModCtrl
	ModAlt
)

// CommandMods is the exact modifier set for taote's own key chords.
const CommandMods = ModCtrl | ModShift

// Key is a key symbol: the (shifted) rune for printable keys, or one of the
// named keys below.
type Key rune

// Named keys sit above the Unicode range.
const (
	KeyPageUp Key = 0x110000 + iota
	KeyPageDown
	KeyHome
	KeyEnd
)

var keyNames = map[Key]string{
	KeyPageUp:   "PageUp",
	KeyPageDown: "PageDown",
	KeyHome:     "Home",
	KeyEnd:      "End",
}

func (k Key) String() string {
	if n, ok := keyNames[k]; ok {
		return n
	}
	return string(rune(k))
}

// Chord is one key press with its modifiers.
type Chord struct {
	Mods Modifier
	Key  Key
}

func (c Chord) String() string {
	var b strings.Builder
	if c.Mods&ModCtrl != 0 {
		b.WriteString("Ctrl+")
	}
	if c.Mods&ModAlt != 0 {
		b.WriteString("Alt+")
	}
	if c.Mods&ModShift != 0 {
		b.WriteString("Shift+")
	}
	b.WriteString(c.Key.String())
	return b.String()
}
