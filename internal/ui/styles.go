package ui

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Theme represents the current color scheme
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

var currentTheme Theme = ThemeDark

type palette struct {
	Bg, Surface, Border, Text, TextDim lipgloss.Color
	Accent, Yellow, Red                lipgloss.Color
}

// Dark Theme - Tokyo Night
var darkColors = palette{
	Bg:      lipgloss.Color("#1a1b26"),
	Surface: lipgloss.Color("#24283b"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Yellow:  lipgloss.Color("#e0af68"),
	Red:     lipgloss.Color("#f7768e"),
}

// Light Theme - Tokyo Night Light variant
var lightColors = palette{
	Bg:      lipgloss.Color("#d5d6db"),
	Surface: lipgloss.Color("#e9e9ec"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Red:     lipgloss.Color("#8c4351"),
}

// themeMu protects the style variables during live theme switches.
var themeMu sync.RWMutex

// Styles rebuilt by InitTheme.
var (
	TerminalStyle lipgloss.Style
	StatusStyle   lipgloss.Style
	PrefixStyle   lipgloss.Style
	ZoomStyle     lipgloss.Style
	EmptyStyle    lipgloss.Style
)

// InitTheme sets the active palette by theme name ("light" or anything
// else for dark).
func InitTheme(theme string) {
	themeMu.Lock()
	defer themeMu.Unlock()
	c := darkColors
	currentTheme = ThemeDark
	if theme == "light" {
		c = lightColors
		currentTheme = ThemeLight
	}

	TerminalStyle = lipgloss.NewStyle().Foreground(c.Text)
	StatusStyle = lipgloss.NewStyle().Foreground(c.TextDim).Background(c.Surface)
	PrefixStyle = lipgloss.NewStyle().Bold(true).Foreground(c.Bg).Background(c.Yellow).Padding(0, 1)
	ZoomStyle = lipgloss.NewStyle().Foreground(c.Accent).Padding(0, 1)
	EmptyStyle = lipgloss.NewStyle().Foreground(c.TextDim).Italic(true)
}

// GetCurrentTheme returns the active theme
func GetCurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

func init() {
	InitTheme("dark")
}

// LabelStyle is the title bar style for a window's title colour. Text is
// black or white, whichever reads better on bg.
func LabelStyle(bg color.RGBA) lipgloss.Style {
	fg := lipgloss.Color("#ffffff")
	if luminance(bg) > 0.55 {
		fg = lipgloss.Color("#000000")
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(fg).
		Background(lipgloss.Color(hexColor(bg)))
}

func luminance(c color.RGBA) float64 {
	return (0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)) / 255
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
