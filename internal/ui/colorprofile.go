package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// InitColorProfile picks the lipgloss colour profile. TAOTE_COLOR
// (truecolor, 256, 16, none) overrides detection; otherwise TrueColor is
// assumed for terminals known to support it and ANSI256 for the rest.
func InitColorProfile() termenv.Profile {
	p := detectColorProfile(os.Getenv)
	lipgloss.SetColorProfile(p)
	return p
}

func detectColorProfile(getenv func(string) string) termenv.Profile {
	switch strings.ToLower(getenv("TAOTE_COLOR")) {
	case "truecolor", "true", "24bit":
		return termenv.TrueColor
	case "256", "ansi256":
		return termenv.ANSI256
	case "16", "ansi", "basic":
		return termenv.ANSI
	case "none", "off", "ascii":
		return termenv.Ascii
	}

	if ct := getenv("COLORTERM"); ct == "truecolor" || ct == "24bit" {
		return termenv.TrueColor
	}
	term := getenv("TERM")
	for _, t := range []string{"xterm-256color", "screen-256color", "tmux-256color", "xterm-direct", "alacritty", "kitty", "wezterm"} {
		if strings.Contains(term, t) {
			return termenv.TrueColor
		}
	}
	if getenv("WT_SESSION") != "" || getenv("ITERM_SESSION_ID") != "" || getenv("KONSOLE_VERSION") != "" {
		return termenv.TrueColor
	}
	return termenv.ANSI256
}
