package ui

import (
	"image/color"
	"testing"

	"github.com/muesli/termenv"
)

func TestInitTheme(t *testing.T) {
	t.Cleanup(func() { InitTheme("dark") })

	InitTheme("light")
	if GetCurrentTheme() != ThemeLight {
		t.Errorf("theme = %q, want light", GetCurrentTheme())
	}
	InitTheme("anything")
	if GetCurrentTheme() != ThemeDark {
		t.Errorf("theme = %q, want dark", GetCurrentTheme())
	}
}

func TestHexColor(t *testing.T) {
	if got := hexColor(color.RGBA{R: 0x00, G: 0x55, B: 0xbf, A: 0xff}); got != "#0055bf" {
		t.Errorf("hexColor = %q", got)
	}
}

func TestLabelStyleContrast(t *testing.T) {
	if luminance(color.RGBA{R: 0xff, G: 0xff, B: 0xff}) < 0.99 {
		t.Error("white should have full luminance")
	}
	if luminance(color.RGBA{R: 0x00, G: 0x55, B: 0xbf}) > 0.55 {
		t.Error("blue title colour should get white text")
	}
	_ = LabelStyle(color.RGBA{R: 0xe9, G: 0xad, B: 0x0c}).Render("x")
}

func TestDetectColorProfile(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want termenv.Profile
	}{
		{"override none", map[string]string{"TAOTE_COLOR": "none", "COLORTERM": "truecolor"}, termenv.Ascii},
		{"override 256", map[string]string{"TAOTE_COLOR": "256"}, termenv.ANSI256},
		{"colorterm", map[string]string{"COLORTERM": "24bit"}, termenv.TrueColor},
		{"kitty", map[string]string{"TERM": "xterm-kitty"}, termenv.TrueColor},
		{"plain", map[string]string{"TERM": "vt100"}, termenv.ANSI256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectColorProfile(func(k string) string { return tt.env[k] })
			if got != tt.want {
				t.Errorf("detectColorProfile = %v, want %v", got, tt.want)
			}
		})
	}
}
