package session

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	dark "github.com/thiagokokada/dark-mode-go"

	"github.com/taote/taote/internal/platform"
)

// UserConfigFileName is the TOML file inside the taote directory.
const UserConfigFileName = "config.toml"

// Defaults for a fresh install.
const (
	DefaultFont               = "Go Mono Regular 10"
	DefaultScrollbackLines    = 4096
	DefaultWordCharExceptions = "-#%&+,./=?@\\_~:"
	DefaultWindowTitle        = "Terminal"
	DefaultWidth              = 640
	DefaultHeight             = 480
	DefaultPrefix             = "ctrl+b"
	DefaultRemoteListen       = "127.0.0.1:7780"
)

// DefaultPalette is the 16-colour terminal palette.
var DefaultPalette = [16]string{
	"#171421", "#C01C28", "#26A269", "#A2734C",
	"#12488B", "#A347BA", "#2AA1B3", "#D0CFCC",
	"#5E5C64", "#F66151", "#33D17A", "#E9AD0C",
	"#2A7BDE", "#C061CB", "#33C7DE", "#FFFFFF",
}

// DefaultTitleColors is the palette cycled through by the title-colour keys.
var DefaultTitleColors = []TitleColorDef{
	{Name: "Dark Gray", Color: "#6D6E5C"},
	{Name: "Blue", Color: "#0055BF"},
	{Name: "Dark Turquoise", Color: "#008F9B"},
	{Name: "Bright Green", Color: "#4B9F4A"},
	{Name: "Dark Pink", Color: "#C870A0"},
	{Name: "Copper", Color: "#AE7A59"},
	{Name: "Red", Color: "#C91A09"},
	{Name: "Magenta", Color: "#923978"},
}

// UserConfig is ~/.taote/config.toml.
type UserConfig struct {
	// Theme is "dark" (default), "light", or "system"
	Theme string `toml:"theme"`

	Terminal TerminalSettings `toml:"terminal"`
	Window   WindowSettings   `toml:"window"`
	Shell    ShellSettings    `toml:"shell"`
	Keys     KeySettings      `toml:"keys"`
	Logs     LogSettings      `toml:"logs"`
	Remote   RemoteSettings   `toml:"remote"`
	State    StateSettings    `toml:"state"`
}

// TerminalSettings configures every terminal widget.
type TerminalSettings struct {
	Font            string `toml:"font"`
	ScrollbackLines int    `toml:"scrollback_lines"`

	// WordCharExceptions are punctuation characters treated as part of a
	// word for double-click selection. nil means the default set.
	WordCharExceptions *string `toml:"word_char_exceptions"`

	// Palette holds exactly 16 "#RRGGBB" colours when set
	Palette []string `toml:"palette"`

	// MouseAutohide hides the pointer while typing (default: true)
	MouseAutohide *bool `toml:"mouse_autohide"`
}

// TitleColorDef names one title bar colour.
type TitleColorDef struct {
	Name  string `toml:"name"`
	Color string `toml:"color"`
}

// WindowSettings configures top-level windows.
type WindowSettings struct {
	TitleColors       []TitleColorDef `toml:"title_colors"`
	DefaultTitleColor int             `toml:"default_title_color"`
	Title             string          `toml:"title"`
	Width             int             `toml:"width"`
	Height            int             `toml:"height"`
}

// ShellSettings picks the program each tab runs.
type ShellSettings struct {
	// Command overrides $SHELL
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// KeySettings configures the terminal front end.
type KeySettings struct {
	// Prefix is the key that introduces a taote command (default: ctrl+b)
	Prefix string `toml:"prefix"`
}

// LogSettings configures internal/logging.
type LogSettings struct {
	// Level enables logging at "debug", "info", "warn" or "error"; empty
	// disables logging unless TAOTE_DEBUG is set
	Level              string `toml:"level"`
	Format             string `toml:"format"`
	MaxSizeMB          int    `toml:"max_size_mb"`
	MaxBackups         int    `toml:"max_backups"`
	MaxAgeDays         int    `toml:"max_age_days"`
	Compress           bool   `toml:"compress"`
	RingBufferKB       int    `toml:"ring_buffer_kb"`
	AggregateIntervalS int    `toml:"aggregate_interval_secs"`
	PprofAddr          string `toml:"pprof_addr"`
}

// RemoteSettings configures the websocket control server.
type RemoteSettings struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
	// Token, when set, must accompany every request
	Token string `toml:"token"`
	// RatePerSecond and Burst bound commands per connection
	RatePerSecond float64 `toml:"rate_per_second"`
	Burst         int     `toml:"burst"`
}

// StateSettings configures the snapshot database.
type StateSettings struct {
	Disabled          bool `toml:"disabled"`
	HeartbeatSeconds  int  `toml:"heartbeat_seconds"`
	SnapshotDebounceM int  `toml:"snapshot_debounce_ms"`
}

// TitleColor is a resolved title bar colour.
type TitleColor struct {
	Name string
	RGBA color.RGBA
}

// Settings is the resolved, validated form of UserConfig that the topology
// engine runs with.
type Settings struct {
	Terminal          TerminalConfig
	TitleColors       []TitleColor
	DefaultTitleColor int
	WindowTitle       string
	Width             int
	Height            int
	Shell             []string
}

var (
	userConfigCache   *UserConfig
	userConfigCacheMu sync.RWMutex
)

// GetUserConfigPath returns the config file path.
func GetUserConfigPath() (string, error) {
	dir, err := GetTaoteDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, UserConfigFileName), nil
}

// LoadUserConfig returns the cached config, reading the file on first use.
// A parse error is returned alongside the default config.
func LoadUserConfig() (*UserConfig, error) {
	userConfigCacheMu.RLock()
	if c := userConfigCache; c != nil {
		userConfigCacheMu.RUnlock()
		return c, nil
	}
	userConfigCacheMu.RUnlock()

	userConfigCacheMu.Lock()
	defer userConfigCacheMu.Unlock()
	if userConfigCache != nil {
		return userConfigCache, nil
	}

	path, err := GetUserConfigPath()
	if err != nil {
		userConfigCache = &UserConfig{}
		return userConfigCache, nil
	}
	cfg, err := ReadUserConfig(path)
	userConfigCache = cfg
	return cfg, err
}

// ReadUserConfig decodes path without touching the cache. A missing file
// is not an error.
func ReadUserConfig(path string) (*UserConfig, error) {
	var cfg UserConfig
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return &UserConfig{}, fmt.Errorf("config.toml parse error: %w", err)
	}
	return &cfg, nil
}

// ReloadUserConfig drops the cache and reads the file again.
func ReloadUserConfig() (*UserConfig, error) {
	ClearUserConfigCache()
	return LoadUserConfig()
}

// ClearUserConfigCache forgets the cached config.
func ClearUserConfigCache() {
	userConfigCacheMu.Lock()
	userConfigCache = nil
	userConfigCacheMu.Unlock()
}

// SaveUserConfig writes cfg atomically and clears the cache.
func SaveUserConfig(cfg *UserConfig) error {
	path, err := GetUserConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# taote configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return err
	}
	ClearUserConfigCache()
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	_ = f.Sync()
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize config save: %w", err)
	}
	return nil
}

// CreateExampleConfig writes a commented example config unless one exists.
// It returns the path either way.
func CreateExampleConfig() (string, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return path, writeFileAtomic(path, []byte(exampleConfig))
}

const exampleConfig = `# taote configuration
# Changes to [terminal] and [window] colours apply to running windows.

# theme = "dark"   # dark, light or system

[terminal]
# font = "Go Mono Regular 10"
# scrollback_lines = 4096
# word_char_exceptions = "-#%&+,./=?@\\_~:"
# mouse_autohide = true
# palette = [
#   "#171421", "#C01C28", "#26A269", "#A2734C", "#12488B", "#A347BA", "#2AA1B3", "#D0CFCC",
#   "#5E5C64", "#F66151", "#33D17A", "#E9AD0C", "#2A7BDE", "#C061CB", "#33C7DE", "#FFFFFF",
# ]

[window]
# default_title_color = 0
# title = "Terminal"
# [[window.title_colors]]
# name = "Blue"
# color = "#0055BF"

[shell]
# command = "/bin/zsh"
# args = ["-l"]

[keys]
# prefix = "ctrl+b"

[logs]
# level = "info"
# format = "json"

[remote]
# enabled = false
# listen = "127.0.0.1:7780"
# token = ""

[state]
# disabled = false
`

// GetTheme returns the configured theme name, defaulting to "dark".
func GetTheme() string {
	cfg, err := LoadUserConfig()
	if err != nil || cfg == nil {
		return "dark"
	}
	switch cfg.Theme {
	case "dark", "light", "system":
		return cfg.Theme
	}
	return "dark"
}

// ResolveTheme maps "system" onto the OS dark mode setting.
func ResolveTheme() string {
	theme := GetTheme()
	if theme != "system" {
		return theme
	}
	isDark, err := dark.IsDarkMode()
	if err != nil || isDark {
		return "dark"
	}
	return "light"
}

// ParseHexColor accepts "#RRGGBB" or "RRGGBB".
func ParseHexColor(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// Settings resolves the config into engine settings. Invalid entries fall
// back to defaults; the returned error lists what was ignored.
func (c *UserConfig) Settings() (Settings, error) {
	var problems []string
	s := DefaultSettings()

	t := c.Terminal
	if t.Font != "" {
		s.Terminal.Font = t.Font
	}
	if t.ScrollbackLines > 0 {
		s.Terminal.ScrollbackLines = t.ScrollbackLines
	}
	if t.WordCharExceptions != nil {
		s.Terminal.WordCharExceptions = *t.WordCharExceptions
	}
	if t.MouseAutohide != nil {
		s.Terminal.MouseAutohide = *t.MouseAutohide
	}
	if len(t.Palette) > 0 {
		if p, err := parsePalette(t.Palette); err != nil {
			problems = append(problems, err.Error())
		} else {
			s.Terminal.Palette = p
		}
	}

	w := c.Window
	if len(w.TitleColors) > 0 {
		var tc []TitleColor
		for _, d := range w.TitleColors {
			rgba, err := ParseHexColor(d.Color)
			if err != nil {
				problems = append(problems, "title_colors: "+err.Error())
				continue
			}
			tc = append(tc, TitleColor{Name: d.Name, RGBA: rgba})
		}
		if len(tc) > 0 {
			s.TitleColors = tc
		}
	}
	if w.DefaultTitleColor >= 0 && w.DefaultTitleColor < len(s.TitleColors) {
		s.DefaultTitleColor = w.DefaultTitleColor
	} else {
		problems = append(problems, fmt.Sprintf("default_title_color %d out of range", w.DefaultTitleColor))
	}
	if w.Title != "" {
		s.WindowTitle = w.Title
	}
	if w.Width > 0 {
		s.Width = w.Width
	}
	if w.Height > 0 {
		s.Height = w.Height
	}

	if c.Shell.Command != "" {
		s.Shell = append([]string{c.Shell.Command}, c.Shell.Args...)
	} else if len(c.Shell.Args) > 0 {
		s.Shell = append(s.Shell[:1:1], c.Shell.Args...)
	}

	if len(problems) > 0 {
		return s, fmt.Errorf("config: ignored %s", strings.Join(problems, "; "))
	}
	return s, nil
}

func parsePalette(hex []string) ([16]color.RGBA, error) {
	var p [16]color.RGBA
	if len(hex) != len(p) {
		return p, fmt.Errorf("palette needs 16 colours, got %d", len(hex))
	}
	for i, h := range hex {
		c, err := ParseHexColor(h)
		if err != nil {
			return p, fmt.Errorf("palette[%d]: %w", i, err)
		}
		p[i] = c
	}
	return p, nil
}

// DefaultSettings returns the built-in settings with the shell taken from
// the environment.
func DefaultSettings() Settings {
	s := Settings{
		Terminal: TerminalConfig{
			Font:               DefaultFont,
			MouseAutohide:      true,
			ScrollbackLines:    DefaultScrollbackLines,
			WordCharExceptions: DefaultWordCharExceptions,
		},
		WindowTitle: DefaultWindowTitle,
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		Shell:       []string{platform.DefaultShell()},
	}
	s.Terminal.Palette, _ = parsePalette(DefaultPalette[:])
	for _, d := range DefaultTitleColors {
		rgba, _ := ParseHexColor(d.Color)
		s.TitleColors = append(s.TitleColors, TitleColor{Name: d.Name, RGBA: rgba})
	}
	return s
}

// GetLogSettings returns the [logs] section.
func GetLogSettings() LogSettings {
	cfg, _ := LoadUserConfig()
	if cfg == nil {
		return LogSettings{}
	}
	return cfg.Logs
}

// GetRemoteSettings returns [remote] with defaults applied.
func GetRemoteSettings() RemoteSettings {
	var r RemoteSettings
	if cfg, _ := LoadUserConfig(); cfg != nil {
		r = cfg.Remote
	}
	if r.Listen == "" {
		r.Listen = DefaultRemoteListen
	}
	if r.RatePerSecond <= 0 {
		r.RatePerSecond = 20
	}
	if r.Burst <= 0 {
		r.Burst = 10
	}
	return r
}

// GetStateSettings returns [state] with defaults applied.
func GetStateSettings() StateSettings {
	var st StateSettings
	if cfg, _ := LoadUserConfig(); cfg != nil {
		st = cfg.State
	}
	if st.HeartbeatSeconds <= 0 {
		st.HeartbeatSeconds = 10
	}
	if st.SnapshotDebounceM <= 0 {
		st.SnapshotDebounceM = 250
	}
	return st
}

// GetPrefixKey returns the configured prefix key.
func GetPrefixKey() string {
	if cfg, _ := LoadUserConfig(); cfg != nil && cfg.Keys.Prefix != "" {
		return cfg.Keys.Prefix
	}
	return DefaultPrefix
}
