package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Component names attached to every record of a component logger.
const (
	CompTopology = "topology"
	CompDispatch = "dispatch"
	CompLoop     = "loop"
	CompTerminal = "terminal"
	CompUI       = "ui"
	CompConfig   = "config"
	CompState    = "state"
	CompRemote   = "remote"
	CompClip     = "clipboard"
)

// LogFileName is the rotated log file inside Config.LogDir.
const LogFileName = "taote.log"

// Config holds logging configuration.
type Config struct {
	// LogDir is the directory for log files (e.g. ~/.taote)
	LogDir string

	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string

	// Format is "json" (default) or "text"
	Format string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// RingBufferSize is the in-memory crash buffer size in bytes (default: 2MB)
	RingBufferSize int

	// AggregateIntervalSecs is the aggregation flush interval (default: 30)
	AggregateIntervalSecs int

	// PprofAddr starts a pprof server when non-empty
	PprofAddr string

	// Debug forces logging on even without an explicit level
	Debug bool
}

type state struct {
	logger *slog.Logger
	ring   *RingBuffer
	agg    *Aggregator
	file   *lumberjack.Logger
}

var (
	mu     sync.RWMutex
	global state
)

var discard = slog.New(slog.NewJSONHandler(io.Discard, nil))

// ParseLevel maps a config string onto a slog level. Unknown values are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (c *Config) applyDefaults() {
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 3
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 7
	}
	if c.RingBufferSize <= 0 {
		c.RingBufferSize = 2 * 1024 * 1024
	}
	if c.AggregateIntervalSecs <= 0 {
		c.AggregateIntervalSecs = 30
	}
}

// Init installs the global logger. Without Debug and without a Level the
// output is discarded, since the terminal itself belongs to the TUI.
func Init(cfg Config) {
	cfg.applyDefaults()

	mu.Lock()
	defer mu.Unlock()
	closeLocked()

	if (!cfg.Debug && cfg.Level == "") || cfg.LogDir == "" {
		global = state{
			logger: discard,
			ring:   NewRingBuffer(4096),
			agg:    NewAggregator(nil, cfg.AggregateIntervalSecs),
		}
		return
	}

	level := ParseLevel(cfg.Level)
	if cfg.Debug && cfg.Level == "" {
		level = slog.LevelDebug
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, LogFileName),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	ring := NewRingBuffer(cfg.RingBufferSize)
	out := io.MultiWriter(file, ring)

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(out, opts)
	} else {
		h = slog.NewJSONHandler(out, opts)
	}
	logger := slog.New(h)

	agg := NewAggregator(logger, cfg.AggregateIntervalSecs)
	agg.Start()

	global = state{logger: logger, ring: ring, agg: agg, file: file}

	if cfg.PprofAddr != "" {
		startPprof(cfg.PprofAddr)
	}
}

// Logger returns the global logger. Safe to call before Init.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global.logger == nil {
		return discard
	}
	return global.logger
}

// ForComponent returns a logger tagged with component. The handler is
// resolved at log time, so package-level loggers created before Init still
// reach the real output.
func ForComponent(name string) *slog.Logger {
	return slog.New(&componentHandler{component: name})
}

type componentHandler struct {
	component string
	attrs     []slog.Attr
	groups    []string
}

func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Logger().Handler().Enabled(ctx, level)
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	out := Logger().Handler().WithAttrs([]slog.Attr{slog.String("component", h.component)})
	if len(h.attrs) > 0 {
		out = out.WithAttrs(h.attrs)
	}
	for _, g := range h.groups {
		out = out.WithGroup(g)
	}
	return out.Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &c
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.groups = append(append([]string(nil), h.groups...), name)
	return &c
}

// Aggregate counts a high-frequency event; a summary line is emitted per
// flush interval instead of one line per occurrence.
func Aggregate(component, event string, fields ...slog.Attr) {
	mu.RLock()
	agg := global.agg
	mu.RUnlock()
	if agg != nil {
		agg.Record(component, event, fields...)
	}
}

// DumpRingBuffer writes the recent log history to path.
func DumpRingBuffer(path string) error {
	mu.RLock()
	ring := global.ring
	mu.RUnlock()
	if ring == nil {
		return nil
	}
	return ring.DumpToFile(path)
}

// Shutdown flushes the aggregator and closes the log file.
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	global = state{}
}

func closeLocked() {
	if global.agg != nil {
		global.agg.Stop()
	}
	if global.file != nil {
		_ = global.file.Close()
	}
}
