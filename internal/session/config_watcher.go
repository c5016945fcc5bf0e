package session

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/taote/taote/internal/logging"
	"github.com/taote/taote/internal/platform"
)

var configLog = logging.ForComponent(logging.CompConfig)

// ConfigWatcher reloads config.toml when it changes on disk and hands the
// resolved settings to onChange. Editors that save through a rename are
// handled by watching the directory rather than the file.
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(*UserConfig, Settings)

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	timer *time.Timer
}

// NewConfigWatcher watches the directory containing path.
func NewConfigWatcher(path string, onChange func(*UserConfig, Settings)) (*ConfigWatcher, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if msg := platform.CheckFsnotifySupport(path); msg != "" {
		configLog.Warn("config_watch_unreliable", slog.String("path", path), slog.String("reason", msg))
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ConfigWatcher{
		path:     path,
		watcher:  fw,
		debounce: 150 * time.Millisecond,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start watches until Stop. Run it in its own goroutine.
func (w *ConfigWatcher) Start() {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		configLog.Warn("config_watch_add_failed", slog.String("dir", dir), slog.String("error", err.Error()))
		return
	}
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			configLog.Warn("config_watch_error", slog.String("error", err.Error()))
		}
	}
}

func (w *ConfigWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *ConfigWatcher) reload() {
	if w.ctx.Err() != nil {
		return
	}
	cfg, err := ReadUserConfig(w.path)
	if err != nil {
		configLog.Warn("config_reload_failed", slog.String("error", err.Error()))
		return
	}
	s, err := cfg.Settings()
	if err != nil {
		configLog.Warn("config_values_ignored", slog.String("error", err.Error()))
	}
	ClearUserConfigCache()
	configLog.Info("config_reloaded", slog.String("path", w.path))
	w.onChange(cfg, s)
}

// Stop ends watching. Pending reloads are dropped.
func (w *ConfigWatcher) Stop() {
	w.cancel()
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	_ = w.watcher.Close()
}
