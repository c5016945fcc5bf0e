package ui

import (
	"context"
	"log/slog"
	"sync"

	dark "github.com/thiagokokada/dark-mode-go"

	"github.com/taote/taote/internal/logging"
)

var uiLog = logging.ForComponent(logging.CompUI)

// ThemeWatcher follows the OS dark mode setting for theme = "system" and
// reports each change to onChange.
type ThemeWatcher struct {
	onChange  func(isDark bool)
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewThemeWatcher starts watching. It returns nil when the platform offers
// no dark mode notifications.
func NewThemeWatcher(parentCtx context.Context, onChange func(isDark bool)) *ThemeWatcher {
	ctx, cancel := context.WithCancel(parentCtx)

	events, errs, err := dark.WatchDarkMode(ctx)
	if err != nil {
		cancel()
		uiLog.Warn("theme_watcher_init_failed", slog.String("error", err.Error()))
		return nil
	}

	tw := &ThemeWatcher{
		onChange: onChange,
		closeCh:  make(chan struct{}),
	}
	go tw.watchLoop(cancel, events, errs)
	return tw
}

func (tw *ThemeWatcher) watchLoop(cancel context.CancelFunc, events <-chan bool, errs <-chan error) {
	defer cancel()
	for {
		select {
		case <-tw.closeCh:
			return
		case isDark, ok := <-events:
			if !ok {
				return
			}
			uiLog.Info("system_theme_changed", slog.Bool("dark", isDark))
			tw.onChange(isDark)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				uiLog.Warn("theme_watcher_error", slog.String("error", err.Error()))
			}
		}
	}
}

// Close stops the watcher. Safe to call more than once.
func (tw *ThemeWatcher) Close() {
	if tw == nil {
		return
	}
	tw.closeOnce.Do(func() {
		close(tw.closeCh)
	})
}
