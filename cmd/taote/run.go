package main

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/taote/taote/internal/dispatch"
	"github.com/taote/taote/internal/eventloop"
	"github.com/taote/taote/internal/logging"
	"github.com/taote/taote/internal/remote"
	"github.com/taote/taote/internal/session"
	"github.com/taote/taote/internal/statedb"
	"github.com/taote/taote/internal/terminal"
	"github.com/taote/taote/internal/ui"
)

var mainLog = logging.ForComponent(logging.CompUI)

// initLogging applies [logs] from config.toml. TAOTE_DEBUG turns on debug
// logging even when the config leaves it off.
func initLogging(baseDir string) {
	ls := session.GetLogSettings()
	cfg := logging.Config{
		Debug:                 os.Getenv("TAOTE_DEBUG") != "",
		LogDir:                baseDir,
		Level:                 ls.Level,
		Format:                ls.Format,
		MaxSizeMB:             ls.MaxSizeMB,
		MaxBackups:            ls.MaxBackups,
		MaxAgeDays:            ls.MaxAgeDays,
		Compress:              ls.Compress,
		RingBufferSize:        ls.RingBufferKB * 1024,
		AggregateIntervalSecs: ls.AggregateIntervalS,
		PprofAddr:             ls.PprofAddr,
	}
	if cfg.Debug && cfg.Level == "" {
		cfg.Level = "debug"
	}
	logging.Init(cfg)
	stdlog.SetFlags(0)
	stdlog.SetOutput(logging.NewBridgeWriter(logging.CompUI))
}

// watchCrashDumps writes the log ring buffer to disk on SIGUSR1.
func watchCrashDumps(ctx context.Context) {
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	go func() {
		defer signal.Stop(usr1)
		for {
			select {
			case <-ctx.Done():
				return
			case <-usr1:
			}
			path, err := session.GetCrashDumpPath()
			if err == nil {
				err = logging.DumpRingBuffer(path)
			}
			if err != nil {
				mainLog.Error("crash_dump_failed", slog.String("error", err.Error()))
				continue
			}
			mainLog.Info("crash_dump_written", slog.String("path", path))
		}
	}()
}

func runTUI() int {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: taote must run in an interactive terminal")
		return 1
	}

	baseDir, err := session.GetTaoteDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	initLogging(baseDir)
	defer logging.Shutdown()

	userCfg, cfgErr := session.LoadUserConfig()
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", cfgErr)
		mainLog.Warn("config_load_failed", slog.String("error", cfgErr.Error()))
	}
	settings, err := userCfg.Settings()
	if err != nil {
		mainLog.Warn("config_values_ignored", slog.String("error", err.Error()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchCrashDumps(ctx)

	ui.InitColorProfile()
	ui.InitTheme(session.ResolveTheme())

	loop := eventloop.New()
	app := ui.NewApp(loop.Post)
	repaint := eventloop.NewCoalescer(loop.Post)
	defer repaint.Destroy()

	factory := &terminal.Factory{
		Post:         loop.Post,
		Repaint:      func() { repaint.Post("repaint", app.Repaint) },
		ClipboardOut: os.Stdout,
	}
	rt := session.NewRuntime(session.Options{
		Toolkit:   app,
		Terminals: factory,
		Settings:  settings,
		Defer:     loop.Defer,
		OnLastWindowClosed: func() {
			app.Close()
			loop.Quit()
		},
	})
	dispatch.New(rt)

	if session.GetTheme() == "system" {
		tw := ui.NewThemeWatcher(ctx, app.SetDarkMode)
		defer tw.Close()
	}

	if path, err := session.GetUserConfigPath(); err == nil {
		cw, err := session.NewConfigWatcher(path, func(_ *session.UserConfig, s session.Settings) {
			loop.Post(func() { rt.ApplySettings(s) })
		})
		if err != nil {
			mainLog.Warn("config_watch_failed", slog.String("error", err.Error()))
		} else {
			go cw.Start()
			defer cw.Stop()
		}
	}

	var remoteAddr string
	if rs := session.GetRemoteSettings(); rs.Enabled {
		srv := remote.NewServer(remote.Config{
			ListenAddr:    rs.Listen,
			Token:         rs.Token,
			RatePerSecond: rs.RatePerSecond,
			Burst:         rs.Burst,
		}, remote.NewLoopController(loop, rt))
		if err := srv.Listen(); err != nil {
			mainLog.Warn("remote_listen_failed", slog.String("error", err.Error()))
		} else {
			remoteAddr = srv.Addr()
			go func() {
				if err := srv.Serve(); err != nil {
					mainLog.Error("remote_serve_failed", slog.String("error", err.Error()))
				}
			}()
			defer func() {
				sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer scancel()
				_ = srv.Shutdown(sctx)
			}()
		}
	}

	if stop := startStateDB(ctx, loop, rt, remoteAddr); stop != nil {
		defer stop()
	}

	model := ui.NewModel(app, session.GetPrefixKey())
	p := tea.NewProgram(model, tea.WithAltScreen())
	app.Attach(p)

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			p.Quit()
		case <-ctx.Done():
		}
	}()

	loop.Post(func() { rt.Dispatch(session.Activate{}) })

	_, runErr := p.Run()

	// Kill whatever shells are left; the loop quits once the last window
	// is disposed.
	sctx, scancel := context.WithTimeout(ctx, 2*time.Second)
	if err := loop.Call(sctx, rt.Shutdown); err != nil && !errors.Is(err, eventloop.ErrStopped) {
		mainLog.Warn("shutdown_failed", slog.String("error", err.Error()))
	}
	scancel()
	select {
	case <-loopDone:
	case <-time.After(2 * time.Second):
		loop.Quit()
		<-loopDone
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return 1
	}
	return 0
}

// startStateDB registers this process and keeps its snapshot current. It
// returns nil when state is disabled or the database cannot be opened.
func startStateDB(ctx context.Context, loop *eventloop.Loop, rt *session.Runtime, remoteAddr string) func() {
	st := session.GetStateSettings()
	if st.Disabled {
		return nil
	}
	path, err := session.GetStateDBPath()
	if err != nil {
		return nil
	}
	db, err := statedb.Open(path)
	if err == nil {
		err = db.Migrate()
	}
	if err != nil {
		mainLog.Warn("statedb_unavailable", slog.String("error", err.Error()))
		if db != nil {
			db.Close()
		}
		return nil
	}
	statedb.SetGlobal(db)
	heartbeat := time.Duration(st.HeartbeatSeconds) * time.Second
	_ = db.CleanDeadInstances(3 * heartbeat)
	if err := db.RegisterInstance(remoteAddr); err != nil {
		mainLog.Warn("statedb_register_failed", slog.String("error", err.Error()))
	}

	writer := session.NewSnapshotWriter(db)
	debounce := time.Duration(st.SnapshotDebounceM) * time.Millisecond
	scheduled := false
	rt.OnChange(func() {
		if scheduled {
			return
		}
		scheduled = true
		time.AfterFunc(debounce, func() {
			loop.Post(func() {
				scheduled = false
				writer.Submit(rt.Snapshot())
			})
		})
	})

	hbCtx, hbCancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := db.Heartbeat(); err != nil {
					mainLog.Warn("statedb_heartbeat_failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	return func() {
		hbCancel()
		writer.Close()
		_ = db.UnregisterInstance()
		statedb.SetGlobal(nil)
		db.Close()
	}
}
