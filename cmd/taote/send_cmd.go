package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/taote/taote/internal/dispatch"
	"github.com/taote/taote/internal/remote"
	"github.com/taote/taote/internal/session"
)

func handleSend(args []string) int {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	window := fs.Int("window", 0, "Target window id (default: newest window)")
	fs.IntVar(window, "w", 0, "Target window id (short)")
	addr := fs.String("addr", "", "Control address (default: discover the newest instance)")
	token := fs.String("token", "", "Control token (default: [remote] token from config.toml)")
	jsonOut := fs.Bool("json", false, "Print the resulting topology as JSON")
	fs.Usage = func() {
		fmt.Println("Usage: taote send <command> [--window N] [--addr host:port] [--json]")
		fmt.Println()
		fmt.Println("Commands:")
		for _, name := range dispatch.ActionNames() {
			fmt.Printf("  %s\n", name)
		}
		fmt.Println()
		fs.PrintDefaults()
	}
	_ = fs.Parse(normalizeArgs(fs, args))

	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	name := fs.Arg(0)
	if _, err := dispatch.ParseAction(name); err != nil {
		return fail("%v", err)
	}

	target := *addr
	if target == "" {
		db, err := openStateDB()
		if err != nil {
			return fail("%v", err)
		}
		target, _, err = remote.Discover(db, aliveTimeout())
		db.Close()
		if err != nil {
			return fail("%v", err)
		}
	}
	tok := *token
	if tok == "" {
		tok = session.GetRemoteSettings().Token
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, err := remote.Dial(ctx, target, tok)
	if err != nil {
		return fail("%v", err)
	}
	defer c.Close()

	snap, err := c.Send(ctx, *window, name)
	if err != nil {
		return fail("%v", err)
	}
	if *jsonOut {
		if err := printJSON(snap); err != nil {
			return fail("%v", err)
		}
		return 0
	}
	writeSnapshot(os.Stdout, snap)
	return 0
}
