package main

import (
	"flag"
	"fmt"

	"github.com/taote/taote/internal/session"
)

func handleConfig(args []string) int {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	initCfg := fs.Bool("init", false, "Write an example config.toml if none exists")
	check := fs.Bool("check", false, "Parse config.toml and report invalid values")
	_ = fs.Parse(normalizeArgs(fs, args))

	path, err := session.GetUserConfigPath()
	if err != nil {
		return fail("%v", err)
	}

	if *initCfg {
		path, err = session.CreateExampleConfig()
		if err != nil {
			return fail("%v", err)
		}
		fmt.Printf("Config: %s\n", path)
		return 0
	}

	fmt.Println(path)
	if !*check {
		return 0
	}
	cfg, err := session.ReadUserConfig(path)
	if err != nil {
		return fail("%v", err)
	}
	if _, err := cfg.Settings(); err != nil {
		return fail("%v", err)
	}
	fmt.Println("OK")
	return 0
}
