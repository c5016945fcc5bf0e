package main

import (
	"fmt"
	"os"

	"github.com/taote/taote/internal/dispatch"
)

const Version = "0.3.0"

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			fmt.Printf("taote v%s\n", Version)
			return
		case "help", "--help", "-h":
			printHelp()
			return
		case "list", "ls":
			os.Exit(handleList(args[1:]))
		case "send":
			os.Exit(handleSend(args[1:]))
		case "config":
			os.Exit(handleConfig(args[1:]))
		case "run":
			args = args[1:]
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
			printHelp()
			os.Exit(2)
		}
	}
	os.Exit(runTUI())
}

func printHelp() {
	fmt.Printf("taote v%s\n", Version)
	fmt.Println("Tabbed terminal manager")
	fmt.Println()
	fmt.Println("Usage: taote [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  (none), run              Start the terminal manager")
	fmt.Println("  list, ls [--json]        Show windows and tabs of running instances")
	fmt.Println("  send <command> [-w N]    Run a command in a running instance")
	fmt.Println("  config [--init]          Show or create the config file")
	fmt.Println("  version                  Show version")
	fmt.Println("  help                     Show this help")
	fmt.Println()
	fmt.Println("Send commands:")
	for _, name := range dispatch.ActionNames() {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println()
	fmt.Println("Keys (after the prefix, ctrl+b by default):")
	fmt.Println("  t n y        new tab, new window, close tab")
	fmt.Println("  k j          previous/next tab (also PgUp PgDn)")
	fmt.Println("  h l          move tab left/right (also Home End)")
	fmt.Println("  s w          select tab, adopt selected tabs")
	fmt.Println("  < >          title colour")
	fmt.Println("  _ + )        zoom out, in, reset")
	fmt.Println("  c v          copy, paste")
	fmt.Println("  1-9 o &      switch window, next window, close window")
	fmt.Println("  ctrl+q       quit")
}
