package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const usageText = `yui is a terminal client for a Yui Protocol dialogue server.

Usage:
  yui <command> [flags]

Commands:
  agents     list agents
  sessions   list sessions (newest first); --local lists cached snapshots
  forget     remove cached session snapshots from the local store
  new        create a session
  run        run the dialogue stages of a session for a prompt
  continue   resume the remaining stages of a session
  ui         run the terminal UI
  view       render a session transcript or an output document
  export     build the static sessions.json / outputs.json documents
  config     print configuration (effective or defaults)
  version    print the build version
  help       show help

Examples:
  yui sessions
  yui new --title "What is kindness?" --agent yui-000 --agent hekito-001
  yui run <session-id> "What is kindness?"
  yui run --mode simple <session-id> "Short question"
  yui continue <session-id>
  yui view --static <session-id>
  yui view --local --stage synthesis-attempt <session-id>
  yui view --static --output <name>
  yui config --format toml
`

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		return
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return
	case "version", "--version":
		fmt.Fprintln(os.Stdout, buildVersion())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wiring := defaultCommandWiring(ctx, os.Stdout, os.Stderr)
	commands := buildCommands(wiring)

	runner, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
	err := runner.Run(args[1:])
	stop()
	exitOnErr(args[0], err, wiring.stderr)
}
