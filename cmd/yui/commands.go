package main

import (
	"context"
	"io"
	"os"

	"yui/internal/config"
)

type commandRunner interface {
	Run(args []string) error
}

type commandWiring struct {
	ctx        context.Context
	stdout     io.Writer
	stderr     io.Writer
	loadConfig func() (config.Config, error)
	newClient  clientFactory
	runUI      uiRunner
}

func defaultCommandWiring(ctx context.Context, stdout, stderr io.Writer) commandWiring {
	if ctx == nil {
		ctx = context.Background()
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return commandWiring{
		ctx:        ctx,
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: config.Load,
		newClient:  newYuiClient,
		runUI:      runTerminalUI,
	}
}

func buildCommands(wiring commandWiring) map[string]commandRunner {
	return map[string]commandRunner{
		"agents":   NewAgentsCommand(wiring),
		"sessions": NewSessionsCommand(wiring),
		"new":      NewNewCommand(wiring),
		"forget":   NewForgetCommand(wiring),
		"run":      NewRunCommand(wiring, false),
		"continue": NewRunCommand(wiring, true),
		"ui":       NewUICommand(wiring),
		"view":     NewViewCommand(wiring),
		"export":   NewExportCommand(wiring),
		"config":   NewConfigCommand(wiring),
	}
}
