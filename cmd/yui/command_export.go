package main

import (
	"flag"
	"fmt"

	"yui/internal/logging"
	"yui/internal/publish"
)

// ExportCommand bundles session and output files into the static data
// directory read by `view --static`.
type ExportCommand struct {
	wiring commandWiring
}

func NewExportCommand(wiring commandWiring) *ExportCommand {
	return &ExportCommand{wiring: wiring}
}

func (c *ExportCommand) Run(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	sessionsDir := fs.String("sessions", "", "directory of session JSON files (default from config)")
	outputsDir := fs.String("outputs", "", "directory of markdown outputs (default from config)")
	dataDir := fs.String("data", "", "destination directory (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := c.wiring.loadConfig()
	if err != nil {
		return err
	}
	opts := publish.ExportOptions{
		SessionsDir: firstFlag(*sessionsDir, cfg.StaticSessionsDir()),
		OutputsDir:  firstFlag(*outputsDir, cfg.StaticOutputsDir()),
		DataDir:     firstFlag(*dataDir, cfg.StaticDataDir()),
		Logger:      logging.New(c.wiring.stderr, logging.ParseLevel(cfg.LogLevel())),
	}
	result, err := publish.Export(c.wiring.ctx, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.wiring.stdout, "exported %d sessions and %d outputs to %s\n", result.Sessions, result.Outputs, opts.DataDir)
	for _, skipped := range result.Skipped {
		fmt.Fprintf(c.wiring.stdout, "skipped %s\n", skipped)
	}
	return nil
}

func firstFlag(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
