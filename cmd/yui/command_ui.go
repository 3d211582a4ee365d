package main

import (
	"context"
	"flag"

	"yui/internal/app"
	"yui/internal/logging"
)

type uiRunner func(ctx context.Context, env *commandEnv) error

type UICommand struct {
	wiring commandWiring
}

func NewUICommand(wiring commandWiring) *UICommand {
	return &UICommand{wiring: wiring}
}

func (c *UICommand) Run(args []string) error {
	fs := flag.NewFlagSet("ui", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := c.wiring.openEnv(envOptions{logFile: true, store: true})
	if err != nil {
		return err
	}
	defer env.Close()
	env.logger.Info("ui starting", logging.F("server", env.client.BaseURL()), logging.F("store", env.cfg.StoreBackend()))
	return c.wiring.runUI(c.wiring.ctx, env)
}

func runTerminalUI(ctx context.Context, env *commandEnv) error {
	app.SetMarkdownTheme(env.cfg.DarkTheme())
	thread := env.newThread(threadOverrides{})
	return app.Run(ctx, env.client, thread, env.store, app.Options{
		Language: env.cfg.Language(),
		Logger:   env.logger,
		Cache:    env.store,
	})
}
