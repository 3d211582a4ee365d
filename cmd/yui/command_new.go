package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"yui/internal/client"
)

type NewCommand struct {
	wiring commandWiring
}

func NewNewCommand(wiring commandWiring) *NewCommand {
	return &NewCommand{wiring: wiring}
}

func (c *NewCommand) Run(args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	title := fs.String("title", "", "session title")
	language := fs.String("lang", "", "dialogue language: ja|en (default from config)")
	var agents stringList
	fs.Var(&agents, "agent", "agent id (repeatable, default all agents)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*title) == "" {
		return errors.New("title is required")
	}

	env, err := c.wiring.openEnv(envOptions{})
	if err != nil {
		return err
	}
	defer env.Close()

	ids := []string(agents)
	if len(ids) == 0 {
		all, err := env.client.ListAgents(c.wiring.ctx)
		if err != nil {
			return err
		}
		for _, agent := range all {
			ids = append(ids, agent.ID)
		}
	}
	lang := strings.TrimSpace(*language)
	if lang == "" {
		lang = env.cfg.Language()
	}
	session, err := env.client.CreateSession(c.wiring.ctx, client.CreateSessionRequest{
		Title:    strings.TrimSpace(*title),
		AgentIDs: ids,
		Language: lang,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.wiring.stdout, session.ID)
	return nil
}
