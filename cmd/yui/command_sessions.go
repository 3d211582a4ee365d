package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"yui/internal/client"
	"yui/internal/store"
	"yui/internal/types"
)

type AgentsCommand struct {
	wiring commandWiring
}

func NewAgentsCommand(wiring commandWiring) *AgentsCommand {
	return &AgentsCommand{wiring: wiring}
}

func (c *AgentsCommand) Run(args []string) error {
	fs := flag.NewFlagSet("agents", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := c.wiring.openEnv(envOptions{})
	if err != nil {
		return err
	}
	defer env.Close()
	agents, err := env.client.ListAgents(c.wiring.ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(c.wiring.stdout, agents)
	}
	printAgents(c.wiring.stdout, agents)
	return nil
}

type SessionsCommand struct {
	wiring commandWiring
}

func NewSessionsCommand(wiring commandWiring) *SessionsCommand {
	return &SessionsCommand{wiring: wiring}
}

func (c *SessionsCommand) Run(args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	asJSON := fs.Bool("json", false, "print JSON")
	limit := fs.Int("limit", 0, "show at most this many sessions (0 = all)")
	local := fs.Bool("local", false, "list the snapshots cached in the local store")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := c.wiring.openEnv(envOptions{store: *local})
	if err != nil {
		return err
	}
	defer env.Close()
	var sessions []*types.Session
	if *local {
		sessions, err = env.store.ListSessions(c.wiring.ctx)
	} else {
		sessions, err = env.client.ListSessions(c.wiring.ctx)
	}
	if err != nil {
		return err
	}
	client.SortSessionsByUpdated(sessions)
	if *limit > 0 && len(sessions) > *limit {
		sessions = sessions[:*limit]
	}
	if *asJSON {
		return writeJSON(c.wiring.stdout, sessions)
	}
	printSessions(c.wiring.stdout, sessions)
	return nil
}

// ForgetCommand removes a cached session snapshot from the local store. The
// session on the server is untouched.
type ForgetCommand struct {
	wiring commandWiring
}

func NewForgetCommand(wiring commandWiring) *ForgetCommand {
	return &ForgetCommand{wiring: wiring}
}

func (c *ForgetCommand) Run(args []string) error {
	fs := flag.NewFlagSet("forget", flag.ContinueOnError)
	fs.SetOutput(c.wiring.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("forget requires at least one session id")
	}

	env, err := c.wiring.openEnv(envOptions{store: true})
	if err != nil {
		return err
	}
	defer env.Close()
	for _, id := range fs.Args() {
		if err := env.store.DeleteSession(c.wiring.ctx, id); err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				return fmt.Errorf("session %q is not cached", id)
			}
			return err
		}
		fmt.Fprintf(c.wiring.stdout, "forgot %s\n", id)
	}
	return nil
}

func writeJSON(out io.Writer, payload any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
