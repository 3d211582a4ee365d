package main

import (
	"context"

	"yui/internal/app"
	"yui/internal/client"
	"yui/internal/config"
	"yui/internal/dialogue"
	"yui/internal/logging"
	"yui/internal/types"
)

type clientFactory func(cfg config.Config, logger logging.Logger) (commandClient, error)

// commandClient is the server surface used by the commands: the session
// listing calls plus everything the thread controller drives.
type commandClient interface {
	app.SessionAPI
	dialogue.Backend
	BaseURL() string
}

type yuiClientAdapter struct {
	dialogue.Backend
	client *client.Client
}

func newYuiClient(cfg config.Config, logger logging.Logger) (commandClient, error) {
	c := client.New(cfg, client.WithLogger(logger))
	return &yuiClientAdapter{Backend: dialogue.NewClientBackend(c), client: c}, nil
}

func (c *yuiClientAdapter) BaseURL() string {
	return c.client.BaseURL()
}

func (c *yuiClientAdapter) ListAgents(ctx context.Context) ([]types.Agent, error) {
	return c.client.ListAgents(ctx)
}

func (c *yuiClientAdapter) ListSessions(ctx context.Context) ([]*types.Session, error) {
	return c.client.ListSessions(ctx)
}

func (c *yuiClientAdapter) CreateSession(ctx context.Context, req client.CreateSessionRequest) (*types.Session, error) {
	return c.client.CreateSession(ctx, req)
}
