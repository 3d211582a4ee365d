package client

import "yui/internal/types"

type CreateSessionRequest struct {
	Title    string   `json:"title"`
	AgentIDs []string `json:"agentIds"`
	Language string   `json:"language,omitempty"`
}

type StageRequest struct {
	Prompt   string         `json:"prompt"`
	Stage    types.StageTag `json:"stage"`
	Language string         `json:"language,omitempty"`
}
