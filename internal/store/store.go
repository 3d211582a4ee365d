// Package store keeps complete session snapshots and the terminal UI state on
// the local machine. It is the receiving end of session update propagation.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"yui/internal/types"
)

const (
	BackendBbolt  = "bbolt"
	BackendFile   = "file"
	BackendMemory = "memory"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionStore interface {
	ListSessions(ctx context.Context) ([]*types.Session, error)
	GetSession(ctx context.Context, id string) (*types.Session, bool, error)
	PutSession(ctx context.Context, session *types.Session) error
	DeleteSession(ctx context.Context, id string) error
}

type AppStateStore interface {
	LoadState(ctx context.Context) (*types.AppState, error)
	SaveState(ctx context.Context, state *types.AppState) error
}

// Store bundles both stores of one backend.
type Store interface {
	SessionStore
	AppStateStore
	Backend() string
	Close() error
}

// Open returns the store for backend. path is the bbolt database for the
// bbolt backend and the JSON document for the file backend.
func Open(backend, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendBbolt:
		return NewBboltStore(path)
	case BackendFile:
		st, err := NewFileStore(path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func validateSession(session *types.Session) error {
	if session == nil || strings.TrimSpace(session.ID) == "" {
		return errors.New("session requires id")
	}
	return nil
}

// sortSessions orders sessions by updatedAt, most recent first.
func sortSessions(sessions []*types.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		left, right := sessions[i], sessions[j]
		if left == nil || right == nil {
			return left != nil
		}
		return left.UpdatedAt.After(right.UpdatedAt)
	})
}

func cloneState(state *types.AppState) *types.AppState {
	if state == nil {
		return &types.AppState{}
	}
	out := *state
	if state.PromptHistory != nil {
		out.PromptHistory = make(map[string][]string, len(state.PromptHistory))
		for id, prompts := range state.PromptHistory {
			out.PromptHistory[id] = append([]string(nil), prompts...)
		}
	}
	return &out
}
