package app

import (
	"context"

	"yui/internal/client"
	"yui/internal/dialogue"
	"yui/internal/types"
)

type SessionAPI interface {
	ListAgents(ctx context.Context) ([]types.Agent, error)
	ListSessions(ctx context.Context) ([]*types.Session, error)
	CreateSession(ctx context.Context, req client.CreateSessionRequest) (*types.Session, error)
}

// Thread is the live dialogue of the open session.
type Thread interface {
	Subscribe(fn func(dialogue.Snapshot))
	Open(ctx context.Context, session *types.Session) error
	Submit(ctx context.Context, prompt string) (dialogue.RunResult, error)
	Continue(ctx context.Context) (dialogue.RunResult, error)
	SetLanguage(language string)
	Snapshot() dialogue.Snapshot
}

type StateStore interface {
	LoadState(ctx context.Context) (*types.AppState, error)
	SaveState(ctx context.Context, state *types.AppState) error
}

// SessionCache holds the snapshots written while sessions were open. The UI
// falls back to it when the server cannot list sessions.
type SessionCache interface {
	ListSessions(ctx context.Context) ([]*types.Session, error)
}

// snapshotFeed hands controller snapshots to the UI loop. Only the newest
// undelivered snapshot is kept, so publishers never block.
type snapshotFeed struct {
	ch chan dialogue.Snapshot
}

func newSnapshotFeed() *snapshotFeed {
	return &snapshotFeed{ch: make(chan dialogue.Snapshot, 1)}
}

func (f *snapshotFeed) publish(snap dialogue.Snapshot) {
	for {
		select {
		case f.ch <- snap:
			return
		default:
		}
		select {
		case old := <-f.ch:
			if old.Version > snap.Version {
				snap = old
			}
		default:
		}
	}
}
