package dialogue

import (
	"context"

	"yui/internal/client"
	"yui/internal/types"
)

// Stream is an open stage stream.
type Stream interface {
	Frames() <-chan client.Frame
	Err() error
	Close()
}

// Backend is the server surface the thread controller drives.
type Backend interface {
	StartNewSequence(ctx context.Context, sessionID string) error
	ResetSession(ctx context.Context, sessionID string) error
	GetRealtimeSession(ctx context.Context, sessionID string) (*types.Session, error)
	StreamStage(ctx context.Context, sessionID string, req client.StageRequest) (Stream, error)
}

type clientBackend struct {
	*client.Client
}

// NewClientBackend adapts the HTTP client to Backend.
func NewClientBackend(c *client.Client) Backend {
	return clientBackend{Client: c}
}

func (b clientBackend) StreamStage(ctx context.Context, sessionID string, req client.StageRequest) (Stream, error) {
	stream, err := b.Client.StreamStage(ctx, sessionID, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
