package store

import (
	"context"
	"sync"

	"yui/internal/types"
)

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*types.Session
	state    *types.AppState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]*types.Session{}}
}

func (s *MemoryStore) Backend() string { return BackendMemory }
func (s *MemoryStore) Close() error    { return nil }

func (s *MemoryStore) ListSessions(ctx context.Context) ([]*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session.Clone())
	}
	sortSessions(out)
	return out, nil
}

func (s *MemoryStore) GetSession(ctx context.Context, id string) (*types.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, false, nil
	}
	return session.Clone(), true, nil
}

func (s *MemoryStore) PutSession(ctx context.Context, session *types.Session) error {
	if err := validateSession(session); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) LoadState(ctx context.Context) (*types.AppState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneState(s.state), nil
}

func (s *MemoryStore) SaveState(ctx context.Context, state *types.AppState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = cloneState(state)
	return nil
}
