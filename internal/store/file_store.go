package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"yui/internal/types"
)

const fileStoreSchemaVersion = 1

// FileStore keeps every snapshot in one JSON document, rewritten atomically on
// each change.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type storeFile struct {
	Version  int                       `json:"version"`
	Sessions map[string]*types.Session `json:"sessions"`
	State    *types.AppState           `json:"state,omitempty"`
}

func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store file path is required")
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Backend() string {
	return BackendFile
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) ListSessions(ctx context.Context) ([]*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*types.Session, 0, len(file.Sessions))
	for _, session := range file.Sessions {
		out = append(out, session.Clone())
	}
	sortSessions(out)
	return out, nil
}

func (s *FileStore) GetSession(ctx context.Context, id string) (*types.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return nil, false, err
	}
	session, ok := file.Sessions[id]
	if !ok {
		return nil, false, nil
	}
	return session.Clone(), true, nil
}

func (s *FileStore) PutSession(ctx context.Context, session *types.Session) error {
	if err := validateSession(session); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	file.Sessions[session.ID] = session.Clone()
	return s.save(file)
}

func (s *FileStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := file.Sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(file.Sessions, id)
	return s.save(file)
}

func (s *FileStore) LoadState(ctx context.Context) (*types.AppState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return nil, err
	}
	return cloneState(file.State), nil
}

func (s *FileStore) SaveState(ctx context.Context, state *types.AppState) error {
	if state == nil {
		return errors.New("state is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	file.State = cloneState(state)
	return s.save(file)
}

// load returns an empty document when the file is missing or blank.
func (s *FileStore) load() (*storeFile, error) {
	file := &storeFile{Version: fileStoreSchemaVersion, Sessions: map[string]*types.Session{}}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return file, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return file, nil
	}
	if err := json.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if file.Version > fileStoreSchemaVersion {
		return nil, fmt.Errorf("store file %s has schema version %d, newer than %d", s.path, file.Version, fileStoreSchemaVersion)
	}
	if file.Sessions == nil {
		file.Sessions = map[string]*types.Session{}
	}
	return file, nil
}

// save encodes the document next to the store file and renames it into
// place, so a crash mid-write leaves the previous snapshots intact.
func (s *FileStore) save(file *storeFile) error {
	file.Version = fileStoreSchemaVersion
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
