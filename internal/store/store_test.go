package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"yui/internal/types"
)

func openAll(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	bbolt, err := Open(BackendBbolt, filepath.Join(dir, "sessions.db"))
	if err != nil {
		t.Fatalf("open bbolt: %v", err)
	}
	t.Cleanup(func() { _ = bbolt.Close() })
	file, err := Open(BackendFile, filepath.Join(dir, "sessions.json"))
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	memory, err := Open(BackendMemory, "")
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	return map[string]Store{
		BackendBbolt:  bbolt,
		BackendFile:   file,
		BackendMemory: memory,
	}
}

func TestStoresRoundTripSessions(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	for name, st := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			if st.Backend() != name {
				t.Fatalf("unexpected backend %q", st.Backend())
			}
			older := &types.Session{ID: "s1", Title: "older", UpdatedAt: base}
			newer := &types.Session{
				ID:        "s2",
				Title:     "newer",
				UpdatedAt: base.Add(time.Hour),
				Messages: []types.Message{
					{ID: "m1", Role: types.RoleUser, Content: "hello", Timestamp: base},
				},
				SequenceOutputFiles: map[int]string{1: "out.md"},
			}
			for _, s := range []*types.Session{older, newer} {
				if err := st.PutSession(ctx, s); err != nil {
					t.Fatalf("put: %v", err)
				}
			}

			list, err := st.ListSessions(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 2 || list[0].ID != "s2" || list[1].ID != "s1" {
				t.Fatalf("unexpected list: %#v", list)
			}

			got, ok, err := st.GetSession(ctx, "s2")
			if err != nil || !ok {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
			if len(got.Messages) != 1 || got.Messages[0].Content != "hello" || got.SequenceOutputFiles[1] != "out.md" {
				t.Fatalf("unexpected session: %#v", got)
			}

			newer.Title = "renamed"
			if err := st.PutSession(ctx, newer); err != nil {
				t.Fatalf("put again: %v", err)
			}
			got, _, _ = st.GetSession(ctx, "s2")
			if got.Title != "renamed" {
				t.Fatalf("expected overwrite, got %q", got.Title)
			}

			if err := st.DeleteSession(ctx, "s1"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := st.DeleteSession(ctx, "s1"); !errors.Is(err, ErrSessionNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
			if _, ok, _ := st.GetSession(ctx, "s1"); ok {
				t.Fatalf("expected s1 to be gone")
			}
		})
	}
}

func TestStoresRejectSessionWithoutID(t *testing.T) {
	for name, st := range openAll(t) {
		if err := st.PutSession(context.Background(), &types.Session{Title: "x"}); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestStoresPersistAppState(t *testing.T) {
	ctx := context.Background()
	for name, st := range openAll(t) {
		state, err := st.LoadState(ctx)
		if err != nil {
			t.Fatalf("%s: load empty: %v", name, err)
		}
		if state.ActiveSessionID != "" {
			t.Fatalf("%s: expected empty state", name)
		}
		err = st.SaveState(ctx, &types.AppState{
			ActiveSessionID: "s1",
			Language:        "en",
			PromptHistory:   map[string][]string{"s1": {"hello"}},
		})
		if err != nil {
			t.Fatalf("%s: save: %v", name, err)
		}
		state, err = st.LoadState(ctx)
		if err != nil {
			t.Fatalf("%s: load: %v", name, err)
		}
		if state.ActiveSessionID != "s1" || state.Language != "en" || state.PromptHistory["s1"][0] != "hello" {
			t.Fatalf("%s: unexpected state %#v", name, state)
		}
	}
}

func TestBboltStoreReopens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")
	st, err := NewBboltStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := st.PutSession(ctx, &types.Session{ID: "s1", Title: "kept"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, err = NewBboltStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	got, ok, err := st.GetSession(ctx, "s1")
	if err != nil || !ok || got.Title != "kept" {
		t.Fatalf("unexpected reopen result: %#v ok=%v err=%v", got, ok, err)
	}
}

func TestFileStoreTreatsBlankFileAsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.json")
	if err := os.WriteFile(path, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	st, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sessions, err := st.ListSessions(ctx)
	if err != nil || len(sessions) != 0 {
		t.Fatalf("expected no sessions, got %d err=%v", len(sessions), err)
	}
	if err := st.PutSession(ctx, &types.Session{ID: "s1", Title: "first"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "sessions.json" {
		t.Fatalf("expected only the store file after save, got %v", entries)
	}
}

func TestFileStoreRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	if err := os.WriteFile(path, []byte(`{"version": 99, "sessions": {}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	st, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := st.ListSessions(context.Background()); err == nil {
		t.Fatalf("expected newer schema to be rejected")
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("postgres", ""); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
