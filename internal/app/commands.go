package app

import (
	"context"
	"strings"

	tea "charm.land/bubbletea/v2"
	"golang.org/x/sync/errgroup"

	"yui/internal/client"
	"yui/internal/dialogue"
	"yui/internal/types"
)

type loadedMsg struct {
	agents   []types.Agent
	sessions []*types.Session
	state    *types.AppState
	err      error
	// offline is set when sessions came from the cache; listErr is the
	// server error that caused it.
	offline bool
	listErr error
}

type sessionsMsg struct {
	sessions []*types.Session
	err      error
}

type snapshotMsg struct {
	snap dialogue.Snapshot
}

type openedMsg struct {
	id  string
	err error
}

type runDoneMsg struct {
	id     string
	result dialogue.RunResult
	err    error
}

type sessionCreatedMsg struct {
	session *types.Session
	err     error
}

type stateSavedMsg struct {
	err error
}

// loadCmd fetches agents, sessions and the persisted app state concurrently.
// This is the initial load, so sessions are sorted newest first. When the
// server cannot list sessions the cached snapshots are shown instead.
func loadCmd(ctx context.Context, api SessionAPI, state StateStore, cache SessionCache) tea.Cmd {
	return func() tea.Msg {
		var msg loadedMsg
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			agents, err := api.ListAgents(gctx)
			msg.agents = agents
			return err
		})
		g.Go(func() error {
			sessions, err := api.ListSessions(gctx)
			if err != nil && cache != nil {
				cached, cacheErr := cache.ListSessions(ctx)
				if cacheErr == nil && len(cached) > 0 {
					msg.sessions = cached
					msg.offline = true
					msg.listErr = err
					return nil
				}
			}
			msg.sessions = sessions
			return err
		})
		g.Go(func() error {
			if state == nil {
				msg.state = &types.AppState{}
				return nil
			}
			loaded, err := state.LoadState(gctx)
			msg.state = loaded
			return err
		})
		msg.err = g.Wait()
		client.SortSessionsByUpdated(msg.sessions)
		return msg
	}
}

// refreshSessionsCmd lists sessions again; the result is merged into the
// current order rather than re-sorted.
func refreshSessionsCmd(ctx context.Context, api SessionAPI) tea.Cmd {
	return func() tea.Msg {
		sessions, err := api.ListSessions(ctx)
		return sessionsMsg{sessions: sessions, err: err}
	}
}

func waitSnapshotCmd(feed *snapshotFeed) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{snap: <-feed.ch}
	}
}

func openSessionCmd(ctx context.Context, thread Thread, session *types.Session) tea.Cmd {
	return func() tea.Msg {
		return openedMsg{id: session.ID, err: thread.Open(ctx, session)}
	}
}

func submitCmd(ctx context.Context, thread Thread, sessionID, language, prompt string) tea.Cmd {
	return func() tea.Msg {
		thread.SetLanguage(language)
		result, err := thread.Submit(ctx, prompt)
		return runDoneMsg{id: sessionID, result: result, err: err}
	}
}

func continueCmd(ctx context.Context, thread Thread, sessionID, language string) tea.Cmd {
	return func() tea.Msg {
		thread.SetLanguage(language)
		result, err := thread.Continue(ctx)
		return runDoneMsg{id: sessionID, result: result, err: err}
	}
}

func createSessionCmd(ctx context.Context, api SessionAPI, title, language string, agents []types.Agent) tea.Cmd {
	ids := make([]string, 0, len(agents))
	for _, agent := range agents {
		ids = append(ids, agent.ID)
	}
	req := client.CreateSessionRequest{Title: strings.TrimSpace(title), AgentIDs: ids, Language: language}
	return func() tea.Msg {
		session, err := api.CreateSession(ctx, req)
		return sessionCreatedMsg{session: session, err: err}
	}
}

func saveStateCmd(ctx context.Context, store StateStore, state types.AppState) tea.Cmd {
	if store == nil {
		return nil
	}
	history := make(map[string][]string, len(state.PromptHistory))
	for id, prompts := range state.PromptHistory {
		history[id] = append([]string(nil), prompts...)
	}
	state.PromptHistory = history
	return func() tea.Msg {
		return stateSavedMsg{err: store.SaveState(ctx, &state)}
	}
}
