package app

import (
	"strings"

	"yui/internal/types"
)

// SessionList is the navigable list of sessions on the left of the screen.
type SessionList struct {
	sessions []*types.Session
	selected int
	activeID string
}

func (l *SessionList) SetSessions(sessions []*types.Session) {
	selectedID := l.SelectedID()
	l.sessions = sessions
	l.selected = 0
	for i, session := range sessions {
		if session != nil && session.ID == selectedID {
			l.selected = i
			break
		}
	}
}

func (l *SessionList) Sessions() []*types.Session {
	return l.sessions
}

// Upsert replaces the session with the same id or prepends it.
func (l *SessionList) Upsert(session *types.Session) {
	if session == nil {
		return
	}
	for i, existing := range l.sessions {
		if existing != nil && existing.ID == session.ID {
			l.sessions[i] = session
			return
		}
	}
	l.sessions = append([]*types.Session{session}, l.sessions...)
	if l.selected > 0 {
		l.selected++
	}
}

// Merge applies a refreshed listing without reordering: known sessions are
// replaced in place and new ones are prepended in the order given. Sessions
// missing from the listing are kept.
func (l *SessionList) Merge(sessions []*types.Session) {
	selectedID := l.SelectedID()
	for i := len(sessions) - 1; i >= 0; i-- {
		l.Upsert(sessions[i])
	}
	if selectedID != "" {
		l.Select(selectedID)
	}
}

func (l *SessionList) Move(delta int) {
	if len(l.sessions) == 0 {
		l.selected = 0
		return
	}
	l.selected = min(max(l.selected+delta, 0), len(l.sessions)-1)
}

func (l *SessionList) Select(id string) bool {
	for i, session := range l.sessions {
		if session != nil && session.ID == id {
			l.selected = i
			return true
		}
	}
	return false
}

func (l *SessionList) Selected() *types.Session {
	if l.selected < 0 || l.selected >= len(l.sessions) {
		return nil
	}
	return l.sessions[l.selected]
}

func (l *SessionList) SelectedID() string {
	if session := l.Selected(); session != nil {
		return session.ID
	}
	return ""
}

func (l *SessionList) SetActive(id string) {
	l.activeID = id
}

// View renders at most height rows of width cells, keeping the selection
// visible.
func (l *SessionList) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	if len(l.sessions) == 0 {
		return helpStyle.Render(padToWidth("No sessions.", width))
	}
	start := 0
	if l.selected >= height {
		start = l.selected - height + 1
	}
	end := min(len(l.sessions), start+height)
	rows := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		session := l.sessions[i]
		marker := "  "
		if session.ID == l.activeID {
			marker = "▸ "
		}
		title := strings.TrimSpace(session.Title)
		if title == "" {
			title = session.ID
		}
		if session.Complete || session.Status == types.SessionStatusCompleted {
			title += " ✓"
		}
		row := padToWidth(marker+title, width)
		switch {
		case i == l.selected:
			row = selectedStyle.Render(row)
		case session.ID == l.activeID:
			row = activeSessionStyle.Render(row)
		default:
			row = sessionStyle.Render(row)
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}
