package app

import (
	"strings"
	"testing"

	xansi "github.com/charmbracelet/x/ansi"

	"yui/internal/types"
)

func sessionsNamed(ids ...string) []*types.Session {
	out := make([]*types.Session, 0, len(ids))
	for _, id := range ids {
		out = append(out, &types.Session{ID: id, Title: "title " + id})
	}
	return out
}

func TestSessionListKeepsSelectionAcrossRefresh(t *testing.T) {
	var list SessionList
	list.SetSessions(sessionsNamed("a", "b", "c"))
	list.Move(2)
	if list.SelectedID() != "c" {
		t.Fatalf("expected c selected, got %q", list.SelectedID())
	}

	list.SetSessions(sessionsNamed("c", "a"))
	if list.SelectedID() != "c" {
		t.Fatalf("expected selection to follow c, got %q", list.SelectedID())
	}
}

func TestSessionListMoveClamps(t *testing.T) {
	var list SessionList
	list.Move(1)
	if list.Selected() != nil {
		t.Fatalf("expected no selection on empty list")
	}
	list.SetSessions(sessionsNamed("a", "b"))
	list.Move(-5)
	if list.SelectedID() != "a" {
		t.Fatalf("expected a, got %q", list.SelectedID())
	}
	list.Move(5)
	if list.SelectedID() != "b" {
		t.Fatalf("expected b, got %q", list.SelectedID())
	}
}

func TestSessionListUpsertPrependsNewSession(t *testing.T) {
	var list SessionList
	list.SetSessions(sessionsNamed("a", "b"))
	list.Move(1)
	list.Upsert(&types.Session{ID: "n", Title: "new"})

	if got := list.Sessions()[0].ID; got != "n" {
		t.Fatalf("expected new session first, got %q", got)
	}
	if list.SelectedID() != "b" {
		t.Fatalf("expected selection to stay on b, got %q", list.SelectedID())
	}
	list.Upsert(&types.Session{ID: "a", Title: "renamed"})
	if len(list.Sessions()) != 3 || list.Sessions()[1].Title != "renamed" {
		t.Fatalf("expected in-place update, got %+v", list.Sessions())
	}
}

func TestSessionListViewFitsWidthAndScrolls(t *testing.T) {
	var list SessionList
	list.SetSessions(sessionsNamed("a", "b", "c", "d"))
	list.sessions[0].Title = "とても長い日本語のセッションタイトルです"
	list.SetActive("a")
	list.Move(3)

	out := xansi.Strip(list.View(12, 2))
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(lines))
	}
	if !strings.Contains(lines[1], "title d") {
		t.Fatalf("expected selected row visible, got %q", out)
	}
	for _, line := range lines {
		if w := xansi.StringWidth(line); w > 12 {
			t.Fatalf("row wider than 12: %q", line)
		}
	}

	list.Move(-3)
	first := strings.Split(xansi.Strip(list.View(12, 2)), "\n")[0]
	if !strings.HasPrefix(first, "▸ ") || xansi.StringWidth(first) > 12 {
		t.Fatalf("expected truncated active row, got %q", first)
	}
}

func TestSessionListMergeKeepsOrder(t *testing.T) {
	var list SessionList
	list.SetSessions(sessionsNamed("a", "b", "c"))
	list.Move(1)

	refreshed := sessionsNamed("x", "c", "y", "a")
	refreshed[1].Title = "renamed c"
	list.Merge(refreshed)

	var ids []string
	for _, session := range list.Sessions() {
		ids = append(ids, session.ID)
	}
	if got := strings.Join(ids, ","); got != "x,y,a,b,c" {
		t.Fatalf("unexpected order %s", got)
	}
	if list.Sessions()[4].Title != "renamed c" {
		t.Fatalf("expected c replaced in place")
	}
	if list.SelectedID() != "b" {
		t.Fatalf("expected b to stay selected, got %q", list.SelectedID())
	}
}
