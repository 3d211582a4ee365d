package app

import (
	"fmt"
	"strings"
	"testing"

	"charm.land/bubbles/v2/viewport"
)

func numberedLines(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	return strings.Join(lines, "\n")
}

func newTestViewport() viewport.Model {
	return viewport.New(viewport.WithWidth(20), viewport.WithHeight(5))
}

func TestNearBottom(t *testing.T) {
	cases := []struct {
		offset, height, total int
		want                  bool
	}{
		{0, 5, 3, true},
		{15, 5, 20, true},
		{14, 5, 20, true},
		{13, 5, 20, false},
		{0, 5, 20, false},
	}
	for _, tc := range cases {
		if got := nearBottom(tc.offset, tc.height, tc.total); got != tc.want {
			t.Fatalf("nearBottom(%d,%d,%d) = %v, want %v", tc.offset, tc.height, tc.total, got, tc.want)
		}
	}
}

func TestAutoScrollFollowsContentWhilePinned(t *testing.T) {
	vp := newTestViewport()
	scroll := NewAutoScroll()
	if !scroll.Pinned() {
		t.Fatalf("expected pinned by default")
	}

	scroll.SetContent(&vp, numberedLines(20))
	if vp.YOffset() != 15 {
		t.Fatalf("expected bottom offset 15, got %d", vp.YOffset())
	}
	scroll.SetContent(&vp, numberedLines(30))
	if vp.YOffset() != 25 {
		t.Fatalf("expected bottom offset 25, got %d", vp.YOffset())
	}
}

func TestAutoScrollUnpinsWhenUserLeavesBottom(t *testing.T) {
	vp := newTestViewport()
	scroll := NewAutoScroll()
	scroll.SetContent(&vp, numberedLines(20))

	vp.SetYOffset(3)
	scroll.Scrolled(&vp)
	if scroll.Pinned() {
		t.Fatalf("expected unpinned after scrolling up")
	}

	scroll.SetContent(&vp, numberedLines(40))
	if vp.YOffset() != 3 {
		t.Fatalf("expected offset to stay at 3, got %d", vp.YOffset())
	}
}

func TestAutoScrollRepinsWithinTolerance(t *testing.T) {
	vp := newTestViewport()
	scroll := NewAutoScroll()
	scroll.SetContent(&vp, numberedLines(20))
	vp.SetYOffset(0)
	scroll.Scrolled(&vp)

	vp.SetYOffset(14)
	scroll.Scrolled(&vp)
	if !scroll.Pinned() {
		t.Fatalf("expected re-pin one line above bottom")
	}
}

func TestAutoScrollPinJumpsToLatest(t *testing.T) {
	vp := newTestViewport()
	scroll := NewAutoScroll()
	scroll.SetContent(&vp, numberedLines(20))
	vp.SetYOffset(2)
	scroll.Scrolled(&vp)

	scroll.Pin(&vp)
	if !scroll.Pinned() || vp.YOffset() != 15 {
		t.Fatalf("expected pinned at bottom, pinned=%v offset=%d", scroll.Pinned(), vp.YOffset())
	}
}
