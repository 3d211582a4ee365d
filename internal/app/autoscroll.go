package app

import "charm.land/bubbles/v2/viewport"

// scrollTolerance is how many lines above the bottom still count as "at the
// bottom" when deciding whether a user scroll re-pins the view.
const scrollTolerance = 1

// AutoScroll keeps the transcript viewport following new content while the
// user is at the bottom. It starts pinned.
type AutoScroll struct {
	pinned bool
}

func NewAutoScroll() *AutoScroll {
	return &AutoScroll{pinned: true}
}

func (a *AutoScroll) Pinned() bool {
	return a.pinned
}

// SetContent replaces the viewport content and follows it when pinned.
func (a *AutoScroll) SetContent(vp *viewport.Model, content string) {
	vp.SetContent(content)
	if a.pinned {
		vp.GotoBottom()
	}
}

// Scrolled records a user scroll: leaving the bottom unpins, coming back to
// it re-pins.
func (a *AutoScroll) Scrolled(vp *viewport.Model) {
	a.pinned = nearBottom(vp.YOffset(), vp.Height(), vp.TotalLineCount())
}

// Pin forces the view back to the latest content.
func (a *AutoScroll) Pin(vp *viewport.Model) {
	a.pinned = true
	vp.GotoBottom()
}

func nearBottom(offset, height, total int) bool {
	if total <= height {
		return true
	}
	return offset+height >= total-scrollTolerance
}
