package dialogue

import (
	"sync"
	"time"

	"yui/internal/types"
)

const DefaultDebounceWindow = 50 * time.Millisecond

// Debouncer coalesces session patches. Every Push restarts the quiescence
// window; when the window elapses without input the merged patch is handed to
// deliver exactly once.
type Debouncer struct {
	window  time.Duration
	deliver func(types.SessionPatch)

	mu      sync.Mutex
	pending *types.SessionPatch
	timer   *time.Timer
	gen     uint64
}

func NewDebouncer(window time.Duration, deliver func(types.SessionPatch)) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{window: window, deliver: deliver}
}

func (d *Debouncer) Push(patch types.SessionPatch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		d.pending = &patch
	} else {
		merged := d.pending.Merge(patch)
		d.pending = &merged
	}
	d.stopLocked()
	gen := d.gen
	d.timer = time.AfterFunc(d.window, func() { d.fire(gen) })
}

// Flush delivers the pending patch now, if any, and reports whether one was
// delivered.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	patch := d.takeLocked()
	d.mu.Unlock()
	if patch == nil {
		return false
	}
	d.deliver(*patch)
	return true
}

// Discard drops the pending patch without delivering it. Session switches
// call this so that a patch for the previous session never reaches the next
// one.
func (d *Debouncer) Discard() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.takeLocked() != nil
}

func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	patch := d.pending
	d.pending = nil
	d.mu.Unlock()
	if patch != nil {
		d.deliver(*patch)
	}
}

func (d *Debouncer) takeLocked() *types.SessionPatch {
	d.stopLocked()
	patch := d.pending
	d.pending = nil
	return patch
}

// stopLocked cancels the timer and invalidates a callback that already fired
// but has not yet taken the lock.
func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}
