package story

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// TimerState describes the autoplay timer. The zero value is Idle.
type TimerState struct {
	Armed    bool
	PageID   string
	Deadline time.Time
	Duration time.Duration
}

// Timer is the autoplay countdown. It is either Idle or Armed for one page;
// arming always cancels the previous countdown first, so at most one is ever
// outstanding and partial intervals are never resumed.
type Timer struct {
	clock    clock.Clock
	onElapse func(pageID string, gen uint64)

	mu    sync.Mutex
	state TimerState
	gen   uint64
	stop  *clock.Timer
}

// NewTimer creates an idle timer. onElapse runs on its own goroutine with the
// id of the page whose countdown ended and the generation it was armed with.
func NewTimer(clk clock.Clock, onElapse func(pageID string, gen uint64)) *Timer {
	if clk == nil {
		clk = clock.New()
	}
	return &Timer{clock: clk, onElapse: onElapse}
}

// Arm cancels any running countdown and starts a new one for pageID.
func (t *Timer) Arm(pageID string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.gen++
	gen := t.gen
	t.state = TimerState{Armed: true, PageID: pageID, Deadline: t.clock.Now().Add(d), Duration: d}
	t.stop = t.clock.AfterFunc(d, func() { t.fire(gen) })
}

// Cancel returns the timer to Idle.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *Timer) cancelLocked() {
	if t.stop != nil {
		t.stop.Stop()
		t.stop = nil
	}
	t.gen++
	t.state = TimerState{}
}

func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Current reports whether gen is still the latest arming. A callback whose
// generation is no longer current lost a race with Arm or Cancel.
func (t *Timer) Current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gen == t.gen
}

func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.state.Armed {
		// cancelled or re-armed after this countdown was scheduled
		t.mu.Unlock()
		return
	}
	pageID := t.state.PageID
	t.state = TimerState{}
	t.stop = nil
	t.mu.Unlock()

	if t.onElapse != nil {
		t.onElapse(pageID, gen)
	}
}
