package usecase

import (
	"sync"
	"time"
)

// analyzingTimer is the single-shot delay between a scoring update and the
// "please wait" status. At most one timer is outstanding.
type analyzingTimer struct {
	delay time.Duration

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
}

func newAnalyzingTimer(delay time.Duration) *analyzingTimer {
	return &analyzingTimer{delay: delay}
}

// Arm cancels any pending timer and schedules fire with the new generation.
// fire must check Current before acting since a cancel can race the callback.
func (t *analyzingTimer) Arm(fire func(generation uint64)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.generation++
	gen := t.generation
	t.timer = time.AfterFunc(t.delay, func() {
		fire(gen)
	})
}

// Cancel drops the pending timer, fired or not.
func (t *analyzingTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.generation++
}

// Current reports whether generation belongs to the live timer.
func (t *analyzingTimer) Current(generation uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil && t.generation == generation
}
