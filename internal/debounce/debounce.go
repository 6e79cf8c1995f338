// Package debounce coalesces bursts of requests into a single delayed call.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs only the most recently scheduled function once the quiet
// period has elapsed without a newer request.
type Debouncer struct {
	delay time.Duration

	mutex      sync.Mutex
	timer      *time.Timer
	pending    func()
	generation uint64
	stopped    bool
}

// New constructs a Debouncer with the given quiet period.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Schedule cancels any pending call and schedules action after the quiet period.
// Calls after Stop are ignored.
func (debouncer *Debouncer) Schedule(action func()) {
	debouncer.mutex.Lock()
	defer debouncer.mutex.Unlock()
	if debouncer.stopped || action == nil {
		return
	}
	if debouncer.timer != nil {
		debouncer.timer.Stop()
	}
	debouncer.generation++
	scheduledGeneration := debouncer.generation
	debouncer.pending = action
	debouncer.timer = time.AfterFunc(debouncer.delay, func() {
		debouncer.fire(scheduledGeneration)
	})
}

// fire runs the pending action unless a newer request superseded it after the timer fired.
func (debouncer *Debouncer) fire(scheduledGeneration uint64) {
	debouncer.mutex.Lock()
	if debouncer.generation != scheduledGeneration || debouncer.pending == nil {
		debouncer.mutex.Unlock()
		return
	}
	action := debouncer.pending
	debouncer.pending = nil
	debouncer.timer = nil
	debouncer.mutex.Unlock()
	action()
}

// Pending reports whether a call is waiting to run.
func (debouncer *Debouncer) Pending() bool {
	debouncer.mutex.Lock()
	defer debouncer.mutex.Unlock()
	return debouncer.pending != nil
}

// Flush runs the pending call immediately on the caller's goroutine.
// It reports whether a call was run.
func (debouncer *Debouncer) Flush() bool {
	debouncer.mutex.Lock()
	action := debouncer.takePendingLocked()
	debouncer.mutex.Unlock()
	if action == nil {
		return false
	}
	action()
	return true
}

// Stop cancels the pending call and rejects further requests.
func (debouncer *Debouncer) Stop() {
	debouncer.mutex.Lock()
	defer debouncer.mutex.Unlock()
	debouncer.takePendingLocked()
	debouncer.stopped = true
}

func (debouncer *Debouncer) takePendingLocked() func() {
	if debouncer.timer != nil {
		debouncer.timer.Stop()
		debouncer.timer = nil
	}
	debouncer.generation++
	action := debouncer.pending
	debouncer.pending = nil
	return action
}
