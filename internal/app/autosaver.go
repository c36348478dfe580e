package app

import (
	"context"
	"sync"
	"time"
)

// SaveState mirrors the autosave sub-state shown to the user.
type SaveState string

const (
	SaveIdle   SaveState = "idle"
	SaveSaving SaveState = "saving"
	SaveSaved  SaveState = "saved"
	SaveError  SaveState = "error"
)

const saveTimeout = 10 * time.Second

// Autosaver debounces answer edits: each Touch restarts the timer, and the
// save function runs once the client has been quiet for the full delay.
// Failures are only retried by the next edit's debounce cycle, never
// proactively.
type Autosaver struct {
	delay  time.Duration
	save   func(ctx context.Context) error
	notify func(SaveState)

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewAutosaver builds an autosaver; notify may be nil.
func NewAutosaver(delay time.Duration, save func(ctx context.Context) error, notify func(SaveState)) *Autosaver {
	if notify == nil {
		notify = func(SaveState) {}
	}
	return &Autosaver{delay: delay, save: save, notify: notify}
}

// Touch records an edit and restarts the debounce timer.
func (a *Autosaver) Touch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, a.fire)
}

// Flush cancels any pending timer and saves synchronously, used when the
// session finishes.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
	return a.runSave(ctx)
}

// Stop abandons any in-flight debounce; mirrors the user navigating away.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Autosaver) fire() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	_ = a.runSave(ctx)
}

func (a *Autosaver) runSave(ctx context.Context) error {
	a.notify(SaveSaving)
	if err := a.save(ctx); err != nil {
		a.notify(SaveError)
		return err
	}
	a.notify(SaveSaved)
	return nil
}
