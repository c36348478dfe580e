package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"evalform-service/internal/app"
)

func TestAutosaverDebouncesEdits(t *testing.T) {
	var (
		mu    sync.Mutex
		saves int
	)
	saver := app.NewAutosaver(30*time.Millisecond, func(ctx context.Context) error {
		mu.Lock()
		saves++
		mu.Unlock()
		return nil
	}, nil)
	defer saver.Stop()

	// Rapid edits within the window collapse into one save.
	for i := 0; i < 5; i++ {
		saver.Touch()
		time.Sleep(5 * time.Millisecond)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return saves == 1
	}, "one debounced save")

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	if saves != 1 {
		mu.Unlock()
		t.Fatalf("expected no further saves without edits, got %d", saves)
	}
	mu.Unlock()
}

func TestAutosaverReportsStatus(t *testing.T) {
	states := make(chan app.SaveState, 8)
	saver := app.NewAutosaver(10*time.Millisecond, func(ctx context.Context) error {
		return nil
	}, func(state app.SaveState) {
		states <- state
	})
	defer saver.Stop()

	saver.Touch()

	if got := nextState(t, states); got != app.SaveSaving {
		t.Fatalf("expected saving, got %s", got)
	}
	if got := nextState(t, states); got != app.SaveSaved {
		t.Fatalf("expected saved, got %s", got)
	}
}

func TestAutosaverSurfacesErrorsWithoutRetry(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts int
	)
	states := make(chan app.SaveState, 8)
	saver := app.NewAutosaver(10*time.Millisecond, func(ctx context.Context) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("store down")
	}, func(state app.SaveState) {
		states <- state
	})
	defer saver.Stop()

	saver.Touch()
	if got := nextState(t, states); got != app.SaveSaving {
		t.Fatalf("expected saving, got %s", got)
	}
	if got := nextState(t, states); got != app.SaveError {
		t.Fatalf("expected error state, got %s", got)
	}

	// No proactive retry; only the next edit triggers another attempt.
	time.Sleep(40 * time.Millisecond)
	mu.Lock()
	if attempts != 1 {
		mu.Unlock()
		t.Fatalf("expected no automatic retry, got %d attempts", attempts)
	}
	mu.Unlock()

	saver.Touch()
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts == 2
	}, "retry on next edit")
}

func TestAutosaverFlushCancelsPendingTimer(t *testing.T) {
	var (
		mu    sync.Mutex
		saves int
	)
	saver := app.NewAutosaver(50*time.Millisecond, func(ctx context.Context) error {
		mu.Lock()
		saves++
		mu.Unlock()
		return nil
	}, nil)
	defer saver.Stop()

	saver.Touch()
	if err := saver.Flush(context.Background()); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if saves != 1 {
		t.Fatalf("expected exactly the flush save, got %d", saves)
	}
}

func TestAutosaverStopAbandonsTimer(t *testing.T) {
	var (
		mu    sync.Mutex
		saves int
	)
	saver := app.NewAutosaver(20*time.Millisecond, func(ctx context.Context) error {
		mu.Lock()
		saves++
		mu.Unlock()
		return nil
	}, nil)

	saver.Touch()
	saver.Stop()

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if saves != 0 {
		t.Fatalf("expected abandoned timer to never save, got %d", saves)
	}
}

func nextState(t *testing.T, states <-chan app.SaveState) app.SaveState {
	t.Helper()
	select {
	case s := <-states:
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for state")
		return ""
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
