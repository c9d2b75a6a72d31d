package reconnect

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestController_StartSucceedsFirstAttemptWithoutWaiting(t *testing.T) {
	t.Parallel()
	c := NewController()
	calls := 0
	start := time.Now()

	err := c.Start(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("first attempt should not wait, took %v", elapsed)
	}
	if c.State() != Connected {
		t.Fatalf("state = %v, want Connected", c.State())
	}
}

func TestController_RetriesThroughFailedUntilSuccess(t *testing.T) {
	t.Parallel()
	c := NewController()
	c.currentDelay = 20 * time.Millisecond // shrink for a fast test

	attempts := 0
	var states []State
	c.SetObserver(func(s State) { states = append(states, s) })

	err := c.Start(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}

	sawFailed := false
	for _, s := range states {
		if s == Failed {
			sawFailed = true
		}
	}
	if !sawFailed {
		t.Fatal("expected at least one Failed transition before eventual success")
	}
	if c.State() != Connected {
		t.Fatalf("final state = %v, want Connected", c.State())
	}
}

func TestController_DelayResetsAfterSuccess(t *testing.T) {
	t.Parallel()
	c := NewController()
	c.currentDelay = 10 * time.Millisecond

	attempts := 0
	c.Start(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("fail once")
		}
		return nil
	})
	if c.currentDelay != 1_000_000_000 { // protocol.ReconnectInitDelay == 1s in nanoseconds
		t.Fatalf("delay after success = %v, want reset to initial delay", c.currentDelay)
	}
}

func TestController_CancelStopsLoop(t *testing.T) {
	t.Parallel()
	c := NewController()
	c.currentDelay = 5 * time.Second // long enough that the test would hang if Cancel didn't interrupt it

	done := make(chan error, 1)
	go func() {
		done <- c.Start(context.Background(), func(ctx context.Context) error {
			return errors.New("always fails")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	c.Cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected Start to return an error after Cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Cancel")
	}
}
