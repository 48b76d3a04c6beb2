package http

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestInFlightTracker_Count(t *testing.T) {
	tracker := &InFlightTracker{}
	steps := []struct {
		op   func()
		want int64
	}{
		{tracker.Increment, 1},
		{tracker.Increment, 2},
		{tracker.Decrement, 1},
		{tracker.Decrement, 0},
	}
	for i, s := range steps {
		s.op()
		if got := tracker.Count(); got != s.want {
			t.Errorf("step %d: Count() = %d, want %d", i, got, s.want)
		}
	}
}

func TestInFlightTracker_Concurrent(t *testing.T) {
	tracker := &InFlightTracker{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Increment()
			tracker.Decrement()
		}()
	}
	wg.Wait()
	if got := tracker.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
}

func TestInFlightTracker_WaitForZero(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- tracker.WaitForZero(ctx, 5*time.Millisecond) }()

	time.Sleep(10 * time.Millisecond)
	tracker.Decrement()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitForZero() error = %v", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("WaitForZero did not return after count reached zero")
	}
}

func TestInFlightTracker_WaitForZero_ContextCanceled(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tracker.WaitForZero(ctx, 5*time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Errorf("WaitForZero() error = %v, want context.Canceled", err)
	}
}
