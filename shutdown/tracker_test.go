package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTracker_StartDone(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 3; i++ {
		if !tr.Start() {
			t.Fatalf("Start() %d = false on open tracker", i)
		}
	}
	if got := tr.Active(); got != 3 {
		t.Errorf("Active() = %d, want 3", got)
	}
	for i := 0; i < 3; i++ {
		tr.Done()
	}
	if got := tr.Active(); got != 0 {
		t.Errorf("Active() = %d after Done, want 0", got)
	}
}

func TestTracker_CloseRejectsNewWork(t *testing.T) {
	tr := NewTracker()
	if !tr.Start() {
		t.Fatal("Start() = false")
	}
	tr.Close()
	if !tr.Closed() {
		t.Error("Closed() = false after Close")
	}
	if tr.Start() {
		t.Error("Start() = true after Close")
	}
	if got := tr.Active(); got != 1 {
		t.Errorf("Active() = %d, want 1 (running work continues)", got)
	}
	tr.Done()
}

func TestTracker_Wait(t *testing.T) {
	t.Run("returns once work finishes", func(t *testing.T) {
		tr := NewTracker()
		tr.Start()
		go func() {
			time.Sleep(20 * time.Millisecond)
			tr.Done()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := tr.Wait(ctx); err != nil {
			t.Fatalf("Wait() error: %v", err)
		}
	})

	t.Run("times out with work still running", func(t *testing.T) {
		tr := NewTracker()
		tr.Start()
		defer tr.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		err := tr.Wait(ctx)
		if !errors.Is(err, ErrWaitTimeout) || !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Wait() error = %v, want ErrWaitTimeout wrapping DeadlineExceeded", err)
		}
	})

	t.Run("idle tracker returns immediately", func(t *testing.T) {
		if err := NewTracker().Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error: %v", err)
		}
	})
}
