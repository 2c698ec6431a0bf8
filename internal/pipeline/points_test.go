package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPointsAccumulatorFlushesAtBatchSizeWithWaitFalse(t *testing.T) {
	var mu sync.Mutex
	var gotWait bool
	var gotCount int

	acc := NewPointsAccumulator(AccumulatorConfig{BatchSize: 2, FlushTimeout: time.Hour}, func(items []interface{}, wait bool) error {
		mu.Lock()
		gotWait = wait
		gotCount = len(items)
		mu.Unlock()
		return nil
	})

	if err := acc.Add("a"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := acc.Add("b"); err != nil {
		t.Fatalf("add: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotCount != 2 {
		t.Fatalf("expected batch of 2, got %d", gotCount)
	}
	if gotWait {
		t.Fatal("expected size-triggered flush to use wait=false")
	}
}

func TestPointsAccumulatorExplicitFlushUsesWaitTrue(t *testing.T) {
	var gotWait bool
	acc := NewPointsAccumulator(AccumulatorConfig{BatchSize: 100, FlushTimeout: time.Hour}, func(items []interface{}, wait bool) error {
		gotWait = wait
		return nil
	})

	acc.Add("a")
	if err := acc.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if !gotWait {
		t.Fatal("expected explicit flush to use wait=true")
	}
}

func TestPointsAccumulatorUnshiftsOnError(t *testing.T) {
	calls := 0
	acc := NewPointsAccumulator(AccumulatorConfig{BatchSize: 100, FlushTimeout: time.Hour}, func(items []interface{}, wait bool) error {
		calls++
		if calls == 1 {
			return errors.New("store unavailable")
		}
		return nil
	})

	acc.Add("a")
	acc.Add("b")

	err := acc.Flush()
	if err == nil {
		t.Fatal("expected first flush to fail")
	}

	// The failed batch should still be buffered; a second flush retries it.
	if err := acc.Flush(); err != nil {
		t.Fatalf("expected retry flush to succeed, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 flush attempts, got %d", calls)
	}
}

func TestPointsAccumulatorTimerFlushUsesWaitFalse(t *testing.T) {
	done := make(chan bool, 1)
	acc := NewPointsAccumulator(AccumulatorConfig{BatchSize: 100, FlushTimeout: 20 * time.Millisecond}, func(items []interface{}, wait bool) error {
		done <- wait
		return nil
	})

	acc.Add("a")

	select {
	case wait := <-done:
		if wait {
			t.Fatal("expected timer-triggered flush to use wait=false")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for timer flush")
	}
}
