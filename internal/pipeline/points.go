package pipeline

import (
	"sync"
	"time"
)

// PointsFlusher writes a batch of points directly to the vector store.
// wait=true is a durability barrier (used by explicit Flush); wait=false
// is fire-and-forget with weak ordering (used by the timer path).
type PointsFlusher func(items []interface{}, wait bool) error

// PointsAccumulator is a specialized accumulator whose flushes go
// straight to the vector store instead of through the worker pool.
// Timer-triggered flushes use wait=false; explicit Flush calls use
// wait=true. On error, the batch is unshifted back to the head of the
// buffer and the error is re-raised to the caller, preserving
// at-least-once delivery across caller retries.
type PointsAccumulator struct {
	cfg   AccumulatorConfig
	flush PointsFlusher

	mu       sync.Mutex
	buffer   []interface{}
	timer    *time.Timer
	timerGen int
}

// NewPointsAccumulator creates a PointsAccumulator.
func NewPointsAccumulator(cfg AccumulatorConfig, flush PointsFlusher) *PointsAccumulator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	return &PointsAccumulator{cfg: cfg, flush: flush}
}

// Add appends item to the buffer, flushing (wait=false) immediately if
// the buffer reaches BatchSize, otherwise arming a flush timer.
func (a *PointsAccumulator) Add(item interface{}) error {
	a.mu.Lock()
	a.buffer = append(a.buffer, item)
	full := len(a.buffer) >= a.cfg.BatchSize
	if !full {
		a.armTimerLocked()
		a.mu.Unlock()
		return nil
	}
	batch := a.buffer
	a.buffer = nil
	a.cancelTimerLocked()
	a.mu.Unlock()

	return a.flushBatch(batch, false)
}

// Flush is the explicit, durability-barrier flush path: it always uses
// wait=true.
func (a *PointsAccumulator) Flush() error {
	a.mu.Lock()
	batch := a.buffer
	a.buffer = nil
	a.cancelTimerLocked()
	a.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return a.flushBatch(batch, true)
}

func (a *PointsAccumulator) onTimerFire(gen int) {
	a.mu.Lock()
	if gen != a.timerGen {
		a.mu.Unlock()
		return
	}
	if len(a.buffer) == 0 {
		a.timer = nil
		a.mu.Unlock()
		return
	}
	batch := a.buffer
	a.buffer = nil
	a.timer = nil
	a.mu.Unlock()

	_ = a.flushBatch(batch, false)
}

// flushBatch writes batch to the store. On error, the batch is
// unshifted back to the head of the buffer so nothing is lost, and the
// error is returned to the caller (the timer path swallows it, since
// there is no caller to report to; the next flush will retry it).
func (a *PointsAccumulator) flushBatch(batch []interface{}, wait bool) error {
	if err := a.flush(batch, wait); err != nil {
		a.mu.Lock()
		a.buffer = append(batch, a.buffer...)
		a.mu.Unlock()
		return err
	}
	return nil
}

func (a *PointsAccumulator) armTimerLocked() {
	if a.timer != nil {
		return
	}
	gen := a.timerGen
	a.timer = time.AfterFunc(a.cfg.FlushTimeout, func() { a.onTimerFire(gen) })
}

func (a *PointsAccumulator) cancelTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.timerGen++
}
