// Package pipeline batches upsert and delete work, hands batches to a
// bounded worker pool with retry, and applies backpressure when the
// pool falls behind.
package pipeline

import (
	"sync"
	"time"
)

// AccumulatorConfig parameterizes an Accumulator.
type AccumulatorConfig struct {
	BatchSize    int
	FlushTimeout time.Duration
	MaxQueueSize int
	MinBatchSize int // 0 disables the low-latency re-arm behavior.
}

// Accumulator buffers items from a single logical producer and emits
// them as batches, either when the buffer fills or when a flush timer
// fires. It is safe for a single producer plus the accumulator's own
// internal timer goroutine; concurrent producers must serialize Add
// calls themselves.
type Accumulator struct {
	cfg            AccumulatorConfig
	onBatchReady   func([]interface{})
	onBackpressure func(paused bool)

	mu       sync.Mutex
	buffer   []interface{}
	paused   bool
	timer    *time.Timer
	timerGen int
}

// NewAccumulator creates an Accumulator. onBatchReady is invoked with
// the buffered items whenever a flush occurs; it must not block, since
// it may run on the timer goroutine.
func NewAccumulator(cfg AccumulatorConfig, onBatchReady func([]interface{}), onBackpressure func(bool)) *Accumulator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	return &Accumulator{cfg: cfg, onBatchReady: onBatchReady, onBackpressure: onBackpressure}
}

// Add appends item to the buffer unless the accumulator is paused. It
// flushes immediately if the buffer reaches BatchSize, otherwise it
// arms a flush timer if one is not already running.
func (a *Accumulator) Add(item interface{}) bool {
	a.mu.Lock()
	if a.paused {
		a.mu.Unlock()
		return false
	}

	a.buffer = append(a.buffer, item)
	if len(a.buffer) >= a.cfg.BatchSize {
		batch := a.takeLocked()
		a.mu.Unlock()
		a.emit(batch)
		return true
	}

	a.armTimerLocked(a.cfg.FlushTimeout, false)
	a.mu.Unlock()
	return true
}

// AddMany adds items one at a time, stopping at the first rejection,
// and returns the number accepted.
func (a *Accumulator) AddMany(items []interface{}) int {
	count := 0
	for _, item := range items {
		if !a.Add(item) {
			break
		}
		count++
	}
	return count
}

// Flush emits the current buffer as a single batch, clearing the
// buffer and canceling any pending timer. A no-op on an empty buffer.
func (a *Accumulator) Flush() {
	a.mu.Lock()
	batch := a.takeLocked()
	a.mu.Unlock()
	a.emit(batch)
}

// Pause stops Add from accepting new items. Invokes onBackpressure(true)
// only on the false→true transition.
func (a *Accumulator) Pause() {
	a.mu.Lock()
	if a.paused {
		a.mu.Unlock()
		return
	}
	a.paused = true
	a.mu.Unlock()
	if a.onBackpressure != nil {
		a.onBackpressure(true)
	}
}

// Resume re-enables Add. Invokes onBackpressure(false) only on the
// true→false transition.
func (a *Accumulator) Resume() {
	a.mu.Lock()
	if !a.paused {
		a.mu.Unlock()
		return
	}
	a.paused = false
	a.mu.Unlock()
	if a.onBackpressure != nil {
		a.onBackpressure(false)
	}
}

// Drain flushes any buffered items and stops the timer. Safe to call at
// shutdown.
func (a *Accumulator) Drain() {
	a.Flush()
}

// Clear discards buffered items without emitting them.
func (a *Accumulator) Clear() {
	a.mu.Lock()
	a.buffer = nil
	a.cancelTimerLocked()
	a.mu.Unlock()
}

// takeLocked removes and returns the current buffer, canceling the
// timer. Must be called with a.mu held. Returns nil if the buffer is
// empty.
func (a *Accumulator) takeLocked() []interface{} {
	a.cancelTimerLocked()
	if len(a.buffer) == 0 {
		return nil
	}
	batch := a.buffer
	a.buffer = nil
	return batch
}

func (a *Accumulator) emit(batch []interface{}) {
	if len(batch) == 0 {
		return
	}
	a.onBatchReady(batch)
}

// armTimerLocked starts a flush timer if none is running. Must be
// called with a.mu held.
func (a *Accumulator) armTimerLocked(d time.Duration, secondFire bool) {
	if a.timer != nil {
		return
	}
	gen := a.timerGen
	a.timer = time.AfterFunc(d, func() { a.onTimerFire(gen, secondFire) })
}

// cancelTimerLocked stops the running timer, if any, and bumps the
// generation so an already-fired timer callback observes staleness and
// does nothing. Must be called with a.mu held.
func (a *Accumulator) cancelTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.timerGen++
}

// onTimerFire implements the flush-timer policy: if MinBatchSize is
// configured and the buffer is below it but nonempty, re-arm a
// half-duration timer and force the flush on the second fire; otherwise
// flush now.
func (a *Accumulator) onTimerFire(gen int, secondFire bool) {
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

	if a.cfg.MinBatchSize > 0 && len(a.buffer) < a.cfg.MinBatchSize && !secondFire {
		a.timer = nil
		a.armTimerLocked(a.cfg.FlushTimeout/2, true)
		a.mu.Unlock()
		return
	}

	batch := a.takeLocked()
	a.mu.Unlock()
	a.emit(batch)
}
