package pipeline

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// CoordinatorConfig parameterizes a Coordinator.
type CoordinatorConfig struct {
	Upsert AccumulatorConfig
	Delete AccumulatorConfig
	Pool   PoolConfig

	// MaxQueueSize is the pool queue depth at which both accumulators
	// pause; they resume once depth falls below MaxQueueSize/2.
	MaxQueueSize int
}

// UpsertHandler embeds and upserts one batch of upsert items.
type UpsertHandler func(ctx context.Context, items []interface{}) error

// DeleteHandler deletes one batch of paths.
type DeleteHandler func(ctx context.Context, paths []interface{}) error

// Coordinator owns an upsert accumulator and a delete accumulator, both
// wired to a shared worker pool, and applies backpressure to both based
// on the pool's queue depth.
type Coordinator struct {
	cfg  CoordinatorConfig
	pool *WorkerPool

	upsert *Accumulator
	delete *Accumulator

	upsertHandler UpsertHandler
	deleteHandler DeleteHandler

	mu             sync.Mutex
	pending        []<-chan BatchResult
	upsertBatchSeq uint64
	deleteBatchSeq uint64

	backpressured int32 // 0 or 1, guards the pause/resume edge
}

// NewCoordinator creates a Coordinator. It accepts work as soon as it
// is returned; calling Start first is not required.
func NewCoordinator(cfg CoordinatorConfig, upsertHandler UpsertHandler, deleteHandler DeleteHandler) *Coordinator {
	c := &Coordinator{cfg: cfg, upsertHandler: upsertHandler, deleteHandler: deleteHandler}
	c.pool = NewWorkerPool(cfg.Pool, nil, c.onQueueChange)
	c.upsert = NewAccumulator(cfg.Upsert, c.flushUpsertBatch, nil)
	c.delete = NewAccumulator(cfg.Delete, c.flushDeleteBatch, nil)
	return c
}

// Start is a no-op placeholder for symmetry with the spec's operation
// list; the coordinator is ready to accept work as soon as it is
// constructed.
func (c *Coordinator) Start() {}

// AddUpsert enqueues one item on the upsert accumulator.
func (c *Coordinator) AddUpsert(item interface{}) bool { return c.upsert.Add(item) }

// AddDelete enqueues one path on the delete accumulator.
func (c *Coordinator) AddDelete(path interface{}) bool { return c.delete.Add(path) }

// AddUpsertMany enqueues items, stopping at the first rejection.
func (c *Coordinator) AddUpsertMany(items []interface{}) int { return c.upsert.AddMany(items) }

// AddDeleteMany enqueues paths, stopping at the first rejection.
func (c *Coordinator) AddDeleteMany(paths []interface{}) int { return c.delete.AddMany(paths) }

func (c *Coordinator) flushUpsertBatch(items []interface{}) {
	c.mu.Lock()
	c.upsertBatchSeq++
	id := "upsert-" + strconv.FormatUint(c.upsertBatchSeq, 10)
	c.mu.Unlock()

	resultCh := c.pool.Submit(id, items, func(ctx context.Context, items []interface{}) error {
		return c.upsertHandler(ctx, items)
	})
	c.trackPending(resultCh)
}

func (c *Coordinator) flushDeleteBatch(paths []interface{}) {
	c.mu.Lock()
	c.deleteBatchSeq++
	id := "delete-" + strconv.FormatUint(c.deleteBatchSeq, 10)
	c.mu.Unlock()

	resultCh := c.pool.Submit(id, paths, func(ctx context.Context, paths []interface{}) error {
		return c.deleteHandler(ctx, paths)
	})
	c.trackPending(resultCh)
}

func (c *Coordinator) trackPending(ch <-chan BatchResult) {
	c.mu.Lock()
	c.pending = append(c.pending, ch)
	c.mu.Unlock()
}

// onQueueChange applies the hysteresis backpressure policy: pause both
// accumulators at MaxQueueSize, resume both below MaxQueueSize/2.
func (c *Coordinator) onQueueChange(depth int) {
	if c.cfg.MaxQueueSize <= 0 {
		return
	}
	if depth >= c.cfg.MaxQueueSize {
		if atomic.CompareAndSwapInt32(&c.backpressured, 0, 1) {
			c.upsert.Pause()
			c.delete.Pause()
		}
		return
	}
	if depth < c.cfg.MaxQueueSize/2 {
		if atomic.CompareAndSwapInt32(&c.backpressured, 1, 0) {
			c.upsert.Resume()
			c.delete.Resume()
		}
	}
}

// IsUpsertBackpressured reports whether the upsert accumulator is
// currently paused by backpressure.
func (c *Coordinator) IsUpsertBackpressured() bool { return atomic.LoadInt32(&c.backpressured) == 1 }

// IsDeleteBackpressured reports whether the delete accumulator is
// currently paused by backpressure.
func (c *Coordinator) IsDeleteBackpressured() bool { return atomic.LoadInt32(&c.backpressured) == 1 }

// WaitForBackpressure blocks until backpressure releases or timeout
// elapses, returning whether it released.
func (c *Coordinator) WaitForBackpressure(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !c.IsUpsertBackpressured() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return !c.IsUpsertBackpressured()
}

// Flush drains both accumulators and awaits every batch submitted so
// far.
func (c *Coordinator) Flush() {
	c.upsert.Drain()
	c.delete.Drain()

	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, ch := range pending {
		<-ch
	}
}

// Shutdown flushes then shuts down the underlying pool.
func (c *Coordinator) Shutdown() {
	c.Flush()
	c.pool.Shutdown()
}

// ForceShutdown discards buffered items and force-shuts-down the pool.
func (c *Coordinator) ForceShutdown() {
	c.upsert.Clear()
	c.delete.Clear()
	c.pool.ForceShutdown()
}

// Stats reports the shared pool's current load.
func (c *Coordinator) Stats() Stats { return c.pool.Stats() }
