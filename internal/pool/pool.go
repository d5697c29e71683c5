// Package pool hands batches of items between worker goroutines and a single I/O goroutine.
//
// Producers (self-play workers) fill their own slot and move it to the shared queue when full.
// The consumer takes the whole queue in one step. On the reading side the roles swap:
// one producer pushes ready batches and every worker drains its slot, refilling it from the queue.
package pool

import "sync"

type Pool[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	slots    [][]T
	queue    [][]T
	closed   bool
}

// New creates a pool with one slot per worker. capacity is the size of a full batch.
func New[T any](workers, capacity int) *Pool[T] {
	var p = &Pool[T]{
		capacity: capacity,
		slots:    make([][]T, workers),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *Pool[T]) Capacity() int {
	return p.capacity
}

// Push appends item to the worker's slot. A full slot moves to the queue.
// Only the owning worker may touch its slot, so no lock is taken until hand-off.
func (p *Pool[T]) Push(worker int, item T) {
	var slot = p.slots[worker]
	if slot == nil {
		slot = make([]T, 0, p.capacity)
	}
	slot = append(slot, item)
	if len(slot) >= p.capacity {
		p.slots[worker] = nil
		p.PushBatch(slot)
		return
	}
	p.slots[worker] = slot
}

// Flush moves a partial slot to the queue.
func (p *Pool[T]) Flush(worker int) {
	var slot = p.slots[worker]
	p.slots[worker] = nil
	if len(slot) != 0 {
		p.PushBatch(slot)
	}
}

// PushBatch transfers ownership of batch to the pool.
func (p *Pool[T]) PushBatch(batch []T) {
	p.mu.Lock()
	p.queue = append(p.queue, batch)
	p.mu.Unlock()
	p.cond.Broadcast()
}

// TakeAll waits for at least one batch and takes the whole queue.
// It returns false once the pool is closed and the queue is empty.
func (p *Pool[T]) TakeAll() ([][]T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return nil, false
	}
	var result = p.queue
	p.queue = nil
	p.cond.Broadcast()
	return result, true
}

// WaitBelow blocks while the queue holds n batches or more.
// It returns false if the pool is closed.
func (p *Pool[T]) WaitBelow(n int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) >= n && !p.closed {
		p.cond.Wait()
	}
	return !p.closed
}

// Draw pops an item from the worker's slot, refilling the slot with the oldest queued batch.
// It returns false once the pool is closed and no batch is left.
func (p *Pool[T]) Draw(worker int) (T, bool) {
	var slot = p.slots[worker]
	if len(slot) == 0 {
		var ok bool
		slot, ok = p.takeOne()
		if !ok {
			var zero T
			return zero, false
		}
	}
	var item = slot[len(slot)-1]
	p.slots[worker] = slot[:len(slot)-1]
	return item, true
}

func (p *Pool[T]) takeOne() ([]T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return nil, false
	}
	var batch = p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	p.cond.Broadcast()
	return batch, true
}

// Close marks the end of input and wakes every waiter. Queued batches can still be taken.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Discard drops queued batches and closes the pool.
func (p *Pool[T]) Discard() {
	p.mu.Lock()
	p.closed = true
	p.queue = nil
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *Pool[T]) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Len returns the number of queued batches.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Pending counts items still held in slots or in the queue.
// Call it only after every worker has stopped.
func (p *Pool[T]) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n = 0
	for _, slot := range p.slots {
		n += len(slot)
	}
	for _, batch := range p.queue {
		n += len(batch)
	}
	return n
}
