package learn

import "sync"

// TaskDispatcher queues tasks that idle workers pick up.
// Each task receives the id of the worker that runs it.
type TaskDispatcher struct {
	mu    sync.Mutex
	cond  *sync.Cond
	tasks []func(worker int)
	wg    sync.WaitGroup
}

func NewTaskDispatcher() *TaskDispatcher {
	var d = &TaskDispatcher{}
	d.cond = sync.NewCond(&d.mu)
	return d
}

func (d *TaskDispatcher) Push(task func(worker int)) {
	d.wg.Add(1)
	d.mu.Lock()
	d.tasks = append(d.tasks, task)
	d.mu.Unlock()
	d.cond.Broadcast()
}

func (d *TaskDispatcher) pop() (func(worker int), bool) {
	if len(d.tasks) == 0 {
		return nil, false
	}
	var task = d.tasks[0]
	d.tasks[0] = nil
	d.tasks = d.tasks[1:]
	return task, true
}

func (d *TaskDispatcher) run(worker int, task func(worker int)) {
	defer d.wg.Done()
	task(worker)
}

// OnIdle runs queued tasks until the queue is empty.
func (d *TaskDispatcher) OnIdle(worker int) {
	for {
		d.mu.Lock()
		var task, ok = d.pop()
		d.mu.Unlock()
		if !ok {
			return
		}
		d.run(worker, task)
	}
}

// WaitAndRun runs queued tasks while wait returns true, sleeping when the queue is empty.
// wait is called with the dispatcher lock held; whoever changes its outcome must call Wake.
func (d *TaskDispatcher) WaitAndRun(worker int, wait func() bool) {
	d.mu.Lock()
	for wait() {
		if task, ok := d.pop(); ok {
			d.mu.Unlock()
			d.run(worker, task)
			d.mu.Lock()
			continue
		}
		d.cond.Wait()
	}
	d.mu.Unlock()
}

// Wake rechecks the wait conditions of sleeping workers.
func (d *TaskDispatcher) Wake() {
	d.mu.Lock()
	d.mu.Unlock()
	d.cond.Broadcast()
}

// Wait blocks until every pushed task has finished.
func (d *TaskDispatcher) Wait() {
	d.wg.Wait()
}
