// Package workerpool provides a fixed-size pool of goroutines which run
// submitted funcs. In addition to fire-and-forget submission via Go, it
// supports fork-join style work splitting: a task which has been forked but
// not yet picked up by a worker may be reclaimed and run by the forking
// goroutine, or cancelled.
package workerpool

import (
	"sync"
	"sync/atomic"
)

const (
	statePending int32 = iota
	stateClaimed
	stateDone
	stateCancelled
)

// Task is a unit of work submitted to a Pool.
type Task struct {
	fn    func()
	state atomic.Int32
	done  chan struct{}
	pool  *Pool
}

// claim transitions the Task from pending to claimed. Only one caller wins.
func (t *Task) claim() bool {
	return t.state.CompareAndSwap(statePending, stateClaimed)
}

func (t *Task) finish(state int32) {
	t.state.Store(state)
	close(t.done)
	t.pool.outstanding.Done()
}

func (t *Task) run() {
	t.fn()
	t.finish(stateDone)
}

// Reclaim runs the Task on the calling goroutine if no worker has picked it
// up yet. Returns false if the Task was already claimed or cancelled, in which
// case the caller should Join it.
func (t *Task) Reclaim() bool {
	if !t.claim() {
		return false
	}
	t.run()
	return true
}

// Cancel prevents the Task from running if no worker has picked it up yet.
// Returns false if the Task is already running or finished.
func (t *Task) Cancel() bool {
	if !t.state.CompareAndSwap(statePending, stateCancelled) {
		return false
	}
	t.finish(stateCancelled)
	return true
}

// Join blocks until the Task has finished running or has been cancelled.
func (t *Task) Join() {
	<-t.done
}

// Cancelled returns true if the Task was cancelled before it ran.
func (t *Task) Cancelled() bool {
	return t.state.Load() == stateCancelled
}

// Pool is a fixed-size pool of worker goroutines.
type Pool struct {
	tasks       chan *Task
	workers     sync.WaitGroup
	outstanding sync.WaitGroup
	numWorkers  int

	mtx    sync.Mutex
	closed bool
}

// New returns a Pool with the given number of workers. The queue of forked
// tasks waiting for a worker holds at most numWorkers entries.
func New(numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	p := &Pool{
		tasks:      make(chan *Task, numWorkers),
		numWorkers: numWorkers,
	}
	p.workers.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer p.workers.Done()
			for t := range p.tasks {
				// Tasks which were reclaimed or cancelled while queued are skipped.
				if t.claim() {
					t.run()
				}
			}
		}()
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.numWorkers
}

// HasCapacity returns true if the queue of waiting tasks has room for another
// Fork. The answer is advisory; a concurrent Fork may take the slot.
func (p *Pool) HasCapacity() bool {
	return len(p.tasks) < cap(p.tasks)
}

func (p *Pool) newTask(fn func()) *Task {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.closed {
		panic("workerpool: use of Pool after Wait()")
	}
	p.outstanding.Add(1)
	return &Task{
		fn:   fn,
		done: make(chan struct{}),
		pool: p,
	}
}

// Go runs fn on one of the workers, blocking until a worker can accept it.
// Panics if called after Wait.
func (p *Pool) Go(fn func()) {
	p.tasks <- p.newTask(fn)
}

// Fork queues fn for a worker without blocking. If the queue is full, no Task
// is created and Fork returns false; the caller should run the work itself.
// Panics if called after Wait.
func (p *Pool) Fork(fn func()) (*Task, bool) {
	if !p.HasCapacity() {
		return nil, false
	}
	t := p.newTask(fn)
	select {
	case p.tasks <- t:
		return t, true
	default:
		// Lost the slot to a concurrent Fork. Nothing saw t, so retire it.
		t.claim()
		t.finish(stateCancelled)
		return nil, false
	}
}

// Wait waits for all submitted tasks to finish and then stops the workers. The
// Pool may not be used afterward; subsequent calls to Go, Fork or Wait panic.
func (p *Pool) Wait() {
	p.mtx.Lock()
	if p.closed {
		p.mtx.Unlock()
		panic("workerpool: Wait() called twice")
	}
	p.closed = true
	p.mtx.Unlock()

	p.outstanding.Wait()
	close(p.tasks)
	p.workers.Wait()
}
