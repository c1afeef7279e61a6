package pool

import (
	"sync"
	"sync/atomic"
)

// Pool runs submitted jobs on a fixed number of goroutines.
type Pool struct {
	jobs    chan func()
	wg      sync.WaitGroup
	closed  atomic.Bool
	closeCh chan struct{}
	mu      sync.RWMutex
}

func New(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{
		jobs:    make(chan func(), n*2),
		closeCh: make(chan struct{}),
	}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for f := range p.jobs {
		if f != nil {
			f()
		}
	}
}

// Submit queues f and reports false if the pool is already closed.
// It blocks while the queue is full.
func (p *Pool) Submit(f func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed.Load() {
		return false
	}
	select {
	case p.jobs <- f:
		return true
	case <-p.closeCh:
		return false
	}
}

// Close stops accepting jobs. Already queued jobs still run.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.closeCh)

	p.mu.Lock()
	close(p.jobs)
	p.mu.Unlock()
}

func (p *Pool) Wait() {
	p.wg.Wait()
}
