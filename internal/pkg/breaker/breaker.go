package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/TemirB/ecommerce-orders/internal/config"
)

var ErrOpenState = errors.New("circuit breaker is open")

type State uint8

const (
	Closed   State = iota // normal operation
	Open                  // all calls rejected until OpenTimeout passes
	HalfOpen              // up to MaxHalfOpen trial calls
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Counts is a snapshot of outcomes reported to the breaker.
type Counts struct {
	TotalSuccess uint64
	TotalFailure uint64
	LastChange   time.Time
}

// Breaker opens after Threshold consecutive failures in Closed state. Callers
// report outcomes explicitly with Success and Failure.
type Breaker struct {
	mu          sync.Mutex
	cfg         config.Breaker
	state       State
	failCount   uint32
	halfOpenReq uint32
	lastChange  time.Time
	counts      Counts

	now func() time.Time
}

func New(cfg config.Breaker) *Breaker {
	if cfg.Threshold == 0 {
		cfg.Threshold = 1
	}
	if cfg.MaxHalfOpen == 0 {
		cfg.MaxHalfOpen = 1
	}
	return &Breaker{
		cfg:   cfg,
		state: Closed,
		now:   time.Now,
	}
}

func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case Open:
		if now.Sub(b.lastChange) < b.cfg.OpenTimeout {
			return ErrOpenState
		}
		b.transitionTo(now, HalfOpen)
		b.halfOpenReq++
		return nil
	case HalfOpen:
		if b.halfOpenReq >= b.cfg.MaxHalfOpen {
			return ErrOpenState
		}
		b.halfOpenReq++
		return nil
	default:
		return nil
	}
}

func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.counts.TotalSuccess++
	switch b.state {
	case HalfOpen:
		b.transitionTo(b.now(), Closed)
	case Closed:
		b.failCount = 0
	}
}

func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.counts.TotalFailure++
	switch b.state {
	case Closed:
		b.failCount++
		if b.failCount >= b.cfg.Threshold {
			b.transitionTo(b.now(), Open)
		}
	case HalfOpen:
		b.transitionTo(b.now(), Open)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.counts
	c.LastChange = b.lastChange
	return c
}

func (b *Breaker) transitionTo(now time.Time, next State) {
	b.state = next
	b.lastChange = now
	b.halfOpenReq = 0
	if next == Closed {
		b.failCount = 0
	}
}
