package barrier

import (
	"errors"
	"sync"
)

// ErrInvalidArity is returned when a barrier is created for fewer than one participant.
var ErrInvalidArity = errors.New("barrier arity must be positive")

// Barrier blocks its participants until all of them have arrived, then
// releases the whole group together. Exactly one caller per generation is
// told it arrived last, so a follow-up step that must run exactly once can
// be handed to that caller.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	arity      int
	waiting    int
	generation uint64
}

// New constructs a barrier for n participants.
func New(n int) (*Barrier, error) {
	if n < 1 {
		return nil, ErrInvalidArity
	}
	b := &Barrier{arity: n}
	b.cond = sync.NewCond(&b.mu)
	return b, nil
}

// Wait blocks until every participant of the current generation has
// arrived and reports whether the caller was the last one in. The barrier
// resets on release and can be reused for the next generation. Waiters of
// one generation are never released by arrivals of the next.
func (b *Barrier) Wait() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	gen := b.generation
	b.waiting++
	if b.waiting == b.arity {
		b.waiting = 0
		b.generation++
		b.cond.Broadcast()
		return true
	}
	for gen == b.generation {
		b.cond.Wait()
	}
	return false
}

// Arity returns the number of participants the barrier waits for.
func (b *Barrier) Arity() int {
	if b == nil {
		return 0
	}
	return b.arity
}
