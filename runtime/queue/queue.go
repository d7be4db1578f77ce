package queue

import (
	"errors"
	"sync"
)

// ErrInvalidCapacity is returned when a queue is created with a capacity below one.
var ErrInvalidCapacity = errors.New("queue capacity must be positive")

// Item carries one line of text from the producer to a worker. Ownership
// moves with the value: once popped, the queue retains no reference to it.
type Item struct {
	text string
	end  bool
}

// NewItem wraps a line of text for transport through the queue.
func NewItem(text string) Item {
	return Item{text: text}
}

// EndMarker returns the distinguished item that tells exactly one worker to
// stop consuming. It travels through the queue like any other item.
func EndMarker() Item {
	return Item{end: true}
}

// Text returns the line carried by the item.
func (it Item) Text() string {
	return it.text
}

// EndOfStream reports whether the item is an end-of-stream marker.
func (it Item) EndOfStream() bool {
	return it.end
}

// Queue is a fixed-capacity FIFO ring shared by one producer and a pool of
// consumers. Push blocks while the ring is full and Pop blocks while it is
// empty; SignalShutdown wakes every blocked caller. Items keep their
// insertion order end to end.
type Queue struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	items    []Item
	head     int
	count    int
	shutdown bool
}

// New constructs an empty queue holding at most capacity items.
func New(capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	q := &Queue{items: make([]Item, capacity)}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q, nil
}

// Push appends an item at the tail, blocking while the queue is full. It
// returns false without inserting once shutdown has been signalled, whether
// that is observed on entry or after waking from a full-queue wait. The
// caller keeps ownership of a rejected item.
func (q *Queue) Push(it Item) bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.count == len(q.items) && !q.shutdown {
		q.notFull.Wait()
	}
	if q.shutdown {
		return false
	}
	q.items[(q.head+q.count)%len(q.items)] = it
	q.count++
	q.notEmpty.Signal()
	return true
}

// Pop removes the item at the head, blocking while the queue is empty.
// After shutdown it keeps returning queued items until the ring is drained,
// then reports false. The second return value is false only for the
// end-of-queue condition, never for a real item.
func (q *Queue) Pop() (Item, bool) {
	if q == nil {
		return Item{}, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.count == 0 && !q.shutdown {
		q.notEmpty.Wait()
	}
	if q.count == 0 {
		return Item{}, false
	}
	it := q.items[q.head]
	q.items[q.head] = Item{}
	q.head = (q.head + 1) % len(q.items)
	q.count--
	q.notFull.Signal()
	return it, true
}

// SignalShutdown marks the queue as shutting down and wakes every producer
// and consumer blocked on it. The flag is monotonic; calling this more than
// once has no further effect. Queued items stay poppable until drained.
func (q *Queue) SignalShutdown() {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.shutdown {
		return
	}
	q.shutdown = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// Drain removes and returns every item still queued, oldest first. It backs
// the owner's cleanup after all producers and consumers have stopped; each
// remaining item is handed out exactly once and later calls return nil.
func (q *Queue) Drain() []Item {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil
	}
	out := make([]Item, q.count)
	for i := 0; i < q.count; i++ {
		idx := (q.head + i) % len(q.items)
		out[i] = q.items[idx]
		q.items[idx] = Item{}
	}
	q.head = 0
	q.count = 0
	return out
}

// Len reports the number of items currently queued.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap reports the fixed capacity of the queue.
func (q *Queue) Cap() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}

// ShuttingDown reports whether shutdown has been signalled.
func (q *Queue) ShuttingDown() bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shutdown
}
