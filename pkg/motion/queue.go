package motion

import (
	"sync"

	simerrors "fdm-printer-sim/pkg/errors"
)

// TickSink receives planned ticks in order.
type TickSink interface {
	Push(t Tick)
}

// Queue is an unbounded FIFO of ticks. It is safe for one planner goroutine
// and one render goroutine to share.
type Queue struct {
	mu     sync.Mutex
	ticks  []Tick
	head   int
	pushed uint64
	popped uint64
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends a tick.
func (q *Queue) Push(t Tick) {
	q.mu.Lock()
	q.ticks = append(q.ticks, t)
	q.pushed++
	q.mu.Unlock()
}

// Pop removes and returns the oldest tick, or ErrQueueEmpty.
func (q *Queue) Pop() (Tick, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.ticks) {
		return Tick{}, simerrors.QueueEmptyError()
	}
	t := q.ticks[q.head]
	q.head++
	q.popped++

	// Reclaim the consumed prefix once it dominates the backing array
	if q.head == len(q.ticks) {
		q.ticks = q.ticks[:0]
		q.head = 0
	} else if q.head >= 1024 && q.head*2 >= len(q.ticks) {
		n := copy(q.ticks, q.ticks[q.head:])
		q.ticks = q.ticks[:n]
		q.head = 0
	}
	return t, nil
}

// Len returns the number of pending ticks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ticks) - q.head
}

// Reset drops all pending ticks. Counters are kept.
func (q *Queue) Reset() {
	q.mu.Lock()
	q.ticks = nil
	q.head = 0
	q.mu.Unlock()
}

// Pushed returns the total number of ticks ever pushed.
func (q *Queue) Pushed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed
}

// Popped returns the total number of ticks ever popped.
func (q *Queue) Popped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popped
}
