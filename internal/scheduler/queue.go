package scheduler

// Queue is a bounded single-producer/single-consumer queue. TryPush and
// TryPop never block.
type Queue[T any] struct {
	ch chan T
}

// NewQueue creates a queue holding at most depth items. A non-positive depth
// selects DefaultQueueDepth.
func NewQueue[T any](depth int) *Queue[T] {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Queue[T]{ch: make(chan T, depth)}
}

// TryPush enqueues v, returning false if the queue is full.
func (q *Queue[T]) TryPush(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// TryPop dequeues the oldest item, returning false if the queue is empty.
func (q *Queue[T]) TryPop() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// C exposes the receive side for consumers that wait in a select.
func (q *Queue[T]) C() <-chan T {
	return q.ch
}

func (q *Queue[T]) Len() int   { return len(q.ch) }
func (q *Queue[T]) Cap() int   { return cap(q.ch) }
func (q *Queue[T]) Full() bool { return len(q.ch) == cap(q.ch) }
