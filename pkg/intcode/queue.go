package intcode

// Queue is a FIFO of machine values. It never blocks; what happens on an
// empty input queue is decided by the machine, not the queue.
type Queue struct {
	items []int64
	head  int
}

// Push appends v to the back of the queue.
func (q *Queue) Push(v int64) {
	q.items = append(q.items, v)
}

// PushAll appends vs in order.
func (q *Queue) PushAll(vs ...int64) {
	q.items = append(q.items, vs...)
}

// Pop removes and returns the front value.
func (q *Queue) Pop() (int64, bool) {
	if q.head >= len(q.items) {
		return 0, false
	}
	v := q.items[q.head]
	q.head++

	// Reclaim the consumed prefix once it dominates the slice.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return v, true
}

// Peek returns the front value without removing it.
func (q *Queue) Peek() (int64, bool) {
	if q.head >= len(q.items) {
		return 0, false
	}
	return q.items[q.head], true
}

// Len returns the number of queued values.
func (q *Queue) Len() int {
	return len(q.items) - q.head
}

// Drain removes and returns all queued values.
func (q *Queue) Drain() []int64 {
	out := q.Values()
	q.items = q.items[:0]
	q.head = 0
	return out
}

// Values returns a copy of the queued values without consuming them.
func (q *Queue) Values() []int64 {
	out := make([]int64, q.Len())
	copy(out, q.items[q.head:])
	return out
}
