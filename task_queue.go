package lifo

// taskQueue is the pool's FIFO of pending tasks: a power-of-two ring buffer
// that doubles when full and shrinks back after long drains.
//
// Not thread-safe. Every call happens with the pool lock held; the size
// limit is enforced by the caller so that it can change at runtime.
type taskQueue struct {
	buffer []Task

	// head is the index of the oldest task, tail the next free slot.
	// Both grow without bound and are reduced with mask.
	head uint64
	tail uint64
	mask uint64

	minCapacity int
}

// newTaskQueue creates a queue with room for at least capacity tasks
// before its first resize.
func newTaskQueue(capacity int) *taskQueue {
	capacity = nextPowerOfTwo(capacity)
	if capacity < 16 {
		capacity = 16
	}
	return &taskQueue{
		buffer:      make([]Task, capacity),
		mask:        uint64(capacity - 1),
		minCapacity: capacity,
	}
}

// push appends a task at the tail.
func (q *taskQueue) push(task Task) {
	if q.len() == len(q.buffer) {
		q.resize(len(q.buffer) * 2)
	}
	q.buffer[q.tail&q.mask] = task
	q.tail++
}

// pop removes and returns the oldest task, or nil when empty.
func (q *taskQueue) pop() Task {
	if q.head == q.tail {
		return nil
	}
	index := q.head & q.mask
	task := q.buffer[index]
	q.buffer[index] = nil // release the closure for GC
	q.head++

	// Give memory back after a burst, but never below the initial size.
	if n := len(q.buffer); n > q.minCapacity && q.len() < n/4 {
		q.resize(n / 2)
	}
	return task
}

// drain removes every queued task, oldest first.
func (q *taskQueue) drain() []Task {
	tasks := make([]Task, 0, q.len())
	for {
		task := q.pop()
		if task == nil {
			return tasks
		}
		tasks = append(tasks, task)
	}
}

// len returns the number of queued tasks.
func (q *taskQueue) len() int {
	return int(q.tail - q.head)
}

// capacity returns the size of the backing buffer.
func (q *taskQueue) capacity() int {
	return len(q.buffer)
}

func (q *taskQueue) resize(capacity int) {
	buffer := make([]Task, capacity)
	n := q.len()
	for i := 0; i < n; i++ {
		buffer[i] = q.buffer[(q.head+uint64(i))&q.mask]
	}
	q.buffer = buffer
	q.mask = uint64(capacity - 1)
	q.head = 0
	q.tail = uint64(n)
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
