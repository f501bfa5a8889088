package lifo

// idleHandle identifies one registration in an idleStack. It stays valid
// until that registration is removed, by popLast or by remove, and is never
// reused: the generation changes every time a slot is freed.
type idleHandle struct {
	index      int32
	generation uint32
}

// idleSlot is one arena cell. Free cells are chained through next.
type idleSlot struct {
	w          *worker
	prev, next int32
	generation uint32
}

const nilSlot int32 = -1

// idleStack is the registry of parked workers: a doubly linked list laid
// out in an arena with a free list. The tail is the most recently parked
// worker. Push, pop and removal by handle are all O(1), and handles survive
// any number of unrelated pushes and pops.
//
// Not thread-safe; guarded by the pool lock.
type idleStack struct {
	slots []idleSlot
	head  int32
	tail  int32
	free  int32
	size  int
}

func newIdleStack(capacity int) *idleStack {
	if capacity < 4 {
		capacity = 4
	}
	return &idleStack{
		slots: make([]idleSlot, 0, capacity),
		head:  nilSlot,
		tail:  nilSlot,
		free:  nilSlot,
	}
}

// pushLast registers w as the most recently idled worker.
func (s *idleStack) pushLast(w *worker) idleHandle {
	idx := s.alloc()
	slot := &s.slots[idx]
	slot.w = w
	slot.prev = s.tail
	slot.next = nilSlot

	if s.tail != nilSlot {
		s.slots[s.tail].next = idx
	} else {
		s.head = idx
	}
	s.tail = idx
	s.size++

	return idleHandle{index: idx, generation: slot.generation}
}

// popLast removes and returns the most recently idled worker, or nil.
func (s *idleStack) popLast() *worker {
	if s.tail == nilSlot {
		return nil
	}
	idx := s.tail
	w := s.slots[idx].w
	s.unlink(idx)
	return w
}

// remove unregisters w using the handle returned when it was pushed.
// A stale handle or a handle that belongs to another worker means the
// registry and its users disagree, and is reported with a panic.
func (s *idleStack) remove(h idleHandle, w *worker) {
	if h.index < 0 || int(h.index) >= len(s.slots) {
		panic(illegalState("idle registry: handle %d out of range", h.index))
	}
	slot := &s.slots[h.index]
	if slot.generation != h.generation || slot.w == nil {
		panic(illegalState("idle registry: %s removed twice", w))
	}
	if slot.w != w {
		panic(illegalState("idle registry: handle of %s points at %s", w, slot.w))
	}
	s.unlink(h.index)
}

// len returns the number of registered workers.
func (s *idleStack) len() int {
	return s.size
}

// each calls fn for every registered worker, most recent first.
func (s *idleStack) each(fn func(w *worker)) {
	for idx := s.tail; idx != nilSlot; idx = s.slots[idx].prev {
		fn(s.slots[idx].w)
	}
}

func (s *idleStack) alloc() int32 {
	if s.free != nilSlot {
		idx := s.free
		s.free = s.slots[idx].next
		return idx
	}
	s.slots = append(s.slots, idleSlot{})
	return int32(len(s.slots) - 1)
}

func (s *idleStack) unlink(idx int32) {
	slot := &s.slots[idx]
	if slot.prev != nilSlot {
		s.slots[slot.prev].next = slot.next
	} else {
		s.head = slot.next
	}
	if slot.next != nilSlot {
		s.slots[slot.next].prev = slot.prev
	} else {
		s.tail = slot.prev
	}

	slot.w = nil
	slot.prev = nilSlot
	slot.generation++
	slot.next = s.free
	s.free = idx
	s.size--
}
