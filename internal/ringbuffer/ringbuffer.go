package ringbuffer

import "errors"

// ErrFull is returned by Push on a full buffer with the Reject policy.
var ErrFull = errors.New("ring buffer full")

// Policy decides what Push does when a bounded buffer is full.
type Policy int

const (
	// Reject leaves the buffer unchanged and returns ErrFull.
	Reject Policy = iota
	// DropOldest discards the head to make room.
	DropOldest
)

const minGrow = 16

// RingBuffer is a FIFO of T backed by a circular slice. A zero capacity means
// unbounded: the backing slice grows as needed. It is not safe for concurrent
// use; callers hold their own lock.
type RingBuffer[T any] struct {
	buf      []T
	head     int
	size     int
	capacity int
	policy   Policy
	dropped  uint64
}

// New creates a ring buffer holding at most capacity items (0 = unbounded).
func New[T any](capacity int, policy Policy) *RingBuffer[T] {
	initial := capacity
	if capacity <= 0 {
		capacity = 0
		initial = minGrow
	}
	return &RingBuffer[T]{
		buf:      make([]T, initial),
		capacity: capacity,
		policy:   policy,
	}
}

// Push appends v at the tail. With DropOldest on a full buffer it returns the
// discarded head and true.
func (rb *RingBuffer[T]) Push(v T) (evicted T, dropped bool, err error) {
	if rb.Full() {
		if rb.policy == Reject {
			return evicted, false, ErrFull
		}
		evicted, _ = rb.Pop()
		dropped = true
		rb.dropped++
	}
	if rb.size == len(rb.buf) {
		rb.grow()
	}
	rb.buf[(rb.head+rb.size)%len(rb.buf)] = v
	rb.size++
	return evicted, dropped, nil
}

// Pop removes and returns the head.
func (rb *RingBuffer[T]) Pop() (T, bool) {
	var zero T
	if rb.size == 0 {
		return zero, false
	}
	v := rb.buf[rb.head]
	rb.buf[rb.head] = zero
	rb.head = (rb.head + 1) % len(rb.buf)
	rb.size--
	return v, true
}

// Peek returns the head without removing it.
func (rb *RingBuffer[T]) Peek() (T, bool) {
	if rb.size == 0 {
		var zero T
		return zero, false
	}
	return rb.buf[rb.head], true
}

// Len returns the number of queued items.
func (rb *RingBuffer[T]) Len() int { return rb.size }

// Cap returns the bound, or 0 when unbounded.
func (rb *RingBuffer[T]) Cap() int { return rb.capacity }

// Full reports whether a bounded buffer has no room left.
func (rb *RingBuffer[T]) Full() bool {
	return rb.capacity > 0 && rb.size >= rb.capacity
}

// Dropped returns how many items DropOldest has discarded.
func (rb *RingBuffer[T]) Dropped() uint64 { return rb.dropped }

func (rb *RingBuffer[T]) grow() {
	n := len(rb.buf) * 2
	if n < minGrow {
		n = minGrow
	}
	buf := make([]T, n)
	if rb.head+rb.size <= len(rb.buf) {
		copy(buf, rb.buf[rb.head:rb.head+rb.size])
	} else {
		first := copy(buf, rb.buf[rb.head:])
		copy(buf[first:], rb.buf[:rb.size-first])
	}
	rb.buf = buf
	rb.head = 0
}
