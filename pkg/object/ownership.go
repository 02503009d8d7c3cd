package object

import "sync/atomic"

// Ownership is the reference kind of an Object. It is implemented only by
// Owned, Shared and Mutable.
type Ownership interface {
	Owned | Shared | Mutable

	// wrap adopts a text region under this kind.
	wrap(h Heap, b []byte) ([]byte, *lease)
	// release gives up whatever this kind holds on n.
	release(n *node)
}

// Exclusive admits the kinds that may mutate their payload.
type Exclusive interface {
	Ownership
	Owned | Mutable
}

// Owned objects own their payload and every child.
type Owned struct{}

// Shared objects borrow their payload read-only.
type Shared struct{}

// Mutable objects borrow their payload exclusively.
type Mutable struct{}

func (Owned) wrap(h Heap, b []byte) ([]byte, *lease) {
	buf := h.Alloc(len(b))
	copy(buf, b)
	return buf, &lease{heap: h}
}

func (Owned) release(n *node) {
	releaseNode(n)
}

func (Shared) wrap(_ Heap, b []byte) ([]byte, *lease) {
	return b, nil
}

func (Shared) release(*node) {}

func (Mutable) wrap(_ Heap, b []byte) ([]byte, *lease) {
	return b, nil
}

func (Mutable) release(*node) {}

// Heap provides the buffers behind owned text.
type Heap interface {
	// Alloc returns a buffer of exactly n bytes.
	Alloc(n int) []byte
	// Free returns a buffer obtained from Alloc.
	Free(b []byte)
}

// DefaultHeap backs Owned constructors and ToOwned.
var DefaultHeap Heap = goHeap{}

type goHeap struct{}

func (goHeap) Alloc(n int) []byte { return make([]byte, n) }
func (goHeap) Free([]byte)        {}

// lease tracks one owned allocation. Copies of an Owned object share the
// lease, so only the first release frees.
type lease struct {
	heap     Heap
	released atomic.Bool
}

func (l *lease) take() bool {
	return l != nil && l.released.CompareAndSwap(false, true)
}

func (l *lease) free(b []byte) {
	if l.take() && l.heap != nil {
		l.heap.Free(b)
	}
}

// releaseNode frees an owned subtree depth-first.
func releaseNode(n *node) {
	switch n.typ {
	case TypeBuf:
		n.lease.free(n.buf)
	case TypeList:
		if n.lease.take() {
			for i := range n.items {
				releaseNode(&n.items[i])
			}
		}
	case TypeMap:
		if n.lease.take() {
			for i := range n.pairs {
				p := &n.pairs[i]
				p.keyLease.free(p.key)
				releaseNode(&p.val)
			}
		}
	}
}
