// Package arena provides the bump allocator behind caller-supplied scratch
// memory.
//
// Decoded responses are placed in an Arena created over a byte region the
// caller owns. Only text is placed in that region. List and map nodes live
// on the Go heap and are charged against the region at fixed sizes without
// using its bytes, so a fixed-capacity buffer bounds the size of any decoded
// value but does not hold all of it. Allocation never truncates: when the
// region is exhausted the call fails with ggerr.Nomem and nothing is returned.
//
//	buf := make([]byte, 4096)
//	a := arena.New(buf)
//	s, err := a.ClaimBuf(payload)
package arena

import (
	"unsafe"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/object"
)

// Node sizes charged for decoded containers.
const (
	// ObjectSize is charged per list item.
	ObjectSize = 16

	// KVSize is charged per map entry.
	KVSize = 2 * ObjectSize
)

// Arena is a bump allocator over a caller-owned byte region.
// An Arena is not safe for concurrent use.
type Arena struct {
	mem  []byte
	used int
}

// New returns an arena over mem. The arena never grows beyond len(mem).
func New(mem []byte) *Arena {
	return &Arena{mem: mem}
}

// Alloc returns n bytes from the arena.
func (a *Arena) Alloc(n int) ([]byte, error) {
	if n < 0 || n > a.Remaining() {
		return nil, ggerr.Errorf(ggerr.Nomem, "arena: need %d bytes, %d remaining", n, a.Remaining())
	}
	b := a.mem[a.used : a.used+n : a.used+n]
	a.used += n
	return b, nil
}

// Charge reserves n bytes of capacity without handing them out.
func (a *Arena) Charge(n int) error {
	_, err := a.Alloc(n)
	return err
}

// Owns reports whether b lies inside the arena's region.
func (a *Arena) Owns(b []byte) bool {
	if len(b) == 0 || len(a.mem) == 0 {
		return false
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(a.mem)))
	p := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	return p >= base && p < base+uintptr(len(a.mem))
}

// ClaimBuf copies b into the arena unless it already lives there.
func (a *Arena) ClaimBuf(b []byte) ([]byte, error) {
	if a.Owns(b) {
		return b, nil
	}
	dst, err := a.Alloc(len(b))
	if err != nil {
		return nil, err
	}
	copy(dst, b)
	return dst, nil
}

// ClaimString copies s into the arena.
func (a *Arena) ClaimString(s string) ([]byte, error) {
	dst, err := a.Alloc(len(s))
	if err != nil {
		return nil, err
	}
	copy(dst, s)
	return dst, nil
}

// Remaining returns the number of unallocated bytes.
func (a *Arena) Remaining() int {
	return len(a.mem) - a.used
}

// Used returns the number of allocated bytes.
func (a *Arena) Used() int {
	return a.used
}

// Cap returns the size of the region.
func (a *Arena) Cap() int {
	return len(a.mem)
}

// Rewind discards every allocation made after mark, a value previously
// returned by Used.
func (a *Arena) Rewind(mark int) {
	if mark >= 0 && mark <= a.used {
		a.used = mark
	}
}

// Reset discards every allocation. Values borrowing from the arena become
// invalid.
func (a *Arena) Reset() {
	a.used = 0
}

// Objects returns heap storage for n list items and charges the arena
// ObjectSize for each. The items do not live in the arena's region.
func Objects(a *Arena, n int) ([]object.Object[object.Shared], error) {
	if err := a.Charge(n * ObjectSize); err != nil {
		return nil, err
	}
	return make([]object.Object[object.Shared], n), nil
}

// KVs returns heap storage for n map entries and charges the arena KVSize
// for each. The entries do not live in the arena's region.
func KVs(a *Arena, n int) ([]object.KV[object.Shared], error) {
	if err := a.Charge(n * KVSize); err != nil {
		return nil, err
	}
	return make([]object.KV[object.Shared], n), nil
}

// ClaimObject copies o and everything it references into a. On failure the
// arena is rewound and nothing is returned.
func ClaimObject(a *Arena, o object.Object[object.Shared]) (object.Object[object.Shared], error) {
	mark := a.used
	out, err := claim(a, o)
	if err != nil {
		a.Rewind(mark)
		return object.Object[object.Shared]{}, err
	}
	return out, nil
}

func claim(a *Arena, o object.Object[object.Shared]) (object.Object[object.Shared], error) {
	u := o.Unpack()
	switch u.Type {
	case object.TypeBuf:
		b, err := a.ClaimString(u.Buf)
		if err != nil {
			return o, err
		}
		return object.BufBytes[object.Shared](b), nil

	case object.TypeList:
		items, err := Objects(a, u.List.Len())
		if err != nil {
			return o, err
		}
		for i, item := range u.List.All() {
			if items[i], err = claim(a, item); err != nil {
				return o, err
			}
		}
		return object.NewList(items...), nil

	case object.TypeMap:
		kvs, err := KVs(a, u.Map.Len())
		if err != nil {
			return o, err
		}
		for i := range u.Map.Len() {
			kv := u.Map.At(i)
			key, err := a.ClaimString(kv.Key())
			if err != nil {
				return o, err
			}
			val, err := claim(a, kv.Val())
			if err != nil {
				return o, err
			}
			kvs[i] = object.NewKVBytes(key, val)
		}
		return object.NewMap(kvs...), nil
	}
	return o, nil
}
