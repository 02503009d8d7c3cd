package object

import "iter"

// KV is a map entry with reference kind O.
type KV[O Ownership] struct {
	p pair
}

// NewKV returns an entry. Shared and Mutable entries reference key directly;
// Owned entries copy it and take ownership of val.
func NewKV[O Ownership](key string, val Object[O]) KV[O] {
	return NewKVBytes(bytesOf(key), val)
}

// NewKVBytes is like NewKV with the key given as bytes.
func NewKVBytes[O Ownership](key []byte, val Object[O]) KV[O] {
	var k O
	kb, kl := k.wrap(DefaultHeap, key)
	return KV[O]{p: pair{key: kb, keyLease: kl, val: val.n}}
}

// Key returns the entry key. It panics on invalid UTF-8.
func (kv KV[O]) Key() string {
	return textOf(kv.p.key)
}

// Val returns the entry value.
func (kv KV[O]) Val() Object[O] {
	return Object[O]{n: kv.p.val}
}

// SetKey replaces the key of an Owned or Mutable entry. An Owned entry frees
// its previous key.
func SetKey[O Exclusive](kv *KV[O], key string) {
	setPairKey[O](&kv.p, key)
}

func setPairKey[O Exclusive](p *pair, key string) {
	var k O
	p.keyLease.free(p.key)
	p.key, p.keyLease = k.wrap(DefaultHeap, bytesOf(key))
}

// List is an ordered sequence of objects.
type List[O Ownership] struct {
	items []node
}

// Len returns the number of items.
func (l List[O]) Len() int {
	return len(l.items)
}

// At returns item i.
func (l List[O]) At(i int) Object[O] {
	return Object[O]{n: l.items[i]}
}

// All iterates over the items in order.
func (l List[O]) All() iter.Seq2[int, Object[O]] {
	return func(yield func(int, Object[O]) bool) {
		for i := range l.items {
			if !yield(i, Object[O]{n: l.items[i]}) {
				return
			}
		}
	}
}

// Object wraps the list into an object aliasing l. Releasing the result does
// not free l's items.
func (l List[O]) Object() Object[O] {
	return Object[O]{n: node{typ: TypeList, items: l.items}}
}

// Map is an ordered sequence of entries. Keys are not required to be unique.
type Map[O Ownership] struct {
	pairs []pair
}

// Len returns the number of entries.
func (m Map[O]) Len() int {
	return len(m.pairs)
}

// At returns entry i.
func (m Map[O]) At(i int) KV[O] {
	return KV[O]{p: m.pairs[i]}
}

// Get returns the value of the first entry whose key equals key.
func (m Map[O]) Get(key string) (Object[O], bool) {
	if i := findKey(m.pairs, key); i >= 0 {
		return Object[O]{n: m.pairs[i].val}, true
	}
	return Object[O]{}, false
}

// GetPath follows path through nested maps and returns the value at its end.
// An empty path yields the map itself.
func (m Map[O]) GetPath(path ...string) (Object[O], bool) {
	if len(path) == 0 {
		return m.Object(), true
	}
	cur := m
	for _, key := range path[:len(path)-1] {
		v, ok := cur.Get(key)
		if !ok {
			return Object[O]{}, false
		}
		if cur, ok = v.AsMap(); !ok {
			return Object[O]{}, false
		}
	}
	return cur.Get(path[len(path)-1])
}

// All iterates over the entries in order.
func (m Map[O]) All() iter.Seq2[string, Object[O]] {
	return func(yield func(string, Object[O]) bool) {
		for i := range m.pairs {
			if !yield(textOf(m.pairs[i].key), Object[O]{n: m.pairs[i].val}) {
				return
			}
		}
	}
}

// Object wraps the map into an object aliasing m. Releasing the result does
// not free m's entries.
func (m Map[O]) Object() Object[O] {
	return Object[O]{n: node{typ: TypeMap, pairs: m.pairs}}
}

// Share returns a Shared view of m.
func (m Map[O]) Share() Map[Shared] {
	return Map[Shared]{pairs: m.pairs}
}

func findKey(pairs []pair, key string) int {
	for i := range pairs {
		if string(pairs[i].key) == key {
			return i
		}
	}
	return -1
}

// UnpackedMut is a mutable view of an object's active variant.
type UnpackedMut[O Exclusive] struct {
	Type Type
	Bool bool
	I64  int64
	F64  float64
	Buf  string
	List ListMut[O]
	Map  MapMut[O]
}

// UnpackMut returns a view of o that permits replacing children in place.
// Like Unpack it never allocates.
func UnpackMut[O Exclusive](o *Object[O]) UnpackedMut[O] {
	u := unpackNode(&o.n)
	return UnpackedMut[O]{
		Type: u.Type,
		Bool: u.Bool,
		I64:  u.I64,
		F64:  u.F64,
		Buf:  u.Buf,
		List: ListMut[O]{items: o.n.items},
		Map:  MapMut[O]{pairs: o.n.pairs},
	}
}

// ListMut permits in-place replacement of list items.
type ListMut[O Exclusive] struct {
	items []node
}

// Len returns the number of items.
func (l ListMut[O]) Len() int {
	return len(l.items)
}

// At returns item i.
func (l ListMut[O]) At(i int) Object[O] {
	return Object[O]{n: l.items[i]}
}

// Set replaces item i. For Owned lists the previous item is released and v
// is adopted.
func (l ListMut[O]) Set(i int, v Object[O]) {
	var k O
	k.release(&l.items[i])
	l.items[i] = v.n
}

// MapMut permits in-place replacement of map keys and values.
type MapMut[O Exclusive] struct {
	pairs []pair
}

// Len returns the number of entries.
func (m MapMut[O]) Len() int {
	return len(m.pairs)
}

// At returns entry i.
func (m MapMut[O]) At(i int) KV[O] {
	return KV[O]{p: m.pairs[i]}
}

// Get returns the value of the first entry whose key equals key.
func (m MapMut[O]) Get(key string) (Object[O], bool) {
	return Map[O](m).Get(key)
}

// Set replaces the value of entry i. For Owned maps the previous value is
// released and v is adopted.
func (m MapMut[O]) Set(i int, v Object[O]) {
	var k O
	k.release(&m.pairs[i].val)
	m.pairs[i].val = v.n
}

// Put replaces the value of the first entry whose key equals key and reports
// whether such an entry exists.
func (m MapMut[O]) Put(key string, v Object[O]) bool {
	i := findKey(m.pairs, key)
	if i < 0 {
		return false
	}
	m.Set(i, v)
	return true
}

// SetKey replaces the key of entry i.
func (m MapMut[O]) SetKey(i int, key string) {
	setPairKey[O](&m.pairs[i], key)
}
