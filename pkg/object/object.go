package object

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
	"unsafe"
)

// Type identifies the active variant of an Object.
type Type uint8

const (
	TypeNull Type = iota
	TypeBool
	TypeI64
	TypeF64
	TypeBuf
	TypeList
	TypeMap
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeBool:
		return "BOOL"
	case TypeI64:
		return "I64"
	case TypeF64:
		return "F64"
	case TypeBuf:
		return "BUF"
	case TypeList:
		return "LIST"
	case TypeMap:
		return "MAP"
	default:
		return "UNKNOWN"
	}
}

// node is the representation shared by every reference kind.
type node struct {
	typ   Type
	bits  uint64
	buf   []byte
	items []node
	pairs []pair
	lease *lease
}

type pair struct {
	key      []byte
	keyLease *lease
	val      node
}

// Object is a dynamically typed value with reference kind O.
// The zero value is Null.
type Object[O Ownership] struct {
	n node
}

// Null returns a null object.
func Null[O Ownership]() Object[O] {
	return Object[O]{}
}

// Bool returns a boolean object.
func Bool[O Ownership](b bool) Object[O] {
	var bits uint64
	if b {
		bits = 1
	}
	return Object[O]{n: node{typ: TypeBool, bits: bits}}
}

// I64 returns an integer object.
func I64[O Ownership](v int64) Object[O] {
	return Object[O]{n: node{typ: TypeI64, bits: uint64(v)}}
}

// F64 returns a floating point object.
func F64[O Ownership](v float64) Object[O] {
	return Object[O]{n: node{typ: TypeF64, bits: math.Float64bits(v)}}
}

// Buf returns a text object. Shared and Mutable objects reference s
// directly; Owned objects copy it.
func Buf[O Ownership](s string) Object[O] {
	return BufBytes[O](bytesOf(s))
}

// BufBytes returns a text object over b. Shared and Mutable objects record b
// verbatim and must not outlive it.
func BufBytes[O Ownership](b []byte) Object[O] {
	var k O
	buf, l := k.wrap(DefaultHeap, b)
	return Object[O]{n: node{typ: TypeBuf, buf: buf, lease: l}}
}

// NewList returns a list object over items. The slice is recorded verbatim;
// an Owned list takes ownership of the items.
func NewList[O Ownership](items ...Object[O]) Object[O] {
	return Object[O]{n: node{typ: TypeList, items: nodesOf(items), lease: containerLease[O]()}}
}

// NewMap returns a map object over kvs. The slice is recorded verbatim; an
// Owned map takes ownership of the entries.
func NewMap[O Ownership](kvs ...KV[O]) Object[O] {
	return Object[O]{n: node{typ: TypeMap, pairs: pairsOf(kvs), lease: containerLease[O]()}}
}

func containerLease[O Ownership]() *lease {
	var k O
	if _, ok := any(k).(Owned); ok {
		return &lease{}
	}
	return nil
}

// Type returns the active variant.
func (o Object[O]) Type() Type {
	return o.n.typ
}

// Unpacked is a read-only view of an object's active variant. Only the field
// matching Type is meaningful.
type Unpacked struct {
	Type Type
	Bool bool
	I64  int64
	F64  float64
	Buf  string
	List List[Shared]
	Map  Map[Shared]
}

// Unpack returns a Shared view of the active variant without allocating.
// It panics if a text payload is not valid UTF-8.
func (o Object[O]) Unpack() Unpacked {
	return unpackNode(&o.n)
}

func unpackNode(n *node) Unpacked {
	u := Unpacked{Type: n.typ}
	switch n.typ {
	case TypeBool:
		u.Bool = n.bits != 0
	case TypeI64:
		u.I64 = int64(n.bits)
	case TypeF64:
		u.F64 = math.Float64frombits(n.bits)
	case TypeBuf:
		u.Buf = textOf(n.buf)
	case TypeList:
		u.List = List[Shared]{items: n.items}
	case TypeMap:
		u.Map = Map[Shared]{pairs: n.pairs}
	}
	return u
}

// AsBool returns the boolean payload.
func (o Object[O]) AsBool() (bool, bool) {
	return o.n.bits != 0, o.n.typ == TypeBool
}

// AsI64 returns the integer payload.
func (o Object[O]) AsI64() (int64, bool) {
	return int64(o.n.bits), o.n.typ == TypeI64
}

// AsF64 returns the floating point payload.
func (o Object[O]) AsF64() (float64, bool) {
	if o.n.typ != TypeF64 {
		return 0, false
	}
	return math.Float64frombits(o.n.bits), true
}

// AsBuf returns the text payload. It panics on invalid UTF-8.
func (o Object[O]) AsBuf() (string, bool) {
	if o.n.typ != TypeBuf {
		return "", false
	}
	return textOf(o.n.buf), true
}

// AsList returns the list payload with this object's reference kind.
func (o Object[O]) AsList() (List[O], bool) {
	if o.n.typ != TypeList {
		return List[O]{}, false
	}
	return List[O]{items: o.n.items}, true
}

// AsMap returns the map payload with this object's reference kind.
func (o Object[O]) AsMap() (Map[O], bool) {
	if o.n.typ != TypeMap {
		return Map[O]{}, false
	}
	return Map[O]{pairs: o.n.pairs}, true
}

// Share returns a Shared view of o. Nothing is copied; the view is valid as
// long as o's payload is.
func (o Object[O]) Share() Object[Shared] {
	return Object[Shared]{n: o.n}
}

// ToOwned returns a deep copy of o allocated from DefaultHeap.
func (o Object[O]) ToOwned() Object[Owned] {
	return o.ToOwnedIn(DefaultHeap)
}

// ToOwnedIn returns a deep copy of o whose buffers come from h.
func (o Object[O]) ToOwnedIn(h Heap) Object[Owned] {
	return Object[Owned]{n: deepCopy(&o.n, h)}
}

func deepCopy(n *node, h Heap) node {
	out := node{typ: n.typ, bits: n.bits}
	switch n.typ {
	case TypeBuf:
		out.buf, out.lease = Owned{}.wrap(h, n.buf)
	case TypeList:
		out.items = make([]node, len(n.items))
		for i := range n.items {
			out.items[i] = deepCopy(&n.items[i], h)
		}
		out.lease = &lease{}
	case TypeMap:
		out.pairs = make([]pair, len(n.pairs))
		for i := range n.pairs {
			p := &n.pairs[i]
			out.pairs[i].key, out.pairs[i].keyLease = Owned{}.wrap(h, p.key)
			out.pairs[i].val = deepCopy(&p.val, h)
		}
		out.lease = &lease{}
	}
	return out
}

// Release gives up o's payload and resets o to Null. For Owned objects every
// buffer in the tree is freed exactly once, depth-first; releasing a copy of
// an already released object does nothing. For Shared and Mutable objects the
// referenced memory is left alone.
func (o *Object[O]) Release() {
	var k O
	k.release(&o.n)
	o.n = node{}
}

// Equal reports whether a and b hold structurally equal values, regardless
// of reference kind. Map entries are compared in order.
func Equal[A, B Ownership](a Object[A], b Object[B]) bool {
	return equalNode(&a.n, &b.n)
}

func equalNode(a, b *node) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case TypeNull:
		return true
	case TypeBool, TypeI64:
		return a.bits == b.bits
	case TypeF64:
		return math.Float64frombits(a.bits) == math.Float64frombits(b.bits)
	case TypeBuf:
		return string(a.buf) == string(b.buf)
	case TypeList:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !equalNode(&a.items[i], &b.items[i]) {
				return false
			}
		}
		return true
	case TypeMap:
		if len(a.pairs) != len(b.pairs) {
			return false
		}
		for i := range a.pairs {
			if string(a.pairs[i].key) != string(b.pairs[i].key) {
				return false
			}
			if !equalNode(&a.pairs[i].val, &b.pairs[i].val) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders o in a JSON-like notation for diagnostics.
func (o Object[O]) String() string {
	var sb strings.Builder
	writeNode(&sb, &o.n)
	return sb.String()
}

func writeNode(sb *strings.Builder, n *node) {
	switch n.typ {
	case TypeNull:
		sb.WriteString("null")
	case TypeBool:
		sb.WriteString(strconv.FormatBool(n.bits != 0))
	case TypeI64:
		sb.WriteString(strconv.FormatInt(int64(n.bits), 10))
	case TypeF64:
		sb.WriteString(strconv.FormatFloat(math.Float64frombits(n.bits), 'g', -1, 64))
	case TypeBuf:
		sb.WriteString(strconv.Quote(string(n.buf)))
	case TypeList:
		sb.WriteByte('[')
		for i := range n.items {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeNode(sb, &n.items[i])
		}
		sb.WriteByte(']')
	case TypeMap:
		sb.WriteByte('{')
		for i := range n.pairs {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(string(n.pairs[i].key)))
			sb.WriteByte(':')
			writeNode(sb, &n.pairs[i].val)
		}
		sb.WriteByte('}')
	}
}

// textOf views b as a string. b must be valid UTF-8.
func textOf(b []byte) string {
	if !utf8.Valid(b) {
		panic("object: text payload is not valid UTF-8")
	}
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// bytesOf views s as bytes. The result must never be written.
func bytesOf(s string) []byte {
	if s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// Object[O] and KV[O] are single-field wrappers of node and pair, so their
// slices share layout with the underlying slices.

func nodesOf[O Ownership](items []Object[O]) []node {
	if len(items) == 0 {
		return nil
	}
	return unsafe.Slice((*node)(unsafe.Pointer(unsafe.SliceData(items))), len(items))
}

func pairsOf[O Ownership](kvs []KV[O]) []pair {
	if len(kvs) == 0 {
		return nil
	}
	return unsafe.Slice((*pair)(unsafe.Pointer(unsafe.SliceData(kvs))), len(kvs))
}
