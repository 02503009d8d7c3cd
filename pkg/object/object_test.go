package object

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
)

// countingHeap records every allocation and free.
type countingHeap struct {
	mu     sync.Mutex
	allocs int
	frees  map[*byte]int
	bufs   []*byte
}

func newCountingHeap() *countingHeap {
	return &countingHeap{frees: make(map[*byte]int)}
}

func (h *countingHeap) Alloc(n int) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	// Never hand out zero-sized buffers so every allocation has an identity.
	b := make([]byte, n, n+1)
	h.allocs++
	h.bufs = append(h.bufs, &b[:1][0])
	return b
}

func (h *countingHeap) Free(b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frees[&b[:1][0]]++
}

func (h *countingHeap) freeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.frees {
		n += c
	}
	return n
}

func (h *countingHeap) maxFreesPerBuffer() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := 0
	for _, c := range h.frees {
		m = max(m, c)
	}
	return m
}

func TestPrimitiveRoundTrip(t *testing.T) {
	for _, b := range []bool{true, false} {
		u := Bool[Shared](b).Unpack()
		if u.Type != TypeBool || u.Bool != b {
			t.Errorf("Bool(%v) unpacked to %+v", b, u)
		}
	}

	for _, n := range []int64{0, 1, -1, math.MaxInt64, math.MinInt64, 42} {
		u := I64[Owned](n).Unpack()
		if u.Type != TypeI64 || u.I64 != n {
			t.Errorf("I64(%d) unpacked to %+v", n, u)
		}
	}

	for _, f := range []float64{0, -0.5, 3.25, math.MaxFloat64, math.SmallestNonzeroFloat64, math.Inf(1)} {
		u := F64[Mutable](f).Unpack()
		if u.Type != TypeF64 || u.F64 != f {
			t.Errorf("F64(%v) unpacked to %+v", f, u)
		}
	}

	for _, s := range []string{"", "hello", "grüße", "日本語", "emoji 🚀"} {
		for _, u := range []Unpacked{
			Buf[Shared](s).Unpack(),
			Buf[Owned](s).Unpack(),
			Buf[Mutable](s).Unpack(),
		} {
			if u.Type != TypeBuf || u.Buf != s {
				t.Errorf("Buf(%q) unpacked to %+v", s, u)
			}
		}
	}

	if u := Null[Shared]().Unpack(); u.Type != TypeNull {
		t.Errorf("Null unpacked to %v", u.Type)
	}
	var zero Object[Owned]
	if zero.Type() != TypeNull {
		t.Errorf("zero object type = %v, want NULL", zero.Type())
	}
}

func TestSharedBufIsNotCopied(t *testing.T) {
	b := []byte("borrowed")
	obj := BufBytes[Shared](b)

	b[0] = 'B'
	if s, _ := obj.AsBuf(); s != "Borrowed" {
		t.Errorf("shared view = %q, want it to observe the write", s)
	}

	owned := BufBytes[Owned](b)
	b[0] = 'x'
	if s, _ := owned.AsBuf(); s != "Borrowed" {
		t.Errorf("owned copy = %q, want it to be independent", s)
	}
}

func nestedSample() Object[Shared] {
	return NewMap(
		NewKV("name", Buf[Shared]("sensor")),
		NewKV("tags", NewList(Buf[Shared]("a"), Buf[Shared]("b"), Buf[Shared]("c"))),
		NewKV("limits", NewMap(
			NewKV("min", I64[Shared](-5)),
			NewKV("max", F64[Shared](99.5)),
		)),
		NewKV("enabled", Bool[Shared](true)),
		NewKV("extra", Null[Shared]()),
	)
}

func TestToOwnedUnpackEqual(t *testing.T) {
	orig := nestedSample()
	owned := orig.ToOwned()

	if !Equal(orig, owned) {
		t.Fatalf("owned copy differs: %s vs %s", orig, owned)
	}

	u := owned.Unpack()
	if u.Type != TypeMap {
		t.Fatalf("type = %v, want MAP", u.Type)
	}
	tags, ok := u.Map.Get("tags")
	if !ok {
		t.Fatal("tags missing")
	}
	list, ok := tags.AsList()
	if !ok || list.Len() != 3 {
		t.Fatalf("tags = %s", tags)
	}
	if s, _ := list.At(2).AsBuf(); s != "c" {
		t.Errorf("tags[2] = %q, want c", s)
	}

	again := owned.ToOwned()
	if !Equal(again, orig) {
		t.Error("second to_owned differs")
	}
}

func TestMapGet(t *testing.T) {
	m := NewMap(NewKV("a", I64[Shared](1)), NewKV("b", I64[Shared](2)))
	mm, _ := m.AsMap()

	v, ok := mm.Get("b")
	if !ok || !Equal(v, I64[Shared](2)) {
		t.Errorf("Get(b) = %s, %v", v, ok)
	}
	if _, ok := mm.Get("c"); ok {
		t.Error("Get(c) found a value")
	}
}

func TestMapGetFirstMatch(t *testing.T) {
	mm, _ := NewMap(
		NewKV("k", I64[Shared](1)),
		NewKV("k", I64[Shared](2)),
	).AsMap()

	v, _ := mm.Get("k")
	if n, _ := v.AsI64(); n != 1 {
		t.Errorf("Get(k) = %d, want first entry", n)
	}
	if mm.Len() != 2 {
		t.Errorf("Len = %d, want 2", mm.Len())
	}
}

func TestMapGetPath(t *testing.T) {
	mm, _ := nestedSample().AsMap()

	v, ok := mm.GetPath("limits", "max")
	if f, _ := v.AsF64(); !ok || f != 99.5 {
		t.Errorf("GetPath(limits, max) = %s, %v", v, ok)
	}
	if _, ok := mm.GetPath("name", "x"); ok {
		t.Error("GetPath through a non-map succeeded")
	}
	if _, ok := mm.GetPath("nope", "x"); ok {
		t.Error("GetPath through a missing key succeeded")
	}
	if v, ok := mm.GetPath(); !ok || v.Type() != TypeMap {
		t.Error("empty path should return the map")
	}
}

func TestMapIteration(t *testing.T) {
	mm, _ := nestedSample().AsMap()

	var keys []string
	for k := range mm.All() {
		keys = append(keys, k)
	}
	want := []string{"name", "tags", "limits", "enabled", "extra"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestOwnedReleaseExactlyOnce(t *testing.T) {
	h := newCountingHeap()

	src := NewList(Buf[Shared]("one"), Buf[Shared]("two"), Buf[Shared]("three"))
	owned := src.ToOwnedIn(h)

	if h.allocs != 3 {
		t.Fatalf("allocs = %d, want 3", h.allocs)
	}

	alias := owned
	owned.Release()
	if got := h.freeCount(); got != 3 {
		t.Errorf("frees after release = %d, want 3", got)
	}
	if owned.Type() != TypeNull {
		t.Error("released object should be Null")
	}

	alias.Release()
	owned.Release()
	if got := h.freeCount(); got != 3 {
		t.Errorf("frees after repeated release = %d, want 3", got)
	}
	if h.maxFreesPerBuffer() != 1 {
		t.Error("a buffer was freed more than once")
	}
}

func TestOwnedReleaseCycles(t *testing.T) {
	h := newCountingHeap()
	src := nestedSample()

	for i := 0; i < 10; i++ {
		a := src.ToOwnedIn(h)
		b := a.ToOwnedIn(h)
		c := b
		a.Release()
		b.Release()
		c.Release()
	}

	if h.freeCount() != h.allocs {
		t.Errorf("frees = %d, allocs = %d", h.freeCount(), h.allocs)
	}
	if h.maxFreesPerBuffer() != 1 {
		t.Error("a buffer was freed more than once")
	}
}

func TestOwnedMapReleasesKeysAndValues(t *testing.T) {
	h := newCountingHeap()
	m := NewMap(
		NewKV("k1", Buf[Shared]("v1")),
		NewKV("k2", NewList(Buf[Shared]("v2"))),
	).ToOwnedIn(h)

	// two keys plus two text values
	if h.allocs != 4 {
		t.Fatalf("allocs = %d, want 4", h.allocs)
	}
	m.Release()
	if h.freeCount() != 4 {
		t.Errorf("frees = %d, want 4", h.freeCount())
	}
}

func TestSharedReleaseLeavesMemory(t *testing.T) {
	b := []byte("keep")
	obj := BufBytes[Shared](b)
	obj.Release()

	if string(b) != "keep" {
		t.Error("shared release touched the referenced memory")
	}
	if obj.Type() != TypeNull {
		t.Error("released view should be Null")
	}
}

func TestUnpackMutReplacesChild(t *testing.T) {
	h := newCountingHeap()
	obj := NewList(Buf[Shared]("old"), I64[Shared](1)).ToOwnedIn(h)

	u := UnpackMut(&obj)
	if u.Type != TypeList {
		t.Fatalf("type = %v", u.Type)
	}
	u.List.Set(0, Buf[Owned]("new"))

	if h.freeCount() != 1 {
		t.Errorf("old child frees = %d, want 1", h.freeCount())
	}
	l, _ := obj.AsList()
	if s, _ := l.At(0).AsBuf(); s != "new" {
		t.Errorf("item 0 = %q, want new", s)
	}
}

func TestUnpackMutMutableMap(t *testing.T) {
	kvs := []KV[Mutable]{
		NewKV("a", I64[Mutable](1)),
		NewKV("b", I64[Mutable](2)),
	}
	obj := NewMap(kvs...)

	u := UnpackMut(&obj)
	if !u.Map.Put("b", I64[Mutable](20)) {
		t.Fatal("Put(b) reported missing key")
	}
	if u.Map.Put("c", I64[Mutable](3)) {
		t.Error("Put(c) reported present key")
	}
	u.Map.SetKey(0, "renamed")

	// The mutation is visible through the borrowed slice.
	if kvs[0].Key() != "renamed" {
		t.Errorf("key 0 = %q, want renamed", kvs[0].Key())
	}
	if n, _ := kvs[1].Val().AsI64(); n != 20 {
		t.Errorf("value 1 = %d, want 20", n)
	}
}

func TestSetKeyOwned(t *testing.T) {
	kv := NewKV("first", I64[Owned](1))
	SetKey(&kv, "second")
	if kv.Key() != "second" {
		t.Errorf("Key() = %q", kv.Key())
	}
}

func TestUnpackDoesNotAllocate(t *testing.T) {
	obj := nestedSample().ToOwned()
	allocs := testing.AllocsPerRun(100, func() {
		u := obj.Unpack()
		v, _ := u.Map.Get("name")
		_ = v.Unpack()
	})
	if allocs != 0 {
		t.Errorf("Unpack allocated %v times", allocs)
	}
}

func TestInvalidUTF8Panics(t *testing.T) {
	obj := BufBytes[Shared]([]byte{0xff, 0xfe})

	defer func() {
		if recover() == nil {
			t.Error("expected panic on invalid UTF-8")
		}
	}()
	_ = obj.Unpack()
}

func TestEqualAcrossKinds(t *testing.T) {
	tests := []struct {
		name string
		a    Object[Shared]
		b    Object[Owned]
		want bool
	}{
		{"null", Null[Shared](), Null[Owned](), true},
		{"int", I64[Shared](3), I64[Owned](3), true},
		{"int vs float", I64[Shared](3), F64[Owned](3), false},
		{"text", Buf[Shared]("x"), Buf[Owned]("x"), true},
		{"text differs", Buf[Shared]("x"), Buf[Owned]("y"), false},
		{"list length", NewList(I64[Shared](1)), NewList[Owned](), false},
		{"map order", NewMap(NewKV("a", Null[Shared]()), NewKV("b", Null[Shared]())),
			NewMap(NewKV("b", Null[Owned]()), NewKV("a", Null[Owned]())), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	got := NewMap(
		NewKV("a", NewList(I64[Shared](1), Bool[Shared](false), Null[Shared]())),
		NewKV("b", Buf[Shared]("q\"")),
	).String()
	want := `{"a":[1,false,null],"b":"q\""}`
	if got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}

func TestValidate(t *testing.T) {
	mm, _ := NewMap(
		NewKV("topic", Buf[Shared]("a/b")),
		NewKV("qos", I64[Shared](1)),
	).AsMap()

	var topic, qos, ctx Object[Shared]
	err := mm.Validate(
		Required("topic", TypeBuf, &topic),
		Required("qos", TypeNull, &qos),
		Optional("context", TypeMap, &ctx),
	)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if s, _ := topic.AsBuf(); s != "a/b" {
		t.Errorf("topic = %s", topic)
	}
	if ctx.Type() != TypeNull {
		t.Errorf("absent optional = %s, want null", ctx)
	}

	tests := []struct {
		name   string
		schema []SchemaEntry[Shared]
		want   ggerr.Kind
	}{
		{"missing required", []SchemaEntry[Shared]{Required[Shared]("payload", TypeBuf, nil)}, ggerr.Noentry},
		{"wrong type", []SchemaEntry[Shared]{Required[Shared]("qos", TypeBuf, nil)}, ggerr.Parse},
		{"forbidden", []SchemaEntry[Shared]{Missing[Shared]("topic")}, ggerr.Parse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mm.Validate(tt.schema...)
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTypeString(t *testing.T) {
	names := map[Type]string{
		TypeNull: "NULL", TypeBool: "BOOL", TypeI64: "I64", TypeF64: "F64",
		TypeBuf: "BUF", TypeList: "LIST", TypeMap: "MAP", Type(99): "UNKNOWN",
	}
	for typ, want := range names {
		if typ.String() != want {
			t.Errorf("Type(%d).String() = %q, want %q", typ, typ.String(), want)
		}
	}
}
