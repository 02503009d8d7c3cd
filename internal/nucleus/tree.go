package nucleus

import (
	"maps"
	"slices"
)

// node is a configuration entry: a map of children or a leaf value. ts is
// the timestamp of the last accepted write in seconds since the epoch.
type node struct {
	children map[string]*node
	value    any
	ts       float64
}

func (n *node) isMap() bool {
	return n.children != nil
}

// Tree is one component's configuration. Writes carry a timestamp and a
// write older than the entry it would replace is ignored.
type Tree struct {
	root *node
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{root: &node{children: map[string]*node{}}}
}

// Leaf is one stored scalar or list value.
type Leaf struct {
	Path      []string
	Value     any
	Timestamp float64
}

// Merge merges value into the map at path and returns the paths of the
// leaves that changed. Nested maps in value are merged recursively.
func (t *Tree) Merge(path []string, value map[string]any, ts float64) [][]string {
	parent, ok := t.mapAt(path, ts)
	if !ok {
		return nil
	}
	var changed [][]string
	mergeInto(parent, slices.Clone(path), value, ts, &changed)
	return changed
}

// Set writes a single leaf and reports whether it was accepted.
func (t *Tree) Set(path []string, value any, ts float64) bool {
	if len(path) == 0 {
		return false
	}
	last := len(path) - 1
	if m, isMap := value.(map[string]any); isMap {
		return len(t.Merge(path, m, ts)) > 0
	}
	parent, ok := t.mapAt(path[:last], ts)
	if !ok {
		return false
	}
	return setLeaf(parent, path[last], value, ts)
}

// mapAt walks to the map at path, creating maps and replacing older leaves
// on the way.
func (t *Tree) mapAt(path []string, ts float64) (*node, bool) {
	n := t.root
	for _, key := range path {
		child, exists := n.children[key]
		switch {
		case !exists:
			child = &node{children: map[string]*node{}, ts: ts}
			n.children[key] = child
		case !child.isMap():
			if child.ts > ts {
				return nil, false
			}
			child.children = map[string]*node{}
			child.value = nil
			child.ts = ts
		}
		n = child
	}
	return n, true
}

func mergeInto(n *node, prefix []string, value map[string]any, ts float64, changed *[][]string) {
	for _, key := range slices.Sorted(maps.Keys(value)) {
		path := append(slices.Clip(prefix), key)
		if m, isMap := value[key].(map[string]any); isMap {
			child, exists := n.children[key]
			if !exists || !child.isMap() {
				if exists && child.ts > ts {
					continue
				}
				child = &node{children: map[string]*node{}, ts: ts}
				n.children[key] = child
			}
			mergeInto(child, path, m, ts, changed)
			continue
		}
		if setLeaf(n, key, value[key], ts) {
			*changed = append(*changed, path)
		}
	}
}

func setLeaf(parent *node, key string, value any, ts float64) bool {
	if existing, exists := parent.children[key]; exists && existing.ts > ts {
		return false
	}
	parent.children[key] = &node{value: value, ts: ts}
	return true
}

// Get returns the value at path as plain Go values. Maps are returned as
// map[string]any.
func (t *Tree) Get(path []string) (any, bool) {
	n := t.root
	for _, key := range path {
		if !n.isMap() {
			return nil, false
		}
		child, exists := n.children[key]
		if !exists {
			return nil, false
		}
		n = child
	}
	return n.native(), true
}

func (n *node) native() any {
	if !n.isMap() {
		return n.value
	}
	out := make(map[string]any, len(n.children))
	for k, child := range n.children {
		out[k] = child.native()
	}
	return out
}

// Leaves returns every leaf in key order.
func (t *Tree) Leaves() []Leaf {
	var out []Leaf
	collectLeaves(t.root, nil, &out)
	return out
}

func collectLeaves(n *node, prefix []string, out *[]Leaf) {
	for _, key := range slices.Sorted(maps.Keys(n.children)) {
		child := n.children[key]
		path := append(slices.Clip(prefix), key)
		if child.isMap() {
			collectLeaves(child, path, out)
			continue
		}
		*out = append(*out, Leaf{Path: path, Value: child.value, Timestamp: child.ts})
	}
}
