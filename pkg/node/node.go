// Package node defines the fixed-shape record shared by every level of an
// ordered multi-way search tree: the same layout serves as both an internal
// node (a fan-out of children) and a leaf (a run of key/value pairs), with
// the Height field distinguishing the two roles.
package node

import (
	"github.com/go-ordtree/ordtree/pkg/either"
)

// LessFunc reports whether a orders strictly before b.
type LessFunc[K any] func(a, b K) bool

// Slot is the union-typed contents of a single child position: either a
// pointer to a subtree (internal nodes) or a stored value (leaves).
type Slot[K, V any] = either.Either[*Node[K, V], V]

// Node is a single record of an ordered multi-way search tree.
//
// Height is 0 for a leaf and strictly positive for an internal node; every
// leaf in a well-formed tree shares the same height. Degree counts the
// number of active entries in Keys and Children; slots at indices
// [Degree, cap) exist (the backing slices are pre-sized to MaxDegree by the
// owning pool) but are not meaningful.
//
// For an internal node, Children[i] holds the subtree reached through slot
// i, and Keys[i] for i >= 1 is the smallest key reachable through
// Children[i]; Keys[0] is never read by search and is overwritten freely
// during splits, borrows, and merges. For a leaf, Children[i] holds the
// value paired with Keys[i], and both Keys and Children are kept sorted by
// key across the whole tree.
type Node[K, V any] struct {
	Height   int
	Degree   int
	Keys     []K
	Children []Slot[K, V]
}

// New allocates a node with Keys/Children slices pre-sized to capacity
// maxDegree. It is exported so that pkg/pool can construct nodes without
// importing unexported fields.
func New[K, V any](maxDegree int) *Node[K, V] {
	return &Node[K, V]{
		Keys:     make([]K, maxDegree),
		Children: make([]Slot[K, V], maxDegree),
	}
}

// Reset clears a node back to an empty leaf of degree 0, without shrinking
// its backing storage, so the pool can hand it back out for any role.
func (n *Node[K, V]) Reset() {
	n.Height = 0
	n.Degree = 0

	var zeroK K
	var zeroS Slot[K, V]

	for i := range n.Keys {
		n.Keys[i] = zeroK
	}

	for i := range n.Children {
		n.Children[i] = zeroS
	}
}

// IsLeaf reports whether this node is a leaf (Height == 0).
func (n *Node[K, V]) IsLeaf() bool { return n.Height == 0 }

// Child returns the subtree stored at slot i. Only meaningful for internal
// nodes at an active slot.
func (n *Node[K, V]) Child(i int) *Node[K, V] { return n.Children[i].LeftOrEmpty() }

// SetChild stores a subtree reference at slot i.
func (n *Node[K, V]) SetChild(i int, child *Node[K, V]) {
	n.Children[i] = either.Left[*Node[K, V], V](child)
}

// Value returns the value stored at slot i. Only meaningful for leaves at
// an active slot.
func (n *Node[K, V]) Value(i int) V { return n.Children[i].RightOrEmpty() }

// SetValue stores a value at slot i.
func (n *Node[K, V]) SetValue(i int, v V) {
	n.Children[i] = either.Right[*Node[K, V], V](v)
}

// Locate returns the index of the slot that key belongs to: the largest i
// such that i == 0 or Keys[i] <= key, i.e. !less(key, Keys[i]).
//
// For an internal node, the child to descend into for key is
// Children[Locate(less, key)]. For a leaf, key is present iff
// Keys[Locate(less, key)] equals key under the tree's equality predicate.
//
// On a node with Degree == 0 Locate returns 0 without reading any key;
// callers must still guard the empty-root case separately, since slot 0
// holds no entry then.
func (n *Node[K, V]) Locate(less LessFunc[K], key K) int {
	if n.Degree == 0 {
		return 0
	}

	// Binary search for the largest i with Keys[i] <= key, i.e. the first
	// index whose key is strictly greater than key, minus one.
	lo, hi := 0, n.Degree
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if less(key, n.Keys[mid]) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}

	if lo == 0 {
		return 0
	}

	return lo - 1
}

// InsertionIndex computes where a new key should land among this node's
// active slots, per the rule described in SPEC_FULL.md §4.3.3: for internal
// nodes, slot 0 (a subtree, not a separator) is never displaced.
func (n *Node[K, V]) InsertionIndex(less LessFunc[K], key K) int {
	start := 0
	if !n.IsLeaf() {
		start = 1
	}

	if n.Degree <= start {
		return start
	}

	b := n.Locate(less, key)
	if b < start {
		b = start
	}

	// If the key at b is strictly less than the key being inserted, the
	// insertion point is the next slot; if it is equal, b already points at
	// the matching entry so the caller can treat this as an overwrite.
	if b < n.Degree && less(n.Keys[b], key) {
		b++
	}

	return b
}

// InsertAt shifts Keys/Children at and after i one slot to the right and
// writes key/child into slot i, incrementing Degree. The caller must ensure
// Degree < cap(Keys) before calling.
func (n *Node[K, V]) InsertAt(i int, key K, child Slot[K, V]) {
	copy(n.Keys[i+1:n.Degree+1], n.Keys[i:n.Degree])
	copy(n.Children[i+1:n.Degree+1], n.Children[i:n.Degree])

	n.Keys[i] = key
	n.Children[i] = child
	n.Degree++
}

// RemoveAt shifts Keys/Children after i one slot to the left, discarding
// the entry at i and decrementing Degree.
func (n *Node[K, V]) RemoveAt(i int) {
	copy(n.Keys[i:n.Degree-1], n.Keys[i+1:n.Degree])
	copy(n.Children[i:n.Degree-1], n.Children[i+1:n.Degree])

	n.Degree--

	var zeroK K
	var zeroS Slot[K, V]
	n.Keys[n.Degree] = zeroK
	n.Children[n.Degree] = zeroS
}

// CopyFrom overwrites n's Height, Degree, Keys, and Children with src's,
// preserving n's own backing slices (and therefore n's identity). Used by
// the tree to preserve root identity across splits and collapses.
func (n *Node[K, V]) CopyFrom(src *Node[K, V]) {
	n.Height = src.Height
	n.Degree = src.Degree

	copy(n.Keys, src.Keys)
	copy(n.Children, src.Children)
}
