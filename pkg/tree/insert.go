package tree

import (
	"github.com/go-ordtree/ordtree/internal/debug"
	"github.com/go-ordtree/ordtree/pkg/either"
	"github.com/go-ordtree/ordtree/pkg/node"
	"github.com/go-ordtree/ordtree/pkg/res"
	"github.com/go-ordtree/ordtree/pkg/tuple"
)

// frame is one entry of the parent-stack recorded while descending to a
// leaf: the internal node visited, and the index of the child taken.
type frame[K, V any] = tuple.Tuple2[*node.Node[K, V], int]

func (t *Tree[K, V]) insert(key K, value V) res.Result[struct{}] {
	// Fast path: an empty tree is always a leaf root with Degree 0.
	if t.root.IsLeaf() && t.root.Degree == 0 {
		t.root.InsertAt(0, key, node.Slot[K, V]{})
		t.root.SetValue(0, value)
		if debug.Enabled {
			t.checkInvariants()
		}

		return res.Ok(struct{}{})
	}

	stack := make([]frame[K, V], 0, t.maxHeight)

	n := t.root
	for !n.IsLeaf() {
		i := n.Locate(t.less, key)
		stack = append(stack, tuple.New2(n, i))
		n = n.Child(i)
	}

	// Leaf insert.
	i := n.InsertionIndex(t.less, key)
	if i < n.Degree && t.equal(n.Keys[i], key) {
		n.SetValue(i, value)
		if debug.Enabled {
			t.checkInvariants()
		}

		return res.Ok(struct{}{})
	}

	if n.Degree < t.maxDegree {
		n.InsertAt(i, key, node.Slot[K, V]{})
		n.SetValue(i, value)
		if debug.Enabled {
			t.checkInvariants()
		}

		return res.Ok(struct{}{})
	}

	// Leaf is full and a split cascade is about to begin. Validate the
	// node budget and height budget the whole cascade could possibly need
	// before mutating anything, so a failing Insert leaves the tree
	// exactly as it was.
	acquires, rootSplit := t.insertCost(n, stack)

	if remaining, bounded := t.pool.Remaining(); bounded && remaining < acquires {
		return res.Err[struct{}](ErrNodeExhausted)
	}

	if rootSplit && t.root.Height+1 > t.maxHeight {
		return res.Err[struct{}](ErrHeightOverflow)
	}

	// Leaf is full: split, carrying the new (key, value) into whichever
	// half it belongs in, then propagate the promotion pair up the stack.
	promoteKey, promoteChild, failure := t.splitLeaf(n, i, key, value)
	if failure != nil {
		return res.Err[struct{}](failure)
	}

	for len(stack) > 0 {
		var parentFrame frame[K, V]
		parentFrame, stack = stack[len(stack)-1], stack[:len(stack)-1]
		parent, childIdx := parentFrame.Unpack()

		pi := childIdx + 1
		if pi < parent.Degree && t.equal(parent.Keys[pi], promoteKey) {
			// Unreachable for well-formed trees (separators are distinct
			// subtree minimums). If reached, the promoted sibling replaces
			// the child stored at pi.
			parent.SetChild(pi, promoteChild)

			if debug.Enabled {
				t.checkInvariants()
			}

			return res.Ok(struct{}{})
		}

		if parent.Degree < t.maxDegree {
			parent.InsertAt(pi, promoteKey, node.Slot[K, V]{})
			parent.SetChild(pi, promoteChild)
			if debug.Enabled {
				t.checkInvariants()
			}

			return res.Ok(struct{}{})
		}

		var failure error
		promoteKey, promoteChild, failure = t.splitInternal(parent, pi, promoteKey, promoteChild)
		if failure != nil {
			return res.Err[struct{}](failure)
		}
	}

	// The root itself split; grow the tree by one level.
	return t.splitRoot(promoteKey, promoteChild)
}

// insertCost predicts, without mutating anything, how many nodes a split
// cascade starting at the already-full leaf n would need to acquire, and
// whether the cascade would reach all the way past the root (requiring one
// further acquisition for the root's content copy, and a height check).
func (t *Tree[K, V]) insertCost(n *node.Node[K, V], stack []frame[K, V]) (acquires int, rootSplit bool) {
	if n.Degree < t.maxDegree {
		return 0, false
	}

	acquires = 1

	for i := len(stack) - 1; i >= 0; i-- {
		parent, _ := stack[i].Unpack()
		if parent.Degree < t.maxDegree {
			return acquires, false
		}

		acquires++
	}

	return acquires + 1, true
}

// splitLeaf splits a full leaf n, inserting (key, value) at slot i of the
// logically combined (MaxDegree+1)-entry sequence. It returns the
// separator key and new sibling to be promoted to the parent.
func (t *Tree[K, V]) splitLeaf(n *node.Node[K, V], i int, key K, value V) (K, *node.Node[K, V], error) {
	acquired := t.pool.Acquire()
	if acquired.IsErr() {
		var zero K
		return zero, nil, acquired.Err
	}

	sibling := acquired.Unwrap()
	sibling.Height = n.Height

	combined := t.maxDegree + 1
	upper := combined / 2
	lower := combined - upper

	keys := make([]K, 0, combined)
	vals := make([]V, 0, combined)

	inserted := false
	for j := 0; j < n.Degree; j++ {
		if !inserted && j == i {
			keys = append(keys, key)
			vals = append(vals, value)
			inserted = true
		}

		keys = append(keys, n.Keys[j])
		vals = append(vals, n.Value(j))
	}
	if !inserted {
		keys = append(keys, key)
		vals = append(vals, value)
	}

	for j := 0; j < lower; j++ {
		n.Keys[j] = keys[j]
		n.SetValue(j, vals[j])
	}
	n.Degree = lower

	for j := 0; j < upper; j++ {
		sibling.Keys[j] = keys[lower+j]
		sibling.SetValue(j, vals[lower+j])
	}
	sibling.Degree = upper

	return sibling.Keys[0], sibling, nil
}

// splitInternal splits a full internal node n, inserting the (key, child)
// promotion pair at slot i. It returns the separator key and new sibling
// to be promoted further up.
func (t *Tree[K, V]) splitInternal(n *node.Node[K, V], i int, key K, child *node.Node[K, V]) (K, *node.Node[K, V], error) {
	acquired := t.pool.Acquire()
	if acquired.IsErr() {
		var zero K
		return zero, nil, acquired.Err
	}

	sibling := acquired.Unwrap()
	sibling.Height = n.Height

	combined := t.maxDegree + 1
	upper := combined / 2
	lower := combined - upper

	keys := make([]K, 0, combined)
	children := make([]node.Slot[K, V], 0, combined)

	inserted := false
	for j := 0; j < n.Degree; j++ {
		if !inserted && j == i {
			keys = append(keys, key)
			children = append(children, either.Left[*node.Node[K, V], V](child))
			inserted = true
		}

		keys = append(keys, n.Keys[j])
		children = append(children, n.Children[j])
	}
	if !inserted {
		keys = append(keys, key)
		children = append(children, either.Left[*node.Node[K, V], V](child))
	}

	for j := 0; j < lower; j++ {
		n.Keys[j] = keys[j]
		n.Children[j] = children[j]
	}
	n.Degree = lower

	for j := 0; j < upper; j++ {
		sibling.Keys[j] = keys[lower+j]
		sibling.Children[j] = children[lower+j]
	}
	sibling.Degree = upper

	return sibling.Keys[0], sibling, nil
}

// splitRoot handles the case where the root itself just overflowed: a new
// node takes a copy of the current root's contents, and the root is
// reshaped in place into a two-child internal node, preserving the root's
// address.
func (t *Tree[K, V]) splitRoot(promoteKey K, promoteChild *node.Node[K, V]) res.Result[struct{}] {
	if t.root.Height+1 > t.maxHeight {
		return res.Err[struct{}](ErrHeightOverflow)
	}

	acquired := t.pool.Acquire()
	if acquired.IsErr() {
		return res.Err[struct{}](acquired.Err)
	}

	left := acquired.Unwrap()
	left.CopyFrom(t.root)

	t.root.Height++
	t.root.Degree = 2
	t.root.SetChild(0, left)
	t.root.SetChild(1, promoteChild)
	t.root.Keys[1] = promoteKey

	if debug.Enabled {
		t.checkInvariants()
	}

	return res.Ok(struct{}{})
}
